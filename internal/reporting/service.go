package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/palletflow/palletflow/internal/catalog"
	"github.com/palletflow/palletflow/internal/orders"
	"github.com/palletflow/palletflow/internal/pricing"
	"github.com/palletflow/palletflow/internal/stock"
)

// OrderSource is the read-only order record source the engine consumes.
type OrderSource interface {
	ListOrders(ctx context.Context, f orders.Filter) ([]orders.Order, error)
	GetOrder(ctx context.Context, id int64) (*orders.Order, error)
	ListItems(ctx context.Context, orderIDs []int64) ([]orders.OrderItem, error)
}

// CatalogSource is the read-only reference data source.
type CatalogSource interface {
	ListProducts(ctx context.Context, ids []int64) ([]catalog.Product, error)
	GetDistributor(ctx context.Context, id uuid.UUID) (*catalog.Distributor, error)
	ListDistributors(ctx context.Context, ids []uuid.UUID) ([]catalog.Distributor, error)
	ListOfficialPrices(ctx context.Context, productIDs []int64) ([]catalog.OfficialPrice, error)
	RealStockSnapshot(ctx context.Context) (map[int64]int, error)
	GetProfile(ctx context.Context, userID int64) (*catalog.AgentProfile, error)
	ListProfiles(ctx context.Context, userIDs []int64) ([]catalog.AgentProfile, error)
}

// Config carries the tunables the original system hard-coded.
type Config struct {
	TolerancePct     float64
	TotalEpsilon     float64
	RunDeadline      time.Duration
	StockConcurrency int
}

// StockReport is the batch stock-sufficiency view. Degraded marks runs that
// returned partial results, typically after the run deadline expired.
type StockReport struct {
	Results     []stock.OrderResult `json:"results"`
	Degraded    bool                `json:"degraded"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// Service coordinates the evaluators with the record source and the report
// cache. All operations are read-only snapshots; independent reports never
// share failure.
type Service struct {
	orderSrc   OrderSource
	catalogSrc CatalogSource
	engine     *pricing.Engine
	cache      *Cache
	logger     *slog.Logger
	cfg        Config
	sf         singleflight.Group
	now        func() time.Time
}

// NewService wires the reporting service.
func NewService(orderSrc OrderSource, catalogSrc CatalogSource, engine *pricing.Engine, cache *Cache, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TolerancePct <= 0 {
		cfg.TolerancePct = pricing.DefaultTolerancePct
	}
	if cfg.TotalEpsilon <= 0 {
		cfg.TotalEpsilon = DefaultTotalEpsilon
	}
	return &Service{
		orderSrc:   orderSrc,
		catalogSrc: catalogSrc,
		engine:     engine,
		cache:      cache,
		logger:     logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

func (s *Service) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RunDeadline > 0 {
		return context.WithTimeout(ctx, s.cfg.RunDeadline)
	}
	return context.WithCancel(ctx)
}

// loadSnapshot fetches the order set and all its items in two round trips.
func (s *Service) loadSnapshot(ctx context.Context, f orders.Filter) ([]orders.Order, map[int64][]orders.OrderItem, error) {
	orderSet, err := s.orderSrc.ListOrders(ctx, f)
	if err != nil {
		return nil, nil, fmt.Errorf("reporting: load orders: %w", err)
	}
	ids := make([]int64, 0, len(orderSet))
	for _, ord := range orderSet {
		ids = append(ids, ord.ID)
	}
	items, err := s.orderSrc.ListItems(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("reporting: load items: %w", err)
	}
	return orderSet, orders.ItemsByOrder(items), nil
}

// failedNames degrades every name lookup, pushing affected orders to
// pending instead of failing the batch.
type failedNames struct{ err error }

func (f failedNames) Name(context.Context, int64) (string, error) { return "", f.err }

func (s *Service) productNames(ctx context.Context, itemsByOrder map[int64][]orders.OrderItem) stock.ProductNames {
	ids := productIDSet(itemsByOrder)
	products, err := s.catalogSrc.ListProducts(ctx, ids)
	if err != nil {
		s.logger.Warn("product name lookup failed", slog.Any("error", err))
		return failedNames{err: err}
	}
	names := make(stock.MapNames, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names
}

// StockReportRun evaluates stock sufficiency for every order the filter
// matches. Cancelled orders are excluded unless the filter asks for them; a
// real-stock snapshot failure aborts this report only.
func (s *Service) StockReportRun(ctx context.Context, f orders.Filter) (StockReport, error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	orderSet, itemsByOrder, err := s.loadSnapshot(ctx, f)
	if err != nil {
		return StockReport{}, err
	}
	snapshot, err := s.catalogSrc.RealStockSnapshot(ctx)
	if err != nil {
		return StockReport{}, fmt.Errorf("reporting: real stock snapshot: %w", err)
	}
	names := s.productNames(ctx, itemsByOrder)

	results, degraded := stock.EvaluateBatch(ctx, orderSet, itemsByOrder, snapshot, names, s.cfg.StockConcurrency)
	stock.LogDeficits(s.logger, results)

	return StockReport{Results: results, Degraded: degraded, GeneratedAt: s.now()}, nil
}

// EvaluateStock evaluates a single order against the current snapshot.
func (s *Service) EvaluateStock(ctx context.Context, orderID int64) (stock.OrderResult, error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	ord, err := s.orderSrc.GetOrder(ctx, orderID)
	if err != nil {
		return stock.OrderResult{}, err
	}
	items, err := s.orderSrc.ListItems(ctx, []int64{ord.ID})
	if err != nil {
		return stock.OrderResult{}, fmt.Errorf("reporting: load items: %w", err)
	}
	snapshot, err := s.catalogSrc.RealStockSnapshot(ctx)
	if err != nil {
		return stock.OrderResult{}, fmt.Errorf("reporting: real stock snapshot: %w", err)
	}
	itemsByOrder := orders.ItemsByOrder(items)
	names := s.productNames(ctx, itemsByOrder)

	return stock.OrderResult{
		OrderID: ord.ID,
		Number:  ord.Number,
		Status:  stock.Evaluate(ctx, itemsByOrder[ord.ID], snapshot, names),
	}, nil
}

// ValidatePrices audits the filtered order set against the official price
// grid. All reference data is fetched once and indexed in memory before any
// item is resolved. tolerancePct zero means the configured default.
func (s *Service) ValidatePrices(ctx context.Context, f orders.Filter, tolerancePct float64) ([]pricing.Anomaly, error) {
	if tolerancePct <= 0 {
		tolerancePct = s.cfg.TolerancePct
	}
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	key, err := s.cache.BuildKey(ctx, keyAnomalies(f, tolerancePct))
	if err != nil {
		return nil, err
	}
	var anomalies []pricing.Anomaly
	err = s.cache.FetchJSON(ctx, key, &anomalies, func(ctx context.Context) (interface{}, error) {
		return s.validatePrices(ctx, f, tolerancePct)
	})
	if err != nil {
		return nil, err
	}
	return anomalies, nil
}

func (s *Service) validatePrices(ctx context.Context, f orders.Filter, tolerancePct float64) ([]pricing.Anomaly, error) {
	orderSet, itemsByOrder, err := s.loadSnapshot(ctx, f)
	if err != nil {
		return nil, err
	}

	productIDs := productIDSet(itemsByOrder)
	prices, err := s.catalogSrc.ListOfficialPrices(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("reporting: load official prices: %w", err)
	}
	// Display data is best-effort; the audit itself only needs the grid.
	products, err := s.catalogSrc.ListProducts(ctx, productIDs)
	if err != nil {
		s.logger.Warn("product lookup failed, anomalies will carry placeholders", slog.Any("error", err))
		products = nil
	}
	profiles, err := s.catalogSrc.ListProfiles(ctx, agentIDSet(orderSet))
	if err != nil {
		s.logger.Warn("profile lookup failed, anomalies will omit agent names", slog.Any("error", err))
		profiles = nil
	}

	ix := pricing.BuildIndex(prices, products, profiles)
	return s.engine.Validate(orderSet, itemsByOrder, ix, tolerancePct), nil
}

// Summary builds the multi-dimensional rollup for the filtered order set.
// Concurrent identical requests share one build; results are cached under
// the canonical filter token until the next order mutation bumps the cache
// version.
func (s *Service) Summary(ctx context.Context, f orders.Filter) (Summary, error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	key, err := s.cache.BuildKey(ctx, keySummary(f))
	if err != nil {
		return Summary{}, err
	}
	value, err, _ := s.sf.Do(key, func() (interface{}, error) {
		var sum Summary
		err := s.cache.FetchJSON(ctx, key, &sum, func(ctx context.Context) (interface{}, error) {
			return s.buildSummary(ctx, f)
		})
		return sum, err
	})
	if err != nil {
		return Summary{}, err
	}
	return value.(Summary), nil
}

func (s *Service) buildSummary(ctx context.Context, f orders.Filter) (Summary, error) {
	orderSet, itemsByOrder, err := s.loadSnapshot(ctx, f)
	if err != nil {
		return Summary{}, err
	}
	sum := Aggregate(orderSet, itemsByOrder)
	s.joinAgentNames(ctx, sum.Agents)
	s.joinDistributorNames(ctx, orderSet, sum.Distributors)
	s.joinProductNames(ctx, sum.Products)
	return sum, nil
}

func (s *Service) joinAgentNames(ctx context.Context, rollups []AgentRollup) {
	ids := make([]int64, 0, len(rollups))
	for _, r := range rollups {
		if r.AgentID != 0 {
			ids = append(ids, r.AgentID)
		}
	}
	profiles, err := s.catalogSrc.ListProfiles(ctx, ids)
	if err != nil {
		s.logger.Warn("agent name join failed", slog.Any("error", err))
	}
	byID := make(map[int64]string, len(profiles))
	for _, p := range profiles {
		byID[p.UserID] = p.DisplayName
	}
	for i := range rollups {
		if name, ok := byID[rollups[i].AgentID]; ok {
			rollups[i].AgentName = name
		} else {
			rollups[i].AgentName = PlaceholderAgent
		}
	}
}

func (s *Service) joinDistributorNames(ctx context.Context, orderSet []orders.Order, rollups []DistributorRollup) {
	byToken := make(map[string]uuid.UUID)
	for _, ord := range orderSet {
		if ord.Distributor.Kind == orders.RefByID {
			byToken[ord.Distributor.Token()] = ord.Distributor.ID
		}
	}
	ids := make([]uuid.UUID, 0, len(byToken))
	for _, id := range byToken {
		ids = append(ids, id)
	}
	distributors, err := s.catalogSrc.ListDistributors(ctx, ids)
	if err != nil {
		s.logger.Warn("distributor name join failed", slog.Any("error", err))
	}
	names := make(map[uuid.UUID]string, len(distributors))
	for _, d := range distributors {
		names[d.ID] = d.CompanyName
	}
	for i := range rollups {
		if rollups[i].DisplayName != "" {
			continue
		}
		if id, ok := byToken[rollups[i].Key]; ok {
			if name, ok := names[id]; ok {
				rollups[i].DisplayName = name
				continue
			}
		}
		rollups[i].DisplayName = PlaceholderDistributor
	}
}

func (s *Service) joinProductNames(ctx context.Context, rollups []ProductRollup) {
	ids := make([]int64, 0, len(rollups))
	for _, r := range rollups {
		ids = append(ids, r.ProductID)
	}
	products, err := s.catalogSrc.ListProducts(ctx, ids)
	if err != nil {
		s.logger.Warn("product name join failed", slog.Any("error", err))
	}
	names := make(map[int64]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	for i := range rollups {
		if name, ok := names[rollups[i].ProductID]; ok {
			rollups[i].ProductName = name
		} else {
			rollups[i].ProductName = PlaceholderProduct
		}
	}
}

// DetailedView joins distributor, agent and product display data into one
// order's detail view, substituting placeholders on missing joins.
func (s *Service) DetailedView(ctx context.Context, orderID int64) (DetailedView, error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	ord, err := s.orderSrc.GetOrder(ctx, orderID)
	if err != nil {
		return DetailedView{}, err
	}
	items, err := s.orderSrc.ListItems(ctx, []int64{ord.ID})
	if err != nil {
		return DetailedView{}, fmt.Errorf("reporting: load items: %w", err)
	}

	products := make(map[int64]catalog.Product)
	if list, err := s.catalogSrc.ListProducts(ctx, productIDSet(orders.ItemsByOrder(items))); err != nil {
		s.logger.Warn("product join failed", slog.Int64("order_id", ord.ID), slog.Any("error", err))
	} else {
		for _, p := range list {
			products[p.ID] = p
		}
	}

	var distributorName string
	switch ord.Distributor.Kind {
	case orders.RefByID:
		d, err := s.catalogSrc.GetDistributor(ctx, ord.Distributor.ID)
		switch {
		case err == nil:
			distributorName = d.CompanyName
		case errors.Is(err, catalog.ErrNotFound):
			// Dangling foreign key, placeholder applies.
		default:
			s.logger.Warn("distributor join failed", slog.Int64("order_id", ord.ID), slog.Any("error", err))
		}
	case orders.RefByName:
		distributorName = ord.Distributor.Name
	case orders.RefNone:
		// Placeholder applies.
	}

	var agentName string
	if p, err := s.catalogSrc.GetProfile(ctx, ord.AgentID); err == nil {
		agentName = p.DisplayName
	} else if !errors.Is(err, catalog.ErrNotFound) {
		s.logger.Warn("agent join failed", slog.Int64("order_id", ord.ID), slog.Any("error", err))
	}

	return AssembleDetailedView(*ord, items, products, distributorName, agentName, s.cfg.TotalEpsilon), nil
}

// Cancellations reports cancelled orders only, newest cancellation first,
// with the cancelling actor's display name joined in.
func (s *Service) Cancellations(ctx context.Context, f orders.Filter) ([]CancellationRecord, error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	f.CancelledOnly = true
	key, err := s.cache.BuildKey(ctx, keyCancellations(f))
	if err != nil {
		return nil, err
	}
	var records []CancellationRecord
	err = s.cache.FetchJSON(ctx, key, &records, func(ctx context.Context) (interface{}, error) {
		return s.buildCancellations(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) buildCancellations(ctx context.Context, f orders.Filter) ([]CancellationRecord, error) {
	orderSet, err := s.orderSrc.ListOrders(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("reporting: load cancellations: %w", err)
	}
	var actorIDs []int64
	for _, ord := range orderSet {
		if ord.CancelledBy != nil {
			actorIDs = append(actorIDs, *ord.CancelledBy)
		}
	}
	profiles, err := s.catalogSrc.ListProfiles(ctx, actorIDs)
	if err != nil {
		s.logger.Warn("cancellation actor join failed", slog.Any("error", err))
	}
	names := make(map[int64]string, len(profiles))
	for _, p := range profiles {
		names[p.UserID] = p.DisplayName
	}

	records := make([]CancellationRecord, 0, len(orderSet))
	for _, ord := range orderSet {
		rec := CancellationRecord{Order: ord, CancelledAt: ord.CancelledAt, CancelledByName: PlaceholderAgent}
		if ord.CancelledBy != nil {
			if name, ok := names[*ord.CancelledBy]; ok {
				rec.CancelledByName = name
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// InvalidateReports bumps the cache version. The presentation layer calls
// this on order created, updated and cancelled events.
func (s *Service) InvalidateReports(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func productIDSet(itemsByOrder map[int64][]orders.OrderItem) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, items := range itemsByOrder {
		for _, it := range items {
			if _, ok := seen[it.ProductID]; ok {
				continue
			}
			seen[it.ProductID] = struct{}{}
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

func agentIDSet(orderSet []orders.Order) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, ord := range orderSet {
		if ord.AgentID == 0 {
			continue
		}
		if _, ok := seen[ord.AgentID]; ok {
			continue
		}
		seen[ord.AgentID] = struct{}{}
		ids = append(ids, ord.AgentID)
	}
	return ids
}
