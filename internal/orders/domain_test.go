package orders

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusInTransit, true},
		{StatusInTransit, StatusDelivered, true},
		{StatusPending, StatusInTransit, false},
		{StatusPending, StatusDelivered, false},
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusInTransit, StatusCancelled, true},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusDelivered, StatusPending, false},
		{OrderStatus("bogus"), StatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if !StatusCancelled.Terminal() || !StatusDelivered.Terminal() {
		t.Fatal("cancelled and delivered must be terminal")
	}
	if StatusPending.Terminal() || StatusProcessing.Terminal() || StatusInTransit.Terminal() {
		t.Fatal("active states must not be terminal")
	}
}

func TestParseDistributorRef(t *testing.T) {
	id := uuid.New()
	ref := ParseDistributorRef(id.String())
	if ref.Kind != RefByID || ref.ID != id {
		t.Fatalf("expected by_id ref, got %+v", ref)
	}

	ref = ParseDistributorRef("  SC Depozitul Central SRL ")
	if ref.Kind != RefByName || ref.Name != "SC Depozitul Central SRL" {
		t.Fatalf("expected by_name ref, got %+v", ref)
	}

	ref = ParseDistributorRef("   ")
	if ref.Kind != RefNone {
		t.Fatalf("expected none ref, got %+v", ref)
	}
}

func TestDistributorRefToken(t *testing.T) {
	a := ParseDistributorRef("Depozit Vest")
	b := ParseDistributorRef("depozit vest")
	if a.Token() != b.Token() {
		t.Fatalf("tokens must be case-insensitive for legacy names: %q vs %q", a.Token(), b.Token())
	}
	if ParseDistributorRef("").Token() != "-" {
		t.Fatal("empty ref must use the dash token")
	}
}

func TestFilterTokenStable(t *testing.T) {
	f := Filter{AgentID: 7, Status: StatusPending, Limit: 50}
	if f.Token() != f.Token() {
		t.Fatal("token must be deterministic")
	}
	other := Filter{AgentID: 8, Status: StatusPending, Limit: 50}
	if f.Token() == other.Token() {
		t.Fatal("different filters must not collide")
	}
}

func TestFilterTokenKeepsIntraDayWindowsApart(t *testing.T) {
	midnight := Filter{From: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)}
	morning := Filter{From: time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)}
	if midnight.Token() == morning.Token() {
		t.Fatalf("same-day windows with different start times must not share a token: %q", midnight.Token())
	}

	to := Filter{To: time.Date(2026, time.March, 1, 18, 30, 0, 0, time.UTC)}
	toLater := Filter{To: time.Date(2026, time.March, 1, 23, 59, 0, 0, time.UTC)}
	if to.Token() == toLater.Token() {
		t.Fatalf("same-day windows with different end times must not share a token: %q", to.Token())
	}
}

func TestItemsByOrderPreservesLineOrder(t *testing.T) {
	items := []OrderItem{
		{ID: 1, OrderID: 10, ProductID: 1},
		{ID: 2, OrderID: 11, ProductID: 2},
		{ID: 3, OrderID: 10, ProductID: 3},
	}
	grouped := ItemsByOrder(items)
	if len(grouped[10]) != 2 || grouped[10][0].ID != 1 || grouped[10][1].ID != 3 {
		t.Fatalf("unexpected grouping: %+v", grouped[10])
	}
	if len(grouped[11]) != 1 {
		t.Fatalf("unexpected grouping: %+v", grouped[11])
	}
}
