package stock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"slingerp/backend/internal/domain"
)

type fakeDirectory struct {
	mu    sync.Mutex
	stock map[string]int
}

func newFakeDirectory(stock map[string]int) *fakeDirectory {
	return &fakeDirectory{stock: stock}
}

func (f *fakeDirectory) GetProductByID(_ context.Context, id string) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	qty, ok := f.stock[id]
	if !ok {
		return domain.Product{}, errors.New("not found")
	}
	return domain.Product{ID: id, Stock: qty}, nil
}

func (f *fakeDirectory) SetProductStock(_ context.Context, id string, stock int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.stock[id]; !ok {
		return errors.New("not found")
	}
	f.stock[id] = stock
	return nil
}

func (f *fakeDirectory) get(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[id]
}

func TestDecrementClampsAtZero(t *testing.T) {
	dir := newFakeDirectory(map[string]int{"P-0001": 3})
	ledger := NewLedger(dir)

	if err := ledger.Decrement(context.Background(), "P-0001", 5); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if got := dir.get("P-0001"); got != 0 {
		t.Fatalf("stock = %d, want 0 (clamped)", got)
	}
}

func TestIncrementHasNoUpperBound(t *testing.T) {
	dir := newFakeDirectory(map[string]int{"P-0001": 10})
	ledger := NewLedger(dir)

	if err := ledger.Increment(context.Background(), "P-0001", 100000); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if got := dir.get("P-0001"); got != 100010 {
		t.Fatalf("stock = %d, want 100010", got)
	}
}

func TestApplyBatchSkipsUnknownProducts(t *testing.T) {
	dir := newFakeDirectory(map[string]int{"P-0001": 5, "P-0003": 8})
	ledger := NewLedger(dir)

	lines := []domain.CartLine{
		{ProductID: "P-0001", Qty: 2},
		{ProductID: "P-9999", Qty: 4},
		{ProductID: "P-0003", Qty: 3},
	}
	results := ledger.ApplyBatch(context.Background(), lines, DirectionDecrement)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if !results[0].Applied || results[1].Applied || !results[2].Applied {
		t.Fatalf("applied flags = %v %v %v, want true false true",
			results[0].Applied, results[1].Applied, results[2].Applied)
	}
	if got := dir.get("P-0001"); got != 3 {
		t.Fatalf("P-0001 stock = %d, want 3", got)
	}
	if got := dir.get("P-0003"); got != 5 {
		t.Fatalf("P-0003 stock = %d, want 5", got)
	}
}

func TestApplyBatchIncrementDirection(t *testing.T) {
	dir := newFakeDirectory(map[string]int{"P-0001": 1})
	ledger := NewLedger(dir)

	results := ledger.ApplyBatch(context.Background(), []domain.CartLine{
		{ProductID: "P-0001", Qty: 9},
	}, DirectionIncrement)
	if !results[0].Applied {
		t.Fatalf("line not applied")
	}
	if got := dir.get("P-0001"); got != 10 {
		t.Fatalf("stock = %d, want 10", got)
	}
}

func TestConcurrentDecrementsNeverGoNegative(t *testing.T) {
	dir := newFakeDirectory(map[string]int{"P-0001": 50})
	ledger := NewLedger(dir)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ledger.Decrement(context.Background(), "P-0001", 4)
		}()
	}
	wg.Wait()

	if got := dir.get("P-0001"); got != 0 {
		t.Fatalf("stock = %d, want 0 after 80 requested against 50", got)
	}
}
