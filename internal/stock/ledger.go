// Package stock holds the single authority over on-hand quantities. Every
// mutation goes through the Ledger, which serializes writers with one mutex
// so interleaved sales and receipts cannot race a read-modify-write.
package stock

import (
	"context"
	"sync"

	"slingerp/backend/internal/domain"
)

// Directory is the narrow slice of the product store the ledger needs.
type Directory interface {
	GetProductByID(ctx context.Context, id string) (domain.Product, error)
	SetProductStock(ctx context.Context, id string, stock int) error
}

// Direction of a batch application.
type Direction int

const (
	DirectionDecrement Direction = iota
	DirectionIncrement
)

// LineResult reports what happened to one batch line. Skipped lines name a
// product id the directory no longer knows.
type LineResult struct {
	ProductID string
	Qty       int
	Applied   bool
}

type Ledger struct {
	mu  sync.Mutex
	dir Directory
}

func NewLedger(dir Directory) *Ledger {
	return &Ledger{dir: dir}
}

// Decrement lowers the on-hand quantity by qty, clamping at zero. Requests
// beyond available stock are not an error: the quantity floors and the sale
// that asked for it stands as recorded.
func (l *Ledger) Decrement(ctx context.Context, productID string, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.decrementLocked(ctx, productID, qty)
}

// Increment raises the on-hand quantity by qty with no upper bound.
func (l *Ledger) Increment(ctx context.Context, productID string, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.incrementLocked(ctx, productID, qty)
}

// ApplyBatch applies every line in order under one lock acquisition. Lines
// whose product id is unknown are skipped and marked as such; the batch
// itself never fails on a missing product, so a sale of five lines where one
// product was deleted still adjusts the other four.
func (l *Ledger) ApplyBatch(ctx context.Context, lines []domain.CartLine, dir Direction) []LineResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	results := make([]LineResult, 0, len(lines))
	for _, line := range lines {
		var err error
		if dir == DirectionIncrement {
			err = l.incrementLocked(ctx, line.ProductID, line.Qty)
		} else {
			err = l.decrementLocked(ctx, line.ProductID, line.Qty)
		}
		results = append(results, LineResult{
			ProductID: line.ProductID,
			Qty:       line.Qty,
			Applied:   err == nil,
		})
	}
	return results
}

func (l *Ledger) decrementLocked(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return nil
	}
	product, err := l.dir.GetProductByID(ctx, productID)
	if err != nil {
		return err
	}
	next := product.Stock - qty
	if next < 0 {
		next = 0
	}
	return l.dir.SetProductStock(ctx, productID, next)
}

func (l *Ledger) incrementLocked(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return nil
	}
	product, err := l.dir.GetProductByID(ctx, productID)
	if err != nil {
		return err
	}
	return l.dir.SetProductStock(ctx, productID, product.Stock+qty)
}
