package memory

import (
	"context"
	"testing"
	"time"

	"slingerp/backend/internal/domain"
)

func TestSaleIDsStartAt1001AndFollowMax(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.CreateSale(ctx, domain.Sale{CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if first.ID != 1001 {
		t.Fatalf("first id = %d, want 1001", first.ID)
	}

	// After importing a history with a gap, assignment continues from max.
	bundle := domain.BackupBundle{
		Sales: &[]domain.Sale{{ID: 1001}, {ID: 1007}},
	}
	if err := s.ImportState(ctx, bundle); err != nil {
		t.Fatalf("import: %v", err)
	}
	next, err := s.CreateSale(ctx, domain.Sale{CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if next.ID != 1008 {
		t.Fatalf("next id = %d, want 1008", next.ID)
	}
}

func TestReturnedDocumentsAreDetachedCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	order, err := s.CreateOrder(ctx, domain.Order{
		Client:   "García, Ana",
		Status:   domain.OrderStatusPlaced,
		Services: map[string]int64{"Carpintería": 500000},
		Items:    []domain.CartLine{{ProductID: "P-0001", Qty: 1}},
		Payments: []domain.Payment{},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	order.Items[0].Qty = 99
	order.Services["Carpintería"] = 1

	stored, err := s.GetOrderByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Items[0].Qty != 1 {
		t.Fatalf("stored qty = %d, caller mutation leaked", stored.Items[0].Qty)
	}
	if stored.Services["Carpintería"] != 500000 {
		t.Fatalf("stored service price = %d, caller mutation leaked", stored.Services["Carpintería"])
	}
}

func TestImportReplacesOnlyPresentCollections(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	before, err := s.ListSuppliers(ctx)
	if err != nil {
		t.Fatalf("list suppliers: %v", err)
	}
	if len(before) == 0 {
		t.Fatalf("seeded store has no suppliers")
	}

	bundle := domain.BackupBundle{
		Products: &[]domain.Product{{ID: "P-9000", Name: "importado", Stock: 1}},
	}
	if err := s.ImportState(ctx, bundle); err != nil {
		t.Fatalf("import: %v", err)
	}

	products, _ := s.ListProducts(ctx)
	if len(products) != 1 || products[0].ID != "P-9000" {
		t.Fatalf("products = %+v, want only P-9000", products)
	}
	after, _ := s.ListSuppliers(ctx)
	if len(after) != len(before) {
		t.Fatalf("suppliers changed: %d -> %d", len(before), len(after))
	}
}
