package pricing

import (
	"testing"

	"slingerp/backend/internal/domain"
)

func TestSubtotalSumsLineSnapshots(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "P-0001", PriceCents: 150000, Qty: 2},
		{ProductID: "P-0002", PriceCents: 99950, Qty: 1},
	}
	if got := Subtotal(lines); got != 399950 {
		t.Fatalf("subtotal = %d, want 399950", got)
	}
	if got := Subtotal(nil); got != 0 {
		t.Fatalf("empty subtotal = %d, want 0", got)
	}
}

func TestDiscountAmount(t *testing.T) {
	percent := domain.Discount{Name: "Efectivo", Type: domain.DiscountPercentage, Percent: 10, Active: true}
	if got := DiscountAmount(100050, percent); got != 10005 {
		t.Fatalf("10%% of 100050 = %d, want 10005", got)
	}

	fixed := domain.Discount{Name: "Promo", Type: domain.DiscountFixed, AmountCents: 50000, Active: true}
	if got := DiscountAmount(30000, fixed); got != 50000 {
		t.Fatalf("fixed discount = %d, want 50000 even above subtotal", got)
	}

	inactive := domain.Discount{Name: "VIP", Type: domain.DiscountPercentage, Percent: 50, Active: false}
	if got := DiscountAmount(100000, inactive); got != 0 {
		t.Fatalf("inactive discount = %d, want 0", got)
	}
}

func TestDiscountAmountRoundsHalfUp(t *testing.T) {
	d := domain.Discount{Type: domain.DiscountPercentage, Percent: 10, Active: true}
	// 10% of 15 centavos is 1.5, rounds to 2.
	if got := DiscountAmount(15, d); got != 2 {
		t.Fatalf("rounded discount = %d, want 2", got)
	}
}

func TestSurchargeAmount(t *testing.T) {
	if got := SurchargeAmount(200000, domain.SurchargePercentage, 5); got != 10000 {
		t.Fatalf("5%% surcharge = %d, want 10000", got)
	}
	if got := SurchargeAmount(200000, domain.SurchargeFixed, 2500); got != 2500 {
		t.Fatalf("fixed surcharge = %d, want 2500", got)
	}
	if got := SurchargeAmount(200000, domain.SurchargePercentage, 0); got != 0 {
		t.Fatalf("zero surcharge = %d, want 0", got)
	}
	if got := SurchargeAmount(200000, "weird", 10); got != 0 {
		t.Fatalf("unknown kind surcharge = %d, want 0", got)
	}
}

func TestTotalClampsAtZero(t *testing.T) {
	if got := Total(100000, 20000, 5000); got != 85000 {
		t.Fatalf("total = %d, want 85000", got)
	}
	if got := Total(30000, 50000, 0); got != 0 {
		t.Fatalf("overdiscounted total = %d, want 0", got)
	}
	// Surcharge can rescue an overdiscounted subtotal.
	if got := Total(30000, 50000, 25000); got != 5000 {
		t.Fatalf("total with surcharge = %d, want 5000", got)
	}
}
