package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"slingerp/backend/internal/domain"
	"slingerp/backend/internal/notify"
	"slingerp/backend/internal/stock"
	"slingerp/backend/internal/store"
	"slingerp/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.New()
	ledger := stock.NewLedger(repo)
	svc := New(repo, ledger, notify.Noop{}, nil)
	return svc, repo
}

func ownerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "dueno", Role: domain.RoleOwner})
}

func employeeCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "vendedor", Role: domain.RoleEmployee})
}

func seedProduct(t *testing.T, repo *memory.Store, id string, priceCents int64, stock int) {
	t.Helper()
	err := repo.CreateProduct(context.Background(), domain.Product{
		ID: id, Name: "producto " + id, Category: "General",
		PriceCents: priceCents, SupplierPriceCents: priceCents / 2, Stock: stock,
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
}

func cartLine(id string, priceCents int64, qty int) domain.CartLine {
	return domain.CartLine{ProductID: id, Name: "producto " + id, PriceCents: priceCents, Qty: qty}
}

func TestCheckoutAssignsSequentialIDs(t *testing.T) {
	svc, repo := newTestService(t)
	seedProduct(t, repo, "P-0001", 100000, 50)

	req := domain.CheckoutRequest{
		PaymentMethod: "Efectivo",
		InvoiceType:   domain.InvoiceTypeB,
		Items:         []domain.CartLine{cartLine("P-0001", 100000, 1)},
	}

	first, err := svc.Checkout(employeeCtx(), req)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if first.ID != 1001 {
		t.Fatalf("first sale id = %d, want 1001", first.ID)
	}
	second, err := svc.Checkout(employeeCtx(), req)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if second.ID != 1002 {
		t.Fatalf("second sale id = %d, want 1002", second.ID)
	}
	if first.Client != "Consumidor Final" {
		t.Fatalf("client = %q, want Consumidor Final", first.Client)
	}
}

func TestCheckoutOversellClampsStockAtZero(t *testing.T) {
	svc, repo := newTestService(t)
	seedProduct(t, repo, "P-0001", 50000, 3)

	sale, err := svc.Checkout(employeeCtx(), domain.CheckoutRequest{
		PaymentMethod: "QR",
		InvoiceType:   domain.InvoiceTypeX,
		Items:         []domain.CartLine{cartLine("P-0001", 50000, 10)},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	// The sale records the requested quantity even though stock fell short.
	if sale.Items[0].Qty != 10 {
		t.Fatalf("sale qty = %d, want 10", sale.Items[0].Qty)
	}
	p, err := repo.GetProductByID(context.Background(), "P-0001")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if p.Stock != 0 {
		t.Fatalf("stock = %d, want 0", p.Stock)
	}
}

func TestCheckoutPricesDeletedProductFromSnapshot(t *testing.T) {
	svc, repo := newTestService(t)
	seedProduct(t, repo, "P-0001", 100000, 5)

	// The second line's product was deleted after the cart was built. Its
	// snapshot still prices into the subtotal; only the ledger skips it.
	sale, err := svc.Checkout(employeeCtx(), domain.CheckoutRequest{
		PaymentMethod: "Efectivo",
		InvoiceType:   domain.InvoiceTypeB,
		Items: []domain.CartLine{
			cartLine("P-0001", 100000, 2),
			cartLine("P-GONE", 70000, 1),
		},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if sale.SubtotalCents != 270000 {
		t.Fatalf("subtotal = %d, want 270000", sale.SubtotalCents)
	}
	p, _ := repo.GetProductByID(context.Background(), "P-0001")
	if p.Stock != 3 {
		t.Fatalf("stock = %d, want 3", p.Stock)
	}
}

func TestCheckoutDiscountAndSurcharge(t *testing.T) {
	svc, repo := newTestService(t)
	seedProduct(t, repo, "P-0001", 100000, 10)
	discount, err := repo.CreateDiscount(context.Background(), domain.Discount{
		Name: "Efectivo", Type: domain.DiscountPercentage, Percent: 10, Active: true,
	})
	if err != nil {
		t.Fatalf("seed discount: %v", err)
	}

	sale, err := svc.Checkout(employeeCtx(), domain.CheckoutRequest{
		PaymentMethod:  "Crédito",
		InvoiceType:    domain.InvoiceTypeA,
		DiscountID:     discount.ID,
		SurchargeType:  domain.SurchargePercentage,
		SurchargeValue: 5,
		Items:          []domain.CartLine{cartLine("P-0001", 100000, 2)},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	// subtotal 200000, discount 20000, surcharge 10000.
	if sale.TotalCents != 190000 {
		t.Fatalf("total = %d, want 190000", sale.TotalCents)
	}
	if sale.DiscountApplied == nil || sale.DiscountApplied.AmountCents != 20000 {
		t.Fatalf("discount applied = %+v, want 20000", sale.DiscountApplied)
	}
	if sale.SurchargeCents != 10000 {
		t.Fatalf("surcharge = %d, want 10000", sale.SurchargeCents)
	}
}

func TestCheckoutTotalNeverNegative(t *testing.T) {
	svc, repo := newTestService(t)
	seedProduct(t, repo, "P-0001", 10000, 10)
	discount, err := repo.CreateDiscount(context.Background(), domain.Discount{
		Name: "Promo", Type: domain.DiscountFixed, AmountCents: 500000, Active: true,
	})
	if err != nil {
		t.Fatalf("seed discount: %v", err)
	}

	sale, err := svc.Checkout(employeeCtx(), domain.CheckoutRequest{
		PaymentMethod: "Efectivo",
		InvoiceType:   domain.InvoiceTypeB,
		DiscountID:    discount.ID,
		Items:         []domain.CartLine{cartLine("P-0001", 10000, 1)},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if sale.TotalCents != 0 {
		t.Fatalf("total = %d, want 0", sale.TotalCents)
	}
}

func TestCheckoutRejectsInvalidRequests(t *testing.T) {
	svc, repo := newTestService(t)
	seedProduct(t, repo, "P-0001", 10000, 10)

	cases := []domain.CheckoutRequest{
		{PaymentMethod: "Efectivo", InvoiceType: "B"},
		{PaymentMethod: "Trueque", InvoiceType: "B", Items: []domain.CartLine{cartLine("P-0001", 10000, 1)}},
		{PaymentMethod: "Efectivo", InvoiceType: "Z", Items: []domain.CartLine{cartLine("P-0001", 10000, 1)}},
		{PaymentMethod: "Efectivo", InvoiceType: "B", Items: []domain.CartLine{cartLine("P-0001", 10000, 0)}},
	}
	for i, req := range cases {
		if _, err := svc.Checkout(employeeCtx(), req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("case %d: err = %v, want ErrInvalidInput", i, err)
		}
	}
	if sales, _ := repo.ListSales(context.Background()); len(sales) != 0 {
		t.Fatalf("sales = %d, want 0 after rejected checkouts", len(sales))
	}
}

func TestOrderLifecycle(t *testing.T) {
	svc, repo := newTestService(t)
	seedProduct(t, repo, "P-0001", 80000, 10)

	order, err := svc.CreateOrder(employeeCtx(), domain.OrderCreateRequest{
		NewClient:    &domain.ClientCreateRequest{FirstName: "Ana", LastName: "García", Email: "ana@mail.com"},
		Services:     []string{"Carpintería", "Pinturería"},
		Items:        []domain.CartLine{cartLine("P-0001", 80000, 2)},
		Observations: "pata floja",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Status != domain.OrderStatusPlaced {
		t.Fatalf("status = %q, want %q", order.Status, domain.OrderStatusPlaced)
	}
	// 500000 + 300000 services, 160000 items.
	if order.TotalCents != 960000 {
		t.Fatalf("total = %d, want 960000", order.TotalCents)
	}
	if order.Client != "García, Ana" {
		t.Fatalf("client = %q, want García, Ana", order.Client)
	}
	// Creating the order must not touch stock.
	if p, _ := repo.GetProductByID(context.Background(), "P-0001"); p.Stock != 10 {
		t.Fatalf("stock = %d, want 10 after order create", p.Stock)
	}

	// Free status assignment: jump straight to delivered, then back.
	resp, err := svc.SetOrderStatus(employeeCtx(), order.ID, domain.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if !resp.ConversionAvailable {
		t.Fatalf("conversion not flagged on delivered")
	}
	resp, err = svc.SetOrderStatus(employeeCtx(), order.ID, domain.OrderStatusInProduction)
	if err != nil {
		t.Fatalf("set status back: %v", err)
	}
	if resp.ConversionAvailable {
		t.Fatalf("conversion flagged on non-delivered status")
	}

	if _, err := svc.SetOrderStatus(employeeCtx(), order.ID, "Perdido"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("unknown status err = %v, want ErrInvalidInput", err)
	}
}

func TestOrderPaymentsAllowOverpayment(t *testing.T) {
	svc, _ := newTestService(t)

	order, err := svc.CreateOrder(employeeCtx(), domain.OrderCreateRequest{
		Services: []string{"Embalaje"},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	resp, err := svc.AddOrderPayment(employeeCtx(), order.ID, domain.OrderPaymentRequest{
		AmountCents: 100000, Method: "Efectivo",
	})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if resp.RemainingCents != 50000 {
		t.Fatalf("remaining = %d, want 50000", resp.RemainingCents)
	}

	resp, err = svc.AddOrderPayment(employeeCtx(), order.ID, domain.OrderPaymentRequest{
		AmountCents: 80000, Method: "QR",
	})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if resp.RemainingCents != -30000 {
		t.Fatalf("remaining = %d, want -30000 after overpayment", resp.RemainingCents)
	}

	if _, err := svc.AddOrderPayment(employeeCtx(), order.ID, domain.OrderPaymentRequest{AmountCents: 0, Method: "QR"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("zero payment err = %v, want ErrInvalidInput", err)
	}
}

func TestConvertOrderToSale(t *testing.T) {
	svc, repo := newTestService(t)
	seedProduct(t, repo, "P-0001", 80000, 10)

	order, err := svc.CreateOrder(employeeCtx(), domain.OrderCreateRequest{
		Services: []string{"Tapicería"},
		Items:    []domain.CartLine{cartLine("P-0001", 80000, 3)},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	sale, converted, err := svc.ConvertOrderToSale(employeeCtx(), order.ID, domain.OrderConvertRequest{InvoiceType: domain.InvoiceTypeB})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !converted {
		t.Fatalf("converted = false, want true")
	}
	if sale.SubtotalCents != order.TotalCents || sale.TotalCents != order.TotalCents {
		t.Fatalf("sale amounts = %d/%d, want both %d", sale.SubtotalCents, sale.TotalCents, order.TotalCents)
	}
	if sale.PaymentMethod != domain.PaymentMethodMixed {
		t.Fatalf("payment method = %q, want %q", sale.PaymentMethod, domain.PaymentMethodMixed)
	}
	// Item lines reach the ledger on conversion; services never do.
	if p, _ := repo.GetProductByID(context.Background(), "P-0001"); p.Stock != 7 {
		t.Fatalf("stock = %d, want 7", p.Stock)
	}
	if _, err := svc.GetOrder(context.Background(), order.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("order still exists after conversion: %v", err)
	}

	// Converting a missing order is a no-op.
	_, converted, err = svc.ConvertOrderToSale(employeeCtx(), order.ID, domain.OrderConvertRequest{InvoiceType: domain.InvoiceTypeB})
	if err != nil {
		t.Fatalf("convert missing: %v", err)
	}
	if converted {
		t.Fatalf("converted = true for missing order")
	}
	if sales, _ := repo.ListSales(context.Background()); len(sales) != 1 {
		t.Fatalf("sales = %d, want 1", len(sales))
	}
}

func TestPurchaseOrderReceiveGuard(t *testing.T) {
	svc, repo := newTestService(t)
	seedProduct(t, repo, "P-0001", 100000, 5)
	if err := repo.CreateSupplier(context.Background(), domain.Supplier{ID: "PR-0001", Name: "Maderas del Sur"}); err != nil {
		t.Fatalf("seed supplier: %v", err)
	}

	po, err := svc.CreatePurchaseOrder(employeeCtx(), domain.PurchaseOrderCreateRequest{
		SupplierID: "PR-0001",
		Items:      []domain.CartLine{{ProductID: "P-0001", Name: "producto P-0001", SupplierPriceCents: 50000, Qty: 8}},
	})
	if err != nil {
		t.Fatalf("create po: %v", err)
	}
	if po.Status != domain.PurchaseStatusPending {
		t.Fatalf("status = %q, want %q", po.Status, domain.PurchaseStatusPending)
	}
	// Lines valued at supplier cost.
	if po.TotalCents != 400000 {
		t.Fatalf("total = %d, want 400000", po.TotalCents)
	}
	if p, _ := repo.GetProductByID(context.Background(), "P-0001"); p.Stock != 5 {
		t.Fatalf("stock = %d, want 5 before receive", p.Stock)
	}

	// First receive fires the increment.
	if _, err := svc.SetPurchaseOrderStatus(employeeCtx(), po.ID, domain.PurchaseStatusReceived); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if p, _ := repo.GetProductByID(context.Background(), "P-0001"); p.Stock != 13 {
		t.Fatalf("stock = %d, want 13 after receive", p.Stock)
	}

	// Receiving an already received order is inert.
	if _, err := svc.SetPurchaseOrderStatus(employeeCtx(), po.ID, domain.PurchaseStatusReceived); err != nil {
		t.Fatalf("re-receive: %v", err)
	}
	if p, _ := repo.GetProductByID(context.Background(), "P-0001"); p.Stock != 13 {
		t.Fatalf("stock = %d, want 13 after redundant receive", p.Stock)
	}

	// Cancelling and receiving again re-fires: the guard only compares
	// against the stored Recibida status.
	if _, err := svc.SetPurchaseOrderStatus(employeeCtx(), po.ID, domain.PurchaseStatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.SetPurchaseOrderStatus(employeeCtx(), po.ID, domain.PurchaseStatusReceived); err != nil {
		t.Fatalf("receive after cancel: %v", err)
	}
	if p, _ := repo.GetProductByID(context.Background(), "P-0001"); p.Stock != 21 {
		t.Fatalf("stock = %d, want 21 after cancel-receive", p.Stock)
	}
}

func TestPurchaseOrderRequiresSupplierAndLines(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.CreatePurchaseOrder(employeeCtx(), domain.PurchaseOrderCreateRequest{
		SupplierID: "PR-9999",
		Items:      []domain.CartLine{{ProductID: "P-0001", SupplierPriceCents: 1000, Qty: 1}},
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown supplier err = %v, want ErrNotFound", err)
	}
	if _, err := svc.CreatePurchaseOrder(employeeCtx(), domain.PurchaseOrderCreateRequest{}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("empty po err = %v, want ErrInvalidInput", err)
	}
}

func TestBackupImportIsAllOrNothing(t *testing.T) {
	svc, repo := newTestService(t)
	seedProduct(t, repo, "P-0001", 100000, 5)

	// Malformed JSON leaves everything untouched.
	if err := svc.ImportBackup(ownerCtx(), []byte("{not json")); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("malformed err = %v, want ErrInvalidInput", err)
	}
	// A bundle with one bad record is rejected wholesale.
	bad := `{"products":[{"id":"P-0002","name":"ok","stock":1},{"id":"","name":"bad"}]}`
	if err := svc.ImportBackup(ownerCtx(), []byte(bad)); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("bad record err = %v, want ErrInvalidInput", err)
	}
	products, _ := repo.ListProducts(context.Background())
	if len(products) != 1 || products[0].ID != "P-0001" {
		t.Fatalf("products changed after rejected imports: %+v", products)
	}

	// A valid bundle replaces only the collections it carries.
	good := domain.BackupBundle{
		Products: &[]domain.Product{{ID: "P-0100", Name: "importado", Stock: 2}},
	}
	payload, err := json.Marshal(good)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := svc.ImportBackup(ownerCtx(), payload); err != nil {
		t.Fatalf("import: %v", err)
	}
	products, _ = repo.ListProducts(context.Background())
	if len(products) != 1 || products[0].ID != "P-0100" {
		t.Fatalf("products after import = %+v, want only P-0100", products)
	}

	// Import is owner-only.
	if err := svc.ImportBackup(employeeCtx(), payload); err == nil {
		t.Fatalf("employee import succeeded, want error")
	}
}

func TestBackupExportRoundTrips(t *testing.T) {
	svc, repo := newTestService(t)
	seedProduct(t, repo, "P-0001", 100000, 5)
	if _, err := svc.CreateClient(employeeCtx(), domain.ClientCreateRequest{FirstName: "Ana", LastName: "García"}); err != nil {
		t.Fatalf("create client: %v", err)
	}

	bundle, err := svc.ExportBackup(ownerCtx())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	payload, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"products", "clients"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("bundle missing %q key", key)
		}
	}
	if err := svc.ImportBackup(ownerCtx(), payload); err != nil {
		t.Fatalf("reimport: %v", err)
	}
}

func TestDashboardSummaryCounts(t *testing.T) {
	svc, repo := newTestService(t)
	seedProduct(t, repo, "P-0001", 100000, 0)
	seedProduct(t, repo, "P-0002", 50000, 4)
	if err := repo.CreateSupplier(context.Background(), domain.Supplier{ID: "PR-0001", Name: "Maderas"}); err != nil {
		t.Fatalf("seed supplier: %v", err)
	}

	if _, err := svc.Checkout(employeeCtx(), domain.CheckoutRequest{
		PaymentMethod: "Efectivo", InvoiceType: "B",
		Items: []domain.CartLine{cartLine("P-0002", 50000, 1)},
	}); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if _, err := svc.CreateOrder(employeeCtx(), domain.OrderCreateRequest{Services: []string{"Herrería"}}); err != nil {
		t.Fatalf("order: %v", err)
	}
	if _, err := svc.CreatePurchaseOrder(employeeCtx(), domain.PurchaseOrderCreateRequest{
		SupplierID: "PR-0001",
		Items:      []domain.CartLine{{ProductID: "P-0001", SupplierPriceCents: 40000, Qty: 2}},
	}); err != nil {
		t.Fatalf("po: %v", err)
	}

	summary, err := svc.DashboardSummary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.SalesCount != 1 || summary.RevenueCents != 50000 {
		t.Fatalf("sales = %d revenue = %d, want 1/50000", summary.SalesCount, summary.RevenueCents)
	}
	if summary.OpenOrders != 1 {
		t.Fatalf("open orders = %d, want 1", summary.OpenOrders)
	}
	if summary.PendingPurchaseOrders != 1 {
		t.Fatalf("pending pos = %d, want 1", summary.PendingPurchaseOrders)
	}
	if len(summary.OutOfStock) != 1 || summary.OutOfStock[0].ID != "P-0001" {
		t.Fatalf("out of stock = %+v, want P-0001", summary.OutOfStock)
	}
}

func TestOwnerOnlyOperationsRejectEmployees(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.ListUsers(employeeCtx()); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("employee ListUsers err = %v, want ErrOwnerRequired", err)
	}
	if _, err := svc.ExportBackup(employeeCtx()); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("employee ExportBackup err = %v, want ErrOwnerRequired", err)
	}
	if _, err := svc.ListUsers(ownerCtx()); err != nil {
		t.Fatalf("owner ListUsers err = %v", err)
	}
}
