package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"slingerp/backend/internal/cache"
	"slingerp/backend/internal/domain"
	"slingerp/backend/internal/notify"
	"slingerp/backend/internal/pricing"
	"slingerp/backend/internal/stock"
	"slingerp/backend/internal/store"
	"slingerp/backend/internal/xid"
)

// ErrOwnerRequired means the acting user lacks the owner role needed for
// the requested operation.
var ErrOwnerRequired = errors.New("owner role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const summaryCacheTTL = 60 * time.Second

type Service struct {
	repo     store.Repository
	ledger   *stock.Ledger
	notifier notify.Notifier
	summary  cache.SummaryCache
}

func New(repo store.Repository, ledger *stock.Ledger, notifier notify.Notifier, summary cache.SummaryCache) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if summary == nil {
		summary = cache.NoopSummaryCache{}
	}
	return &Service{
		repo:     repo,
		ledger:   ledger,
		notifier: notifier,
		summary:  summary,
	}
}

// Checkout prices the cart, persists the sale and then adjusts stock.
// The sale record is built entirely from the request's frozen line snapshots;
// the product directory is only consulted afterwards by the ledger, which
// skips lines whose product no longer exists.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Sale, error) {
	if len(req.Items) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: empty cart", store.ErrInvalidInput)
	}
	for _, line := range req.Items {
		if line.ProductID == "" || line.Qty < 1 || line.PriceCents < 0 {
			return domain.Sale{}, fmt.Errorf("%w: bad cart line", store.ErrInvalidInput)
		}
	}
	if !validPaymentMethod(req.PaymentMethod) {
		return domain.Sale{}, fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidInput, req.PaymentMethod)
	}
	if !domain.ValidInvoiceType(req.InvoiceType) {
		return domain.Sale{}, fmt.Errorf("%w: unknown invoice type %q", store.ErrInvalidInput, req.InvoiceType)
	}

	clientName, _, err := s.resolveClient(ctx, req.ClientID)
	if err != nil {
		return domain.Sale{}, err
	}

	subtotal := pricing.Subtotal(req.Items)

	var applied *domain.AppliedDiscount
	var discountCents int64
	if req.DiscountID != 0 {
		discount, err := s.repo.GetDiscountByID(ctx, req.DiscountID)
		if err != nil {
			return domain.Sale{}, err
		}
		if !discount.Active {
			return domain.Sale{}, fmt.Errorf("%w: discount %q is inactive", store.ErrInvalidInput, discount.Name)
		}
		discountCents = pricing.DiscountAmount(subtotal, discount)
		applied = &domain.AppliedDiscount{Name: discount.Name, AmountCents: discountCents}
	}

	surchargeCents := pricing.SurchargeAmount(subtotal, req.SurchargeType, req.SurchargeValue)
	total := pricing.Total(subtotal, discountCents, surchargeCents)

	sale := domain.Sale{
		CreatedAt:       time.Now().UTC(),
		SubtotalCents:   subtotal,
		TotalCents:      total,
		Client:          clientName,
		Items:           req.Items,
		PaymentMethod:   req.PaymentMethod,
		InvoiceType:     req.InvoiceType,
		DiscountApplied: applied,
		SurchargeCents:  surchargeCents,
	}

	persisted, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	// Stock is adjusted with the original requested quantities, after the
	// sale exists. Shortfalls clamp at zero inside the ledger.
	s.ledger.ApplyBatch(ctx, persisted.Items, stock.DirectionDecrement)

	s.invalidateSummary(ctx)
	s.notifier.SaleRecorded(persisted.ID, persisted.Client, persisted.TotalCents)
	s.logAudit(ctx, "sale_create", "sale", fmt.Sprintf("%d", persisted.ID),
		fmt.Sprintf("client=%s,total=%d,method=%s", persisted.Client, persisted.TotalCents, persisted.PaymentMethod))
	return persisted, nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	return s.repo.GetSaleByID(ctx, id)
}

// recordSale persists an already-priced sale and applies its stock effect.
// Used by order conversion, which arrives with subtotal and total fixed.
func (s *Service) recordSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	persisted, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}
	s.ledger.ApplyBatch(ctx, persisted.Items, stock.DirectionDecrement)
	s.invalidateSummary(ctx)
	return persisted, nil
}

// DashboardSummary aggregates today's activity, served from the cache when a
// fresh copy exists.
func (s *Service) DashboardSummary(ctx context.Context) (domain.DashboardSummary, error) {
	today := time.Now().UTC().Format("2006-01-02")
	key := summaryCacheKey(today)

	if cached, ok, err := s.summary.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: summary cache read failed: %v", err)
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	purchaseOrders, err := s.repo.ListPurchaseOrders(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	summary := domain.DashboardSummary{
		Date:        today,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		OutOfStock:  []domain.Product{},
	}
	for _, sale := range sales {
		if sale.CreatedAt.UTC().Format("2006-01-02") != today {
			continue
		}
		summary.SalesCount++
		summary.RevenueCents += sale.TotalCents
	}
	for _, o := range orders {
		if o.Status != domain.OrderStatusDelivered && o.Status != domain.OrderStatusCancelled {
			summary.OpenOrders++
		}
	}
	for _, po := range purchaseOrders {
		if po.Status == domain.PurchaseStatusPending {
			summary.PendingPurchaseOrders++
		}
	}
	for _, p := range products {
		if p.Stock == 0 {
			summary.OutOfStock = append(summary.OutOfStock, p)
		}
	}

	if err := s.summary.Set(ctx, key, &summary, summaryCacheTTL); err != nil {
		log.Printf("[service] WARN: summary cache write failed: %v", err)
	}
	return summary, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, limit)
}

// ServiceCatalog exposes the fixed workshop service list.
func (s *Service) ServiceCatalog() map[string]int64 {
	out := make(map[string]int64, len(domain.ServiceCatalog))
	for name, price := range domain.ServiceCatalog {
		out[name] = price
	}
	return out
}

// resolveClient maps a client id to its display name and email. Id zero is
// the anonymous walk-in customer.
func (s *Service) resolveClient(ctx context.Context, clientID int64) (name string, email string, err error) {
	if clientID == 0 {
		return "Consumidor Final", "", nil
	}
	client, err := s.repo.GetClientByID(ctx, clientID)
	if err != nil {
		return "", "", err
	}
	return clientDisplayName(client), client.Email, nil
}

func clientDisplayName(c domain.Client) string {
	last := strings.TrimSpace(c.LastName)
	first := strings.TrimSpace(c.FirstName)
	switch {
	case last != "" && first != "":
		return last + ", " + first
	case last != "":
		return last
	case first != "":
		return first
	}
	return "Consumidor Final"
}

func validPaymentMethod(method string) bool {
	if method == domain.PaymentMethodMixed {
		return true
	}
	for _, m := range domain.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

func summaryCacheKey(date string) string {
	return "dashboard:summary:" + date
}

func (s *Service) invalidateSummary(ctx context.Context) {
	key := summaryCacheKey(time.Now().UTC().Format("2006-01-02"))
	if err := s.summary.Invalidate(ctx, key); err != nil {
		log.Printf("[service] WARN: summary cache invalidate failed: %v", err)
	}
}

func (s *Service) logAudit(ctx context.Context, action, entityType, entityID, detail string) {
	actor, _ := ActorFromContext(ctx)
	entry := domain.AuditLog{
		ID:         xid.New("log"),
		Actor:      actor.Username,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s: %v", action, err)
	}
}
