package service

import (
	"context"
	"fmt"
	"time"

	"slingerp/backend/internal/domain"
	"slingerp/backend/internal/stock"
	"slingerp/backend/internal/store"
	"slingerp/backend/internal/xid"
)

// CreatePurchaseOrder opens a restocking request. Lines are valued at the
// supplier cost carried on each line snapshot, never at sale price.
func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (domain.PurchaseOrder, error) {
	if req.SupplierID == "" {
		return domain.PurchaseOrder{}, fmt.Errorf("%w: supplier is required", store.ErrInvalidInput)
	}
	if _, err := s.repo.GetSupplierByID(ctx, req.SupplierID); err != nil {
		return domain.PurchaseOrder{}, err
	}
	if len(req.Items) == 0 {
		return domain.PurchaseOrder{}, fmt.Errorf("%w: at least one line is required", store.ErrInvalidInput)
	}

	var total int64
	for _, line := range req.Items {
		if line.ProductID == "" || line.Qty < 1 || line.SupplierPriceCents < 0 {
			return domain.PurchaseOrder{}, fmt.Errorf("%w: bad purchase line", store.ErrInvalidInput)
		}
		total += line.SupplierPriceCents * int64(line.Qty)
	}

	po := domain.PurchaseOrder{
		ID:         xid.Doc("OC"),
		CreatedAt:  time.Now().UTC(),
		SupplierID: req.SupplierID,
		Status:     domain.PurchaseStatusPending,
		Items:      req.Items,
		TotalCents: total,
	}
	if err := s.repo.CreatePurchaseOrder(ctx, po); err != nil {
		return domain.PurchaseOrder{}, err
	}

	s.invalidateSummary(ctx)
	s.logAudit(ctx, "purchase_create", "purchase_order", po.ID,
		fmt.Sprintf("supplier=%s,total=%d", po.SupplierID, po.TotalCents))
	return po, nil
}

func (s *Service) ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	return s.repo.ListPurchaseOrders(ctx)
}

func (s *Service) GetPurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	return s.repo.GetPurchaseOrderByID(ctx, id)
}

// SetPurchaseOrderStatus moves a purchase order between Pendiente, Recibida
// and Cancelada. The stock increment fires exactly when the new status is
// Recibida and the stored status is anything else. Receiving twice is inert;
// a cancelled order set back to Recibida receives again.
func (s *Service) SetPurchaseOrderStatus(ctx context.Context, id string, status string) (domain.PurchaseOrder, error) {
	if !domain.ValidPurchaseStatus(status) {
		return domain.PurchaseOrder{}, fmt.Errorf("%w: unknown purchase status %q", store.ErrInvalidInput, status)
	}

	stored, err := s.repo.GetPurchaseOrderByID(ctx, id)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	receive := status == domain.PurchaseStatusReceived && stored.Status != domain.PurchaseStatusReceived

	updated, err := s.repo.SetPurchaseOrderStatus(ctx, id, status)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	if receive {
		// Lines whose product vanished since the order was placed are
		// skipped by the ledger; the rest still land.
		s.ledger.ApplyBatch(ctx, updated.Items, stock.DirectionIncrement)
	}

	s.invalidateSummary(ctx)
	s.logAudit(ctx, "purchase_status", "purchase_order", updated.ID,
		fmt.Sprintf("status=%s,received=%t", status, receive))
	return updated, nil
}
