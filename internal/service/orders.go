package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slingerp/backend/internal/domain"
	"slingerp/backend/internal/pricing"
	"slingerp/backend/internal/store"
)

// CreateOrder registers a workshop job. At least one catalog service is
// required; item lines are optional extras. The total is the sum of the
// selected service prices plus the item lines, fixed at creation.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	if len(req.Services) == 0 {
		return domain.Order{}, fmt.Errorf("%w: at least one service is required", store.ErrInvalidInput)
	}
	services := make(map[string]int64, len(req.Services))
	for _, name := range req.Services {
		price, ok := domain.ServiceCatalog[name]
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: unknown service %q", store.ErrInvalidInput, name)
		}
		services[name] = price
	}
	for _, line := range req.Items {
		if line.ProductID == "" || line.Qty < 1 || line.PriceCents < 0 {
			return domain.Order{}, fmt.Errorf("%w: bad item line", store.ErrInvalidInput)
		}
	}

	var clientName, clientEmail string
	if req.NewClient != nil {
		client, err := s.CreateClient(ctx, *req.NewClient)
		if err != nil {
			return domain.Order{}, err
		}
		clientName = clientDisplayName(client)
		clientEmail = client.Email
	} else {
		var err error
		clientName, clientEmail, err = s.resolveClient(ctx, req.ClientID)
		if err != nil {
			return domain.Order{}, err
		}
	}

	var total int64
	for _, price := range services {
		total += price
	}
	total += pricing.Subtotal(req.Items)

	order := domain.Order{
		CreatedAt:    time.Now().UTC(),
		Client:       clientName,
		Email:        clientEmail,
		Status:       domain.OrderStatusPlaced,
		TotalCents:   total,
		Services:     services,
		Items:        req.Items,
		Observations: req.Observations,
		Payments:     []domain.Payment{},
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}
	s.invalidateSummary(ctx)
	s.logAudit(ctx, "order_create", "order", fmt.Sprintf("%d", created.ID),
		fmt.Sprintf("client=%s,total=%d", created.Client, created.TotalCents))
	return created, nil
}

func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx)
}

func (s *Service) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.repo.GetOrderByID(ctx, id)
}

// SetOrderStatus assigns a new status unconditionally. Any known status can
// follow any other; the workshop jumps and rolls back steps all the time.
// Reaching Entregado only signals that conversion to a sale is now available.
func (s *Service) SetOrderStatus(ctx context.Context, id int64, status string) (domain.OrderStatusResponse, error) {
	if !domain.ValidOrderStatus(status) {
		return domain.OrderStatusResponse{}, fmt.Errorf("%w: unknown order status %q", store.ErrInvalidInput, status)
	}

	order, err := s.repo.SetOrderStatus(ctx, id, status)
	if err != nil {
		return domain.OrderStatusResponse{}, err
	}

	s.invalidateSummary(ctx)
	s.notifier.OrderStatusChanged(order.ID, order.Client, order.Email, order.Status)
	s.logAudit(ctx, "order_status", "order", fmt.Sprintf("%d", order.ID), "status="+status)
	return domain.OrderStatusResponse{
		Order:               order,
		ConversionAvailable: status == domain.OrderStatusDelivered,
	}, nil
}

// AddOrderPayment appends a partial payment. Amounts have no upper bound, so
// the remaining balance may go negative on overpayment.
func (s *Service) AddOrderPayment(ctx context.Context, id int64, req domain.OrderPaymentRequest) (domain.OrderPaymentResponse, error) {
	if req.AmountCents <= 0 {
		return domain.OrderPaymentResponse{}, fmt.Errorf("%w: payment amount must be positive", store.ErrInvalidInput)
	}
	if !validPaymentMethod(req.Method) {
		return domain.OrderPaymentResponse{}, fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidInput, req.Method)
	}

	order, err := s.repo.AppendOrderPayment(ctx, id, domain.Payment{
		At:          time.Now().UTC(),
		AmountCents: req.AmountCents,
		Method:      req.Method,
	})
	if err != nil {
		return domain.OrderPaymentResponse{}, err
	}

	s.logAudit(ctx, "order_payment", "order", fmt.Sprintf("%d", order.ID),
		fmt.Sprintf("amount=%d,method=%s", req.AmountCents, req.Method))
	return domain.OrderPaymentResponse{
		Order:          order,
		RemainingCents: order.RemainingCents(),
	}, nil
}

// ConvertOrderToSale closes a delivered order as a sale. The sale carries the
// order's total as both subtotal and total (pricing already happened when the
// order was created) and only the item lines reach the stock ledger; services
// have no inventory effect. The order is deleted once the sale exists.
// A missing order is a no-op: converted comes back false and nothing changes.
func (s *Service) ConvertOrderToSale(ctx context.Context, id int64, req domain.OrderConvertRequest) (domain.Sale, bool, error) {
	if !domain.ValidInvoiceType(req.InvoiceType) {
		return domain.Sale{}, false, fmt.Errorf("%w: unknown invoice type %q", store.ErrInvalidInput, req.InvoiceType)
	}

	order, err := s.repo.GetOrderByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Sale{}, false, nil
	}
	if err != nil {
		return domain.Sale{}, false, err
	}

	sale := domain.Sale{
		CreatedAt:     time.Now().UTC(),
		SubtotalCents: order.TotalCents,
		TotalCents:    order.TotalCents,
		Client:        order.Client,
		Items:         order.Items,
		PaymentMethod: domain.PaymentMethodMixed,
		InvoiceType:   req.InvoiceType,
	}
	persisted, err := s.recordSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, false, err
	}

	if err := s.repo.DeleteOrder(ctx, order.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Sale{}, false, err
	}

	s.notifier.OrderConverted(order.ID, persisted.ID, order.Client)
	s.logAudit(ctx, "order_convert", "order", fmt.Sprintf("%d", order.ID),
		fmt.Sprintf("sale=%d,total=%d", persisted.ID, persisted.TotalCents))
	return persisted, true, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}
	s.invalidateSummary(ctx)
	s.logAudit(ctx, "order_delete", "order", fmt.Sprintf("%d", id), "")
	return nil
}
