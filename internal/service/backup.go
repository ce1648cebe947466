package service

import (
	"context"
	"encoding/json"
	"fmt"

	"slingerp/backend/internal/domain"
	"slingerp/backend/internal/store"
)

// ExportBackup returns the full state bundle for download.
func (s *Service) ExportBackup(ctx context.Context) (domain.BackupBundle, error) {
	if err := requireOwner(ctx); err != nil {
		return domain.BackupBundle{}, err
	}
	bundle, err := s.repo.ExportState(ctx)
	if err != nil {
		return domain.BackupBundle{}, err
	}
	s.logAudit(ctx, "backup_export", "backup", "", "")
	return bundle, nil
}

// ImportBackup parses and validates the whole payload before touching the
// store. A malformed bundle leaves every collection exactly as it was;
// collections absent from the payload are not replaced.
func (s *Service) ImportBackup(ctx context.Context, payload []byte) error {
	if err := requireOwner(ctx); err != nil {
		return err
	}

	var bundle domain.BackupBundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return fmt.Errorf("%w: malformed backup payload: %v", store.ErrInvalidInput, err)
	}
	if err := validateBundle(bundle); err != nil {
		return err
	}

	if err := s.repo.ImportState(ctx, bundle); err != nil {
		return err
	}
	s.invalidateSummary(ctx)
	s.logAudit(ctx, "backup_import", "backup", "", describeBundle(bundle))
	return nil
}

func validateBundle(b domain.BackupBundle) error {
	if b.Products != nil {
		for _, p := range *b.Products {
			if p.ID == "" || p.Stock < 0 || p.PriceCents < 0 {
				return fmt.Errorf("%w: bad product in backup", store.ErrInvalidInput)
			}
		}
	}
	if b.Sales != nil {
		for _, sale := range *b.Sales {
			if sale.ID < 1001 || sale.TotalCents < 0 {
				return fmt.Errorf("%w: bad sale in backup", store.ErrInvalidInput)
			}
		}
	}
	if b.Clients != nil {
		for _, c := range *b.Clients {
			if c.ID <= 0 {
				return fmt.Errorf("%w: bad client in backup", store.ErrInvalidInput)
			}
		}
	}
	if b.Suppliers != nil {
		for _, sup := range *b.Suppliers {
			if sup.ID == "" || sup.Name == "" {
				return fmt.Errorf("%w: bad supplier in backup", store.ErrInvalidInput)
			}
		}
	}
	if b.Orders != nil {
		for _, o := range *b.Orders {
			if o.ID <= 0 || !domain.ValidOrderStatus(o.Status) {
				return fmt.Errorf("%w: bad order in backup", store.ErrInvalidInput)
			}
		}
	}
	if b.PurchaseOrders != nil {
		for _, po := range *b.PurchaseOrders {
			if po.ID == "" || !domain.ValidPurchaseStatus(po.Status) {
				return fmt.Errorf("%w: bad purchase order in backup", store.ErrInvalidInput)
			}
		}
	}
	if b.Discounts != nil {
		for _, d := range *b.Discounts {
			if d.ID <= 0 || d.Name == "" {
				return fmt.Errorf("%w: bad discount in backup", store.ErrInvalidInput)
			}
		}
	}
	if b.Users != nil {
		for _, u := range *b.Users {
			if u.Username == "" || u.Password == "" {
				return fmt.Errorf("%w: bad user in backup", store.ErrInvalidInput)
			}
		}
	}
	return nil
}

func describeBundle(b domain.BackupBundle) string {
	count := func(present bool, n int) string {
		if !present {
			return "-"
		}
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("products=%s,sales=%s,clients=%s,suppliers=%s,orders=%s,purchaseOrders=%s,discounts=%s,users=%s",
		count(b.Products != nil, lenOrZero(b.Products)),
		count(b.Sales != nil, lenOrZero(b.Sales)),
		count(b.Clients != nil, lenOrZero(b.Clients)),
		count(b.Suppliers != nil, lenOrZero(b.Suppliers)),
		count(b.Orders != nil, lenOrZero(b.Orders)),
		count(b.PurchaseOrders != nil, lenOrZero(b.PurchaseOrders)),
		count(b.Discounts != nil, lenOrZero(b.Discounts)),
		count(b.Users != nil, lenOrZero(b.Users)))
}

func lenOrZero[T any](s *[]T) int {
	if s == nil {
		return 0
	}
	return len(*s)
}
