package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"slingerp/backend/internal/domain"
	"slingerp/backend/internal/store"
	"slingerp/backend/internal/xid"
)

// Products.

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.ID = strings.ToUpper(strings.TrimSpace(req.ID))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.ID == "" {
		req.ID = xid.Doc("P")
	}
	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: product name is required", store.ErrInvalidInput)
	}
	if req.PriceCents < 0 || req.SupplierPriceCents < 0 || req.InitialStock < 0 {
		return domain.Product{}, fmt.Errorf("%w: negative amounts", store.ErrInvalidInput)
	}

	product := domain.Product{
		ID:                 req.ID,
		Name:               req.Name,
		Category:           req.Category,
		PriceCents:         req.PriceCents,
		SupplierPriceCents: req.SupplierPriceCents,
		Stock:              req.InitialStock,
		Supplier:           strings.TrimSpace(req.Supplier),
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_create", "product", product.ID,
		fmt.Sprintf("name=%s,price=%d,stock=%d", product.Name, product.PriceCents, product.Stock))
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: product name is required", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return domain.Product{}, fmt.Errorf("%w: negative price", store.ErrInvalidInput)
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.SupplierPriceCents != nil {
		if *req.SupplierPriceCents < 0 {
			return domain.Product{}, fmt.Errorf("%w: negative supplier price", store.ErrInvalidInput)
		}
		updated.SupplierPriceCents = *req.SupplierPriceCents
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, fmt.Errorf("%w: negative stock", store.ErrInvalidInput)
		}
		updated.Stock = *req.Stock
	}
	if req.Supplier != nil {
		updated.Supplier = strings.TrimSpace(*req.Supplier)
	}

	if err := s.repo.UpdateProduct(ctx, updated); err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_update", "product", updated.ID, "")
	return updated, nil
}

// DeleteProduct removes a product from the directory. Historical documents
// keep their frozen snapshots of it; future batch lines naming it are skipped.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

// Clients.

func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.repo.ListClients(ctx)
}

func (s *Service) CreateClient(ctx context.Context, req domain.ClientCreateRequest) (domain.Client, error) {
	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	if first == "" && last == "" {
		return domain.Client{}, fmt.Errorf("%w: client name is required", store.ErrInvalidInput)
	}

	client := domain.Client{
		FirstName: first,
		LastName:  last,
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.repo.CreateClient(ctx, client)
	if err != nil {
		return domain.Client{}, err
	}
	s.logAudit(ctx, "client_create", "client", fmt.Sprintf("%d", created.ID), clientDisplayName(created))
	return created, nil
}

func (s *Service) UpdateClient(ctx context.Context, c domain.Client) (domain.Client, error) {
	if strings.TrimSpace(c.FirstName) == "" && strings.TrimSpace(c.LastName) == "" {
		return domain.Client{}, fmt.Errorf("%w: client name is required", store.ErrInvalidInput)
	}
	if err := s.repo.UpdateClient(ctx, c); err != nil {
		return domain.Client{}, err
	}
	s.logAudit(ctx, "client_update", "client", fmt.Sprintf("%d", c.ID), "")
	return c, nil
}

func (s *Service) DeleteClient(ctx context.Context, id int64) error {
	if err := s.repo.DeleteClient(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "client_delete", "client", fmt.Sprintf("%d", id), "")
	return nil
}

// Suppliers.

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Supplier{}, fmt.Errorf("%w: supplier name is required", store.ErrInvalidInput)
	}

	supplier := domain.Supplier{
		ID:      xid.Doc("PR"),
		Name:    name,
		Rubro:   strings.TrimSpace(req.Rubro),
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.TrimSpace(req.Email),
		Address: strings.TrimSpace(req.Address),
	}
	if err := s.repo.CreateSupplier(ctx, supplier); err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "supplier_create", "supplier", supplier.ID, supplier.Name)
	return supplier, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, sup domain.Supplier) (domain.Supplier, error) {
	if strings.TrimSpace(sup.Name) == "" {
		return domain.Supplier{}, fmt.Errorf("%w: supplier name is required", store.ErrInvalidInput)
	}
	if err := s.repo.UpdateSupplier(ctx, sup); err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "supplier_update", "supplier", sup.ID, "")
	return sup, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	if err := s.repo.DeleteSupplier(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "supplier_delete", "supplier", id, "")
	return nil
}

// Discounts. Managing the discount list is an owner operation; applying a
// discount at the register is not.

func (s *Service) ListDiscounts(ctx context.Context) ([]domain.Discount, error) {
	return s.repo.ListDiscounts(ctx)
}

func (s *Service) CreateDiscount(ctx context.Context, req domain.DiscountCreateRequest) (domain.Discount, error) {
	if err := requireOwner(ctx); err != nil {
		return domain.Discount{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Discount{}, fmt.Errorf("%w: discount name is required", store.ErrInvalidInput)
	}

	discount := domain.Discount{Name: name, Type: req.Type, Active: true}
	switch req.Type {
	case domain.DiscountPercentage:
		if req.Percent <= 0 || req.Percent > 100 {
			return domain.Discount{}, fmt.Errorf("%w: percent out of range", store.ErrInvalidInput)
		}
		discount.Percent = req.Percent
	case domain.DiscountFixed:
		if req.AmountCents <= 0 {
			return domain.Discount{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalidInput)
		}
		discount.AmountCents = req.AmountCents
	default:
		return domain.Discount{}, fmt.Errorf("%w: unknown discount type %q", store.ErrInvalidInput, req.Type)
	}

	created, err := s.repo.CreateDiscount(ctx, discount)
	if err != nil {
		return domain.Discount{}, err
	}
	s.logAudit(ctx, "discount_create", "discount", fmt.Sprintf("%d", created.ID), created.Name)
	return created, nil
}

func (s *Service) UpdateDiscount(ctx context.Context, d domain.Discount) (domain.Discount, error) {
	if err := requireOwner(ctx); err != nil {
		return domain.Discount{}, err
	}
	if err := s.repo.UpdateDiscount(ctx, d); err != nil {
		return domain.Discount{}, err
	}
	s.logAudit(ctx, "discount_update", "discount", fmt.Sprintf("%d", d.ID), "")
	return d, nil
}

func (s *Service) DeleteDiscount(ctx context.Context, id int64) error {
	if err := requireOwner(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteDiscount(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "discount_delete", "discount", fmt.Sprintf("%d", id), "")
	return nil
}

// Users. Owner only.

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserView, error) {
	if err := requireOwner(ctx); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]domain.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, domain.UserView{
			Username:  u.Username,
			Role:      u.Role,
			Active:    u.Active,
			Blocked:   u.Blocked,
			CreatedAt: u.CreatedAt,
		})
	}
	return views, nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserView, error) {
	if err := requireOwner(ctx); err != nil {
		return domain.UserView{}, err
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 || strings.ContainsAny(username, " \t\r\n") {
		return domain.UserView{}, fmt.Errorf("%w: username must be at least 4 characters without spaces", store.ErrInvalidInput)
	}
	if len(req.Password) < 6 {
		return domain.UserView{}, fmt.Errorf("%w: password must be at least 6 characters", store.ErrInvalidInput)
	}
	if req.Role != domain.RoleOwner && req.Role != domain.RoleEmployee {
		return domain.UserView{}, fmt.Errorf("%w: unknown role %q", store.ErrInvalidInput, req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.UserView{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := domain.UserAccount{
		Username:  username,
		Password:  string(hash),
		Role:      req.Role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.UserView{}, err
	}
	s.logAudit(ctx, "user_create", "user", username, "role="+req.Role)
	return domain.UserView{
		Username:  user.Username,
		Role:      user.Role,
		Active:    user.Active,
		CreatedAt: user.CreatedAt,
	}, nil
}

// UnblockUser clears the failed-attempt counter and blocked flag.
func (s *Service) UnblockUser(ctx context.Context, username string) error {
	if err := requireOwner(ctx); err != nil {
		return err
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if err := s.repo.UpdateUserLoginState(ctx, username, 0, false); err != nil {
		return err
	}
	s.logAudit(ctx, "user_unblock", "user", username, "")
	return nil
}

func requireOwner(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOwner {
		return ErrOwnerRequired
	}
	return nil
}
