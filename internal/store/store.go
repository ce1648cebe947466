package store

import (
	"context"
	"errors"

	"slingerp/backend/internal/domain"
)

var (
	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput means the request failed validation and no state changed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAccountBlocked means the account exists but is blocked after
	// repeated failed logins.
	ErrAccountBlocked = errors.New("account blocked")
)

// Repository is the persistence contract shared by the in-memory and
// PostgreSQL stores.
type Repository interface {
	// Products.
	CreateProduct(ctx context.Context, p domain.Product) error
	GetProductByID(ctx context.Context, id string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	// SetProductStock overwrites the on-hand quantity. Callers compute the
	// new value under the ledger mutex.
	SetProductStock(ctx context.Context, id string, stock int) error

	// Sales. CreateSale assigns the sequential id (1001 when the history is
	// empty, max+1 otherwise) under the store's own lock and returns the
	// persisted record.
	CreateSale(ctx context.Context, sale domain.Sale) (domain.Sale, error)
	GetSaleByID(ctx context.Context, id int64) (domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)

	// Clients.
	CreateClient(ctx context.Context, c domain.Client) (domain.Client, error)
	GetClientByID(ctx context.Context, id int64) (domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
	UpdateClient(ctx context.Context, c domain.Client) error
	DeleteClient(ctx context.Context, id int64) error

	// Suppliers.
	CreateSupplier(ctx context.Context, s domain.Supplier) error
	GetSupplierByID(ctx context.Context, id string) (domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	UpdateSupplier(ctx context.Context, s domain.Supplier) error
	DeleteSupplier(ctx context.Context, id string) error

	// Discounts.
	CreateDiscount(ctx context.Context, d domain.Discount) (domain.Discount, error)
	GetDiscountByID(ctx context.Context, id int64) (domain.Discount, error)
	ListDiscounts(ctx context.Context) ([]domain.Discount, error)
	UpdateDiscount(ctx context.Context, d domain.Discount) error
	DeleteDiscount(ctx context.Context, id int64) error

	// Orders. CreateOrder assigns the next sequential order id.
	CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error)
	GetOrderByID(ctx context.Context, id int64) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	SetOrderStatus(ctx context.Context, id int64, status string) (domain.Order, error)
	AppendOrderPayment(ctx context.Context, id int64, payment domain.Payment) (domain.Order, error)
	DeleteOrder(ctx context.Context, id int64) error

	// Purchase orders.
	CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error
	GetPurchaseOrderByID(ctx context.Context, id string) (domain.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error)
	SetPurchaseOrderStatus(ctx context.Context, id string, status string) (domain.PurchaseOrder, error)

	// Users.
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
	// UpdateUserLoginState persists the failed-attempt counter and blocked flag.
	UpdateUserLoginState(ctx context.Context, username string, attempts int, blocked bool) error

	// Backup. ExportState returns a full bundle; ImportState replaces every
	// collection present in the bundle and leaves absent ones untouched.
	// The swap is all-or-nothing.
	ExportState(ctx context.Context) (domain.BackupBundle, error)
	ImportState(ctx context.Context, bundle domain.BackupBundle) error

	// Audit trail.
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}
