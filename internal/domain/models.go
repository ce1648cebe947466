package domain

import "time"

// Product is the directory entry the stock ledger mutates. Stock is the
// authoritative on-hand quantity; historical documents carry frozen copies.
type Product struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Category           string `json:"category"`
	PriceCents         int64  `json:"price_cents"`
	SupplierPriceCents int64  `json:"supplier_price_cents"`
	Stock              int    `json:"stock"`
	Supplier           string `json:"supplier"`
}

type ProductCreateRequest struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Category           string `json:"category"`
	PriceCents         int64  `json:"price_cents"`
	SupplierPriceCents int64  `json:"supplier_price_cents"`
	InitialStock       int    `json:"initial_stock"`
	Supplier           string `json:"supplier"`
}

type ProductUpdateRequest struct {
	Name               *string `json:"name,omitempty"`
	Category           *string `json:"category,omitempty"`
	PriceCents         *int64  `json:"price_cents,omitempty"`
	SupplierPriceCents *int64  `json:"supplier_price_cents,omitempty"`
	Stock              *int    `json:"stock,omitempty"`
	Supplier           *string `json:"supplier,omitempty"`
}

// CartLine is a product snapshot plus a requested quantity. Once attached to a
// persisted Sale/Order/PurchaseOrder it is a frozen historical copy; later
// product edits never reach past documents.
type CartLine struct {
	ProductID          string `json:"product_id"`
	Name               string `json:"name"`
	Category           string `json:"category,omitempty"`
	PriceCents         int64  `json:"price_cents"`
	SupplierPriceCents int64  `json:"supplier_price_cents,omitempty"`
	Qty                int    `json:"qty"`
}

type Client struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ClientCreateRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Notes     string `json:"notes"`
}

type Supplier struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Rubro   string `json:"rubro"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type SupplierCreateRequest struct {
	Name    string `json:"name"`
	Rubro   string `json:"rubro"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Discount kinds.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

type Discount struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Percent     float64 `json:"percent,omitempty"`
	AmountCents int64   `json:"amount_cents,omitempty"`
	Active      bool    `json:"active"`
}

type DiscountCreateRequest struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Percent     float64 `json:"percent"`
	AmountCents int64   `json:"amount_cents"`
}

// AppliedDiscount is the record stored on a Sale: which named discount was
// used and the amount it took off at sale time.
type AppliedDiscount struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
}

// Invoice types (opaque tax tag, never interpreted).
const (
	InvoiceTypeA = "A"
	InvoiceTypeB = "B"
	InvoiceTypeX = "X"
)

// Sale is an immutable record of a completed point-of-sale transaction.
// IDs are sequential integers starting at 1001.
type Sale struct {
	ID              int64            `json:"id"`
	CreatedAt       time.Time        `json:"created_at"`
	SubtotalCents   int64            `json:"subtotal_cents"`
	TotalCents      int64            `json:"total_cents"`
	Client          string           `json:"client"`
	Items           []CartLine       `json:"items"`
	PaymentMethod   string           `json:"payment_method"`
	InvoiceType     string           `json:"invoice_type"`
	DiscountApplied *AppliedDiscount `json:"discount_applied,omitempty"`
	SurchargeCents  int64            `json:"surcharge_cents"`
}

// Surcharge kinds mirror discount kinds.
const (
	SurchargePercentage = "percentage"
	SurchargeFixed      = "fixed"
)

type CheckoutRequest struct {
	ClientID       int64      `json:"client_id"`
	PaymentMethod  string     `json:"payment_method"`
	InvoiceType    string     `json:"invoice_type"`
	DiscountID     int64      `json:"discount_id,omitempty"`
	SurchargeType  string     `json:"surcharge_type,omitempty"`
	SurchargeValue float64    `json:"surcharge_value,omitempty"`
	Items          []CartLine `json:"items"`
}

type CheckoutResponse struct {
	Sale Sale `json:"sale"`
}

// Order statuses. Assignment is free-form: any status may be set from any
// other, matching the workshop's workflow where jumps are routine.
const (
	OrderStatusPlaced       = "Encargado"
	OrderStatusInProduction = "En Producción"
	OrderStatusReady        = "Listo para Entrega"
	OrderStatusDelivered    = "Entregado"
	OrderStatusCancelled    = "Cancelado"
)

type Payment struct {
	At          time.Time `json:"at"`
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method"`
}

// Order is a custom/workshop job: selected catalog services, optional item
// lines, free-text observations and accumulated partial payments.
type Order struct {
	ID           int64            `json:"id"`
	CreatedAt    time.Time        `json:"created_at"`
	Client       string           `json:"client"`
	Email        string           `json:"email"`
	Status       string           `json:"status"`
	TotalCents   int64            `json:"total_cents"`
	Services     map[string]int64 `json:"services"`
	Items        []CartLine       `json:"items"`
	Observations string           `json:"observations,omitempty"`
	Payments     []Payment        `json:"payments"`
}

// RemainingCents is the derived outstanding balance. Overpayment is allowed,
// so the value may be negative.
func (o Order) RemainingCents() int64 {
	paid := int64(0)
	for _, p := range o.Payments {
		paid += p.AmountCents
	}
	return o.TotalCents - paid
}

type OrderCreateRequest struct {
	ClientID     int64                `json:"client_id,omitempty"`
	NewClient    *ClientCreateRequest `json:"new_client,omitempty"`
	Services     []string             `json:"services"`
	Items        []CartLine           `json:"items,omitempty"`
	Observations string               `json:"observations"`
}

type OrderStatusRequest struct {
	Status string `json:"status"`
}

type OrderStatusResponse struct {
	Order Order `json:"order"`
	// ConversionAvailable signals that the order just entered Entregado and
	// the caller may convert it into a sale (or choose to only save).
	ConversionAvailable bool `json:"conversion_available"`
}

type OrderPaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
}

type OrderPaymentResponse struct {
	Order          Order `json:"order"`
	RemainingCents int64 `json:"remaining_cents"`
}

type OrderConvertRequest struct {
	InvoiceType string `json:"invoice_type"`
}

// Purchase order statuses.
const (
	PurchaseStatusPending   = "Pendiente"
	PurchaseStatusReceived  = "Recibida"
	PurchaseStatusCancelled = "Cancelada"
)

// PurchaseOrder is a restocking request to a supplier. Its lines are valued
// at supplier cost, never at sale price.
type PurchaseOrder struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	SupplierID string     `json:"supplier_id"`
	Status     string     `json:"status"`
	Items      []CartLine `json:"items"`
	TotalCents int64      `json:"total_cents"`
}

type PurchaseOrderCreateRequest struct {
	SupplierID string     `json:"supplier_id"`
	Items      []CartLine `json:"items"`
}

type PurchaseOrderStatusRequest struct {
	Status string `json:"status"`
}

// User roles.
const (
	RoleOwner    = "owner"
	RoleEmployee = "employee"
)

// UserAccount is the persistence model for auth credentials. Password holds a
// bcrypt hash. Three failed logins in a row set Blocked.
type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"password,omitempty"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	Attempts  int       `json:"attempts"`
	Blocked   bool      `json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UserView struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	Blocked   bool      `json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// BackupBundle serializes the full set of collections as a flat keyed bundle.
// On import each collection present replaces the stored one wholesale;
// absent collections are left untouched.
type BackupBundle struct {
	Users          *[]UserAccount   `json:"usersList,omitempty"`
	Products       *[]Product       `json:"products,omitempty"`
	Sales          *[]Sale          `json:"sales,omitempty"`
	Clients        *[]Client        `json:"clients,omitempty"`
	Suppliers      *[]Supplier      `json:"suppliers,omitempty"`
	Orders         *[]Order         `json:"orders,omitempty"`
	PurchaseOrders *[]PurchaseOrder `json:"purchaseOrders,omitempty"`
	Discounts      *[]Discount      `json:"discounts,omitempty"`
}

type DashboardSummary struct {
	Date                  string    `json:"date"`
	SalesCount            int       `json:"sales_count"`
	RevenueCents          int64     `json:"revenue_cents"`
	OpenOrders            int       `json:"open_orders"`
	PendingPurchaseOrders int       `json:"pending_purchase_orders"`
	OutOfStock            []Product `json:"out_of_stock"`
	GeneratedAt           string    `json:"generated_at"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// Categories offered by the inventory forms.
var Categories = []string{"General", "Electrónica", "Muebles", "Servicios", "Materia Prima"}

// PaymentMethods accepted at the register. Converted orders are recorded with
// PaymentMethodMixed because their payments accumulated over time.
var PaymentMethods = []string{"Efectivo", "QR", "Transferencia", "Débito", "Crédito"}

const PaymentMethodMixed = "Multiple/Otro"

// ServiceCatalog is the fixed workshop service list: name to price in
// centavos. Orders must select at least one entry.
var ServiceCatalog = map[string]int64{
	"Carpintería": 500000,
	"Pinturería":  300000,
	"Embalaje":    150000,
	"Tapicería":   400000,
	"Herrería":    350000,
	"Instalación": 250000,
}

// ValidOrderStatus reports whether s is one of the known order statuses.
// The lifecycle manager still allows setting any known status from any other.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPlaced, OrderStatusInProduction, OrderStatusReady, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func ValidPurchaseStatus(s string) bool {
	switch s {
	case PurchaseStatusPending, PurchaseStatusReceived, PurchaseStatusCancelled:
		return true
	}
	return false
}

func ValidInvoiceType(s string) bool {
	switch s {
	case InvoiceTypeA, InvoiceTypeB, InvoiceTypeX:
		return true
	}
	return false
}
