package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"slingerp/backend/internal/domain"
	"slingerp/backend/internal/store"
)

type Store struct {
	mu               sync.RWMutex
	productsByID     map[string]domain.Product
	salesByID        map[int64]domain.Sale
	clientsByID      map[int64]domain.Client
	nextClientID     int64
	suppliersByID    map[string]domain.Supplier
	discountsByID    map[int64]domain.Discount
	nextDiscountID   int64
	ordersByID       map[int64]domain.Order
	purchaseOrders   map[string]domain.PurchaseOrder
	usersByUsername  map[string]domain.UserAccount
	auditLogs        []domain.AuditLog
}

// New returns an empty store. Used by tests that care about id sequences.
func New() *Store {
	return &Store{
		productsByID:    make(map[string]domain.Product),
		salesByID:       make(map[int64]domain.Sale),
		clientsByID:     make(map[int64]domain.Client),
		nextClientID:    1,
		suppliersByID:   make(map[string]domain.Supplier),
		discountsByID:   make(map[int64]domain.Discount),
		nextDiscountID:  1,
		ordersByID:      make(map[int64]domain.Order),
		purchaseOrders:  make(map[string]domain.PurchaseOrder),
		usersByUsername: make(map[string]domain.UserAccount),
		auditLogs:       make([]domain.AuditLog, 0, 128),
	}
}

// NewSeeded returns a store loaded with the demo catalog: products,
// suppliers, clients, discounts and user accounts for dev mode.
func NewSeeded() *Store {
	s := New()

	products := []domain.Product{
		{ID: "P-0001", Name: "Silla de Roble", Category: "Muebles", PriceCents: 4500000, SupplierPriceCents: 2500000, Stock: 12, Supplier: "Maderas del Sur"},
		{ID: "P-0002", Name: "Mesa Ratona", Category: "Muebles", PriceCents: 7800000, SupplierPriceCents: 4200000, Stock: 5, Supplier: "Maderas del Sur"},
		{ID: "P-0003", Name: "Lámpara de Pie", Category: "Electrónica", PriceCents: 3200000, SupplierPriceCents: 1800000, Stock: 8, Supplier: "ElectroHogar"},
		{ID: "P-0004", Name: "Barniz Mate 1L", Category: "Materia Prima", PriceCents: 850000, SupplierPriceCents: 450000, Stock: 30, Supplier: "Pinturas Norte"},
		{ID: "P-0005", Name: "Estantería Pino", Category: "Muebles", PriceCents: 5600000, SupplierPriceCents: 3100000, Stock: 3, Supplier: "Maderas del Sur"},
		{ID: "P-0006", Name: "Tela Tapicería m²", Category: "Materia Prima", PriceCents: 620000, SupplierPriceCents: 310000, Stock: 45, Supplier: "Textiles Central"},
		{ID: "P-0007", Name: "Sillón Dos Cuerpos", Category: "Muebles", PriceCents: 15500000, SupplierPriceCents: 9000000, Stock: 2, Supplier: "Maderas del Sur"},
		{ID: "P-0008", Name: "Tornillos Caja x100", Category: "Materia Prima", PriceCents: 180000, SupplierPriceCents: 90000, Stock: 60, Supplier: "Ferretería Industrial"},
		{ID: "P-0009", Name: "Velador Nórdico", Category: "Muebles", PriceCents: 2900000, SupplierPriceCents: 1500000, Stock: 0, Supplier: "Maderas del Sur"},
		{ID: "P-0010", Name: "Cable Textil metro", Category: "Electrónica", PriceCents: 95000, SupplierPriceCents: 40000, Stock: 100, Supplier: "ElectroHogar"},
	}
	for _, p := range products {
		s.productsByID[p.ID] = p
	}

	suppliers := []domain.Supplier{
		{ID: "PR-0001", Name: "Maderas del Sur", Rubro: "Madera", Phone: "11-4444-0001", Email: "ventas@maderasdelsur.com", Address: "Ruta 8 Km 42"},
		{ID: "PR-0002", Name: "ElectroHogar", Rubro: "Electrónica", Phone: "11-4444-0002", Email: "pedidos@electrohogar.com", Address: "Av. Rivadavia 5500"},
		{ID: "PR-0003", Name: "Pinturas Norte", Rubro: "Pinturas", Phone: "11-4444-0003", Email: "info@pinturasnorte.com", Address: "Calle 12 N° 830"},
		{ID: "PR-0004", Name: "Textiles Central", Rubro: "Telas", Phone: "11-4444-0004", Email: "hola@textilescentral.com", Address: "Av. San Martín 2210"},
	}
	for _, sup := range suppliers {
		s.suppliersByID[sup.ID] = sup
	}

	now := time.Now().UTC()
	clients := []domain.Client{
		{ID: 1, FirstName: "Ana", LastName: "García", Email: "ana.garcia@mail.com", Phone: "11-5555-0001", Address: "Belgrano 120", CreatedAt: now},
		{ID: 2, FirstName: "Bruno", LastName: "Paz", Email: "bruno.paz@mail.com", Phone: "11-5555-0002", Address: "Mitre 456", CreatedAt: now},
		{ID: 3, FirstName: "Carla", LastName: "Suárez", Email: "carla.suarez@mail.com", Phone: "11-5555-0003", Address: "Alsina 78", Notes: "Retira en taller", CreatedAt: now},
	}
	for _, c := range clients {
		s.clientsByID[c.ID] = c
	}
	s.nextClientID = 4

	discounts := []domain.Discount{
		{ID: 1, Name: "Efectivo", Type: domain.DiscountPercentage, Percent: 10, Active: true},
		{ID: 2, Name: "Promo Verano", Type: domain.DiscountFixed, AmountCents: 500000, Active: true},
		{ID: 3, Name: "Cliente VIP", Type: domain.DiscountPercentage, Percent: 15, Active: false},
	}
	for _, d := range discounts {
		s.discountsByID[d.ID] = d
	}
	s.nextDiscountID = 4

	s.usersByUsername = seedUsers()
	return s
}

// seedUsers builds the dev accounts. Passwords come from SEED_OWNER_PASSWORD
// and SEED_EMPLOYEE_PASSWORD; hardcoded defaults are used with a warning when
// unset. Production deployments use PostgreSQL and real accounts.
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "dueno123")
	employeePwd := envOr("SEED_EMPLOYEE_PASSWORD", "vendedor123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_EMPLOYEE_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD and SEED_EMPLOYEE_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"dueno", ownerPwd, domain.RoleOwner},
		{"vendedor", employeePwd, domain.RoleEmployee},
		{"taller", employeePwd, domain.RoleEmployee},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Products.

func (s *Store) CreateProduct(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" || p.Name == "" || p.PriceCents < 0 || p.Stock < 0 {
		return store.ErrInvalidInput
	}
	if _, exists := s.productsByID[p.ID]; exists {
		return store.ErrInvalidInput
	}
	s.productsByID[p.ID] = p
	return nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.productsByID[id]
	if !ok {
		return domain.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.ID, b.ID)
	})
	return products, nil
}

func (s *Store) UpdateProduct(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.productsByID[p.ID]; !ok {
		return store.ErrNotFound
	}
	if p.Name == "" || p.PriceCents < 0 || p.Stock < 0 {
		return store.ErrInvalidInput
	}
	s.productsByID[p.ID] = p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.productsByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.productsByID, id)
	return nil
}

func (s *Store) SetProductStock(_ context.Context, id string, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.productsByID[id]
	if !ok {
		return store.ErrNotFound
	}
	if stock < 0 {
		return store.ErrInvalidInput
	}
	p.Stock = stock
	s.productsByID[id] = p
	return nil
}

// Sales.

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale.ID = s.nextSaleIDLocked()
	sale.Items = cloneLines(sale.Items)
	s.salesByID[sale.ID] = sale
	return sale, nil
}

// nextSaleIDLocked returns 1001 for an empty history and max+1 otherwise.
// Deleting historical sales can therefore reuse ids; the history is treated
// as append-only upstream.
func (s *Store) nextSaleIDLocked() int64 {
	next := int64(1001)
	for id := range s.salesByID {
		if id+1 > next {
			next = id + 1
		}
	}
	return next
}

func (s *Store) GetSaleByID(_ context.Context, id int64) (domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return domain.Sale{}, store.ErrNotFound
	}
	sale.Items = cloneLines(sale.Items)
	return sale, nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		sale.Items = cloneLines(sale.Items)
		sales = append(sales, sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return int(b.ID - a.ID)
	})
	return sales, nil
}

// Clients.

func (s *Store) CreateClient(_ context.Context, c domain.Client) (domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.FirstName == "" && c.LastName == "" {
		return domain.Client{}, store.ErrInvalidInput
	}
	c.ID = s.nextClientID
	s.nextClientID++
	s.clientsByID[c.ID] = c
	return c, nil
}

func (s *Store) GetClientByID(_ context.Context, id int64) (domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clientsByID[id]
	if !ok {
		return domain.Client{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListClients(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]domain.Client, 0, len(s.clientsByID))
	for _, c := range s.clientsByID {
		clients = append(clients, c)
	}
	slices.SortFunc(clients, func(a, b domain.Client) int {
		return int(a.ID - b.ID)
	})
	return clients, nil
}

func (s *Store) UpdateClient(_ context.Context, c domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clientsByID[c.ID]; !ok {
		return store.ErrNotFound
	}
	s.clientsByID[c.ID] = c
	return nil
}

func (s *Store) DeleteClient(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clientsByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.clientsByID, id)
	return nil
}

// Suppliers.

func (s *Store) CreateSupplier(_ context.Context, sup domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sup.ID == "" || sup.Name == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.suppliersByID[sup.ID]; exists {
		return store.ErrInvalidInput
	}
	s.suppliersByID[sup.ID] = sup
	return nil
}

func (s *Store) GetSupplierByID(_ context.Context, id string) (domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sup, ok := s.suppliersByID[id]
	if !ok {
		return domain.Supplier{}, store.ErrNotFound
	}
	return sup, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return strings.Compare(a.ID, b.ID)
	})
	return suppliers, nil
}

func (s *Store) UpdateSupplier(_ context.Context, sup domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliersByID[sup.ID]; !ok {
		return store.ErrNotFound
	}
	if sup.Name == "" {
		return store.ErrInvalidInput
	}
	s.suppliersByID[sup.ID] = sup
	return nil
}

func (s *Store) DeleteSupplier(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliersByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.suppliersByID, id)
	return nil
}

// Discounts.

func (s *Store) CreateDiscount(_ context.Context, d domain.Discount) (domain.Discount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.Name == "" {
		return domain.Discount{}, store.ErrInvalidInput
	}
	d.ID = s.nextDiscountID
	s.nextDiscountID++
	s.discountsByID[d.ID] = d
	return d, nil
}

func (s *Store) GetDiscountByID(_ context.Context, id int64) (domain.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.discountsByID[id]
	if !ok {
		return domain.Discount{}, store.ErrNotFound
	}
	return d, nil
}

func (s *Store) ListDiscounts(_ context.Context) ([]domain.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	discounts := make([]domain.Discount, 0, len(s.discountsByID))
	for _, d := range s.discountsByID {
		discounts = append(discounts, d)
	}
	slices.SortFunc(discounts, func(a, b domain.Discount) int {
		return int(a.ID - b.ID)
	})
	return discounts, nil
}

func (s *Store) UpdateDiscount(_ context.Context, d domain.Discount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.discountsByID[d.ID]; !ok {
		return store.ErrNotFound
	}
	if d.Name == "" {
		return store.ErrInvalidInput
	}
	s.discountsByID[d.ID] = d
	return nil
}

func (s *Store) DeleteDiscount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.discountsByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.discountsByID, id)
	return nil
}

// Orders.

func (s *Store) CreateOrder(_ context.Context, o domain.Order) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = s.nextOrderIDLocked()
	o.Items = cloneLines(o.Items)
	o.Payments = clonePayments(o.Payments)
	o.Services = cloneServices(o.Services)
	s.ordersByID[o.ID] = o
	return o, nil
}

func (s *Store) nextOrderIDLocked() int64 {
	next := int64(5001)
	for id := range s.ordersByID {
		if id+1 > next {
			next = id + 1
		}
	}
	return next
}

func (s *Store) GetOrderByID(_ context.Context, id int64) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.ordersByID[id]
	if !ok {
		return domain.Order{}, store.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrders(_ context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.ordersByID))
	for _, o := range s.ordersByID {
		orders = append(orders, cloneOrder(o))
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		return int(b.ID - a.ID)
	})
	return orders, nil
}

func (s *Store) SetOrderStatus(_ context.Context, id int64, status string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.ordersByID[id]
	if !ok {
		return domain.Order{}, store.ErrNotFound
	}
	o.Status = status
	s.ordersByID[id] = o
	return cloneOrder(o), nil
}

func (s *Store) AppendOrderPayment(_ context.Context, id int64, payment domain.Payment) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.ordersByID[id]
	if !ok {
		return domain.Order{}, store.ErrNotFound
	}
	o.Payments = append(clonePayments(o.Payments), payment)
	s.ordersByID[id] = o
	return cloneOrder(o), nil
}

func (s *Store) DeleteOrder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ordersByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.ordersByID, id)
	return nil
}

// Purchase orders.

func (s *Store) CreatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if po.ID == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.purchaseOrders[po.ID]; exists {
		return store.ErrInvalidInput
	}
	po.Items = cloneLines(po.Items)
	s.purchaseOrders[po.ID] = po
	return nil
}

func (s *Store) GetPurchaseOrderByID(_ context.Context, id string) (domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	po, ok := s.purchaseOrders[id]
	if !ok {
		return domain.PurchaseOrder{}, store.ErrNotFound
	}
	po.Items = cloneLines(po.Items)
	return po, nil
}

func (s *Store) ListPurchaseOrders(_ context.Context) ([]domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.PurchaseOrder, 0, len(s.purchaseOrders))
	for _, po := range s.purchaseOrders {
		po.Items = cloneLines(po.Items)
		orders = append(orders, po)
	}
	slices.SortFunc(orders, func(a, b domain.PurchaseOrder) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return orders, nil
}

func (s *Store) SetPurchaseOrderStatus(_ context.Context, id string, status string) (domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.purchaseOrders[id]
	if !ok {
		return domain.PurchaseOrder{}, store.ErrNotFound
	}
	po.Status = status
	s.purchaseOrders[id] = po
	po.Items = cloneLines(po.Items)
	return po, nil
}

// Users.

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidInput
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return domain.UserAccount{}, store.ErrNotFound
	}
	return user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) UpdateUserLoginState(_ context.Context, username string, attempts int, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Attempts = attempts
	user.Blocked = blocked
	s.usersByUsername[username] = user
	return nil
}

// Backup.

func (s *Store) ExportState(_ context.Context) (domain.BackupBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.ID, b.ID)
	})

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		sale.Items = cloneLines(sale.Items)
		sales = append(sales, sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return int(a.ID - b.ID)
	})

	clients := make([]domain.Client, 0, len(s.clientsByID))
	for _, c := range s.clientsByID {
		clients = append(clients, c)
	}
	slices.SortFunc(clients, func(a, b domain.Client) int {
		return int(a.ID - b.ID)
	})

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return strings.Compare(a.ID, b.ID)
	})

	orders := make([]domain.Order, 0, len(s.ordersByID))
	for _, o := range s.ordersByID {
		orders = append(orders, cloneOrder(o))
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		return int(a.ID - b.ID)
	})

	purchaseOrders := make([]domain.PurchaseOrder, 0, len(s.purchaseOrders))
	for _, po := range s.purchaseOrders {
		po.Items = cloneLines(po.Items)
		purchaseOrders = append(purchaseOrders, po)
	}
	slices.SortFunc(purchaseOrders, func(a, b domain.PurchaseOrder) int {
		return strings.Compare(a.ID, b.ID)
	})

	discounts := make([]domain.Discount, 0, len(s.discountsByID))
	for _, d := range s.discountsByID {
		discounts = append(discounts, d)
	}
	slices.SortFunc(discounts, func(a, b domain.Discount) int {
		return int(a.ID - b.ID)
	})

	return domain.BackupBundle{
		Users:          &users,
		Products:       &products,
		Sales:          &sales,
		Clients:        &clients,
		Suppliers:      &suppliers,
		Orders:         &orders,
		PurchaseOrders: &purchaseOrders,
		Discounts:      &discounts,
	}, nil
}

// ImportState replaces each collection present in the bundle. The new maps
// are built before anything is swapped in, so a failure leaves the store as
// it was.
func (s *Store) ImportState(_ context.Context, bundle domain.BackupBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		products  map[string]domain.Product
		sales     map[int64]domain.Sale
		clients   map[int64]domain.Client
		suppliers map[string]domain.Supplier
		discounts map[int64]domain.Discount
		orders    map[int64]domain.Order
		pos       map[string]domain.PurchaseOrder
		users     map[string]domain.UserAccount
	)

	if bundle.Products != nil {
		products = make(map[string]domain.Product, len(*bundle.Products))
		for _, p := range *bundle.Products {
			if p.ID == "" {
				return store.ErrInvalidInput
			}
			products[p.ID] = p
		}
	}
	if bundle.Sales != nil {
		sales = make(map[int64]domain.Sale, len(*bundle.Sales))
		for _, sale := range *bundle.Sales {
			if sale.ID == 0 {
				return store.ErrInvalidInput
			}
			sale.Items = cloneLines(sale.Items)
			sales[sale.ID] = sale
		}
	}
	if bundle.Clients != nil {
		clients = make(map[int64]domain.Client, len(*bundle.Clients))
		for _, c := range *bundle.Clients {
			if c.ID == 0 {
				return store.ErrInvalidInput
			}
			clients[c.ID] = c
		}
	}
	if bundle.Suppliers != nil {
		suppliers = make(map[string]domain.Supplier, len(*bundle.Suppliers))
		for _, sup := range *bundle.Suppliers {
			if sup.ID == "" {
				return store.ErrInvalidInput
			}
			suppliers[sup.ID] = sup
		}
	}
	if bundle.Discounts != nil {
		discounts = make(map[int64]domain.Discount, len(*bundle.Discounts))
		for _, d := range *bundle.Discounts {
			if d.ID == 0 {
				return store.ErrInvalidInput
			}
			discounts[d.ID] = d
		}
	}
	if bundle.Orders != nil {
		orders = make(map[int64]domain.Order, len(*bundle.Orders))
		for _, o := range *bundle.Orders {
			if o.ID == 0 {
				return store.ErrInvalidInput
			}
			orders[o.ID] = cloneOrder(o)
		}
	}
	if bundle.PurchaseOrders != nil {
		pos = make(map[string]domain.PurchaseOrder, len(*bundle.PurchaseOrders))
		for _, po := range *bundle.PurchaseOrders {
			if po.ID == "" {
				return store.ErrInvalidInput
			}
			po.Items = cloneLines(po.Items)
			pos[po.ID] = po
		}
	}
	if bundle.Users != nil {
		users = make(map[string]domain.UserAccount, len(*bundle.Users))
		for _, u := range *bundle.Users {
			if u.Username == "" {
				return store.ErrInvalidInput
			}
			users[u.Username] = u
		}
	}

	if products != nil {
		s.productsByID = products
	}
	if sales != nil {
		s.salesByID = sales
	}
	if clients != nil {
		s.clientsByID = clients
		next := int64(1)
		for id := range clients {
			if id+1 > next {
				next = id + 1
			}
		}
		s.nextClientID = next
	}
	if suppliers != nil {
		s.suppliersByID = suppliers
	}
	if discounts != nil {
		s.discountsByID = discounts
		next := int64(1)
		for id := range discounts {
			if id+1 > next {
				next = id + 1
			}
		}
		s.nextDiscountID = next
	}
	if orders != nil {
		s.ordersByID = orders
	}
	if pos != nil {
		s.purchaseOrders = pos
	}
	if users != nil {
		s.usersByUsername = users
	}
	return nil
}

// Audit trail.

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.auditLogs) {
		limit = len(s.auditLogs)
	}
	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		logs = append(logs, s.auditLogs[i])
	}
	return logs, nil
}

func cloneLines(lines []domain.CartLine) []domain.CartLine {
	if lines == nil {
		return nil
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}

func clonePayments(payments []domain.Payment) []domain.Payment {
	if payments == nil {
		return nil
	}
	out := make([]domain.Payment, len(payments))
	copy(out, payments)
	return out
}

func cloneServices(services map[string]int64) map[string]int64 {
	if services == nil {
		return nil
	}
	out := make(map[string]int64, len(services))
	for k, v := range services {
		out[k] = v
	}
	return out
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = cloneLines(o.Items)
	o.Payments = clonePayments(o.Payments)
	o.Services = cloneServices(o.Services)
	return o
}
