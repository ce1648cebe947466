package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"slingerp/backend/internal/domain"
	"slingerp/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id                   text PRIMARY KEY,
			name                 text NOT NULL,
			category             text NOT NULL DEFAULT '',
			price_cents          bigint NOT NULL DEFAULT 0,
			supplier_price_cents bigint NOT NULL DEFAULT 0,
			stock                integer NOT NULL DEFAULT 0,
			supplier             text NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS sales (
			id               bigint PRIMARY KEY,
			created_at       timestamptz NOT NULL,
			subtotal_cents   bigint NOT NULL,
			total_cents      bigint NOT NULL,
			client           text NOT NULL,
			items            jsonb NOT NULL,
			payment_method   text NOT NULL,
			invoice_type     text NOT NULL,
			discount_applied jsonb,
			surcharge_cents  bigint NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS clients (
			id         bigserial PRIMARY KEY,
			first_name text NOT NULL DEFAULT '',
			last_name  text NOT NULL DEFAULT '',
			email      text NOT NULL DEFAULT '',
			phone      text NOT NULL DEFAULT '',
			address    text NOT NULL DEFAULT '',
			notes      text NOT NULL DEFAULT '',
			created_at timestamptz NOT NULL
		);
		CREATE TABLE IF NOT EXISTS suppliers (
			id      text PRIMARY KEY,
			name    text NOT NULL,
			rubro   text NOT NULL DEFAULT '',
			phone   text NOT NULL DEFAULT '',
			email   text NOT NULL DEFAULT '',
			address text NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS discounts (
			id           bigserial PRIMARY KEY,
			name         text NOT NULL,
			type         text NOT NULL,
			percent      double precision NOT NULL DEFAULT 0,
			amount_cents bigint NOT NULL DEFAULT 0,
			active       boolean NOT NULL DEFAULT true
		);
		CREATE TABLE IF NOT EXISTS orders (
			id           bigint PRIMARY KEY,
			created_at   timestamptz NOT NULL,
			client       text NOT NULL,
			email        text NOT NULL DEFAULT '',
			status       text NOT NULL,
			total_cents  bigint NOT NULL,
			services     jsonb NOT NULL,
			items        jsonb NOT NULL,
			observations text NOT NULL DEFAULT '',
			payments     jsonb NOT NULL
		);
		CREATE TABLE IF NOT EXISTS purchase_orders (
			id          text PRIMARY KEY,
			created_at  timestamptz NOT NULL,
			supplier_id text NOT NULL,
			status      text NOT NULL,
			items       jsonb NOT NULL,
			total_cents bigint NOT NULL
		);
		CREATE TABLE IF NOT EXISTS users (
			username   text PRIMARY KEY,
			password   text NOT NULL,
			role       text NOT NULL,
			active     boolean NOT NULL DEFAULT true,
			attempts   integer NOT NULL DEFAULT 0,
			blocked    boolean NOT NULL DEFAULT false,
			created_at timestamptz NOT NULL
		);
		CREATE TABLE IF NOT EXISTS audit_logs (
			id          text PRIMARY KEY,
			actor       text NOT NULL DEFAULT '',
			actor_role  text NOT NULL DEFAULT '',
			action      text NOT NULL,
			entity_type text NOT NULL,
			entity_id   text NOT NULL DEFAULT '',
			detail      text NOT NULL DEFAULT '',
			created_at  timestamptz NOT NULL
		);
	`)
	return err
}

// Products.

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) error {
	if p.ID == "" || p.Name == "" || p.PriceCents < 0 || p.Stock < 0 {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, supplier_price_cents, stock, supplier)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, p.ID, p.Name, p.Category, p.PriceCents, p.SupplierPriceCents, p.Stock, p.Supplier)
	if isUniqueViolation(err) {
		return store.ErrInvalidInput
	}
	return err
}

func (s *Store) GetProductByID(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price_cents, supplier_price_cents, stock, supplier
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.SupplierPriceCents, &p.Stock, &p.Supplier)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, store.ErrNotFound
	}
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, supplier_price_cents, stock, supplier
		FROM products ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.SupplierPriceCents, &p.Stock, &p.Supplier); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) error {
	if p.Name == "" || p.PriceCents < 0 || p.Stock < 0 {
		return store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, supplier_price_cents = $5, stock = $6, supplier = $7
		WHERE id = $1
	`, p.ID, p.Name, p.Category, p.PriceCents, p.SupplierPriceCents, p.Stock, p.Supplier)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) SetProductStock(ctx context.Context, id string, stock int) error {
	if stock < 0 {
		return store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `UPDATE products SET stock = $2 WHERE id = $1`, id, stock)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Sales.

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	items, err := json.Marshal(sale.Items)
	if err != nil {
		return domain.Sale{}, err
	}
	var discount any
	if sale.DiscountApplied != nil {
		raw, err := json.Marshal(sale.DiscountApplied)
		if err != nil {
			return domain.Sale{}, err
		}
		discount = raw
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sale{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// The table lock keeps max-based id assignment atomic across writers.
	if _, err := tx.ExecContext(ctx, `LOCK TABLE sales IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return domain.Sale{}, err
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT GREATEST(COALESCE(MAX(id), 1000) + 1, 1001) FROM sales`).Scan(&sale.ID); err != nil {
		return domain.Sale{}, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, created_at, subtotal_cents, total_cents, client, items, payment_method, invoice_type, discount_applied, surcharge_cents)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, sale.ID, sale.CreatedAt, sale.SubtotalCents, sale.TotalCents, sale.Client, items, sale.PaymentMethod, sale.InvoiceType, discount, sale.SurchargeCents)
	if err != nil {
		return domain.Sale{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id int64) (domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, subtotal_cents, total_cents, client, items, payment_method, invoice_type, discount_applied, surcharge_cents
		FROM sales WHERE id = $1
	`, id)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sale{}, store.ErrNotFound
	}
	return sale, err
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, subtotal_cents, total_cents, client, items, payment_method, invoice_type, discount_applied, surcharge_cents
		FROM sales ORDER BY id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var items []byte
	var discount []byte
	err := row.Scan(&sale.ID, &sale.CreatedAt, &sale.SubtotalCents, &sale.TotalCents, &sale.Client,
		&items, &sale.PaymentMethod, &sale.InvoiceType, &discount, &sale.SurchargeCents)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	if err := json.Unmarshal(items, &sale.Items); err != nil {
		return domain.Sale{}, err
	}
	if len(discount) > 0 {
		sale.DiscountApplied = &domain.AppliedDiscount{}
		if err := json.Unmarshal(discount, sale.DiscountApplied); err != nil {
			return domain.Sale{}, err
		}
	}
	return sale, nil
}

// Clients.

func (s *Store) CreateClient(ctx context.Context, c domain.Client) (domain.Client, error) {
	if c.FirstName == "" && c.LastName == "" {
		return domain.Client{}, store.ErrInvalidInput
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO clients (first_name, last_name, email, phone, address, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, c.FirstName, c.LastName, c.Email, c.Phone, c.Address, c.Notes, c.CreatedAt).Scan(&c.ID)
	return c, err
}

func (s *Store) GetClientByID(ctx context.Context, id int64) (domain.Client, error) {
	var c domain.Client
	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, phone, address, notes, created_at
		FROM clients WHERE id = $1
	`, id).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.Notes, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Client{}, store.ErrNotFound
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, err
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, email, phone, address, notes, created_at
		FROM clients ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, 64)
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.Notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *Store) UpdateClient(ctx context.Context, c domain.Client) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET first_name = $2, last_name = $3, email = $4, phone = $5, address = $6, notes = $7
		WHERE id = $1
	`, c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Address, c.Notes)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Suppliers.

func (s *Store) CreateSupplier(ctx context.Context, sup domain.Supplier) error {
	if sup.ID == "" || sup.Name == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, rubro, phone, email, address)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, sup.ID, sup.Name, sup.Rubro, sup.Phone, sup.Email, sup.Address)
	if isUniqueViolation(err) {
		return store.ErrInvalidInput
	}
	return err
}

func (s *Store) GetSupplierByID(ctx context.Context, id string) (domain.Supplier, error) {
	var sup domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, rubro, phone, email, address FROM suppliers WHERE id = $1
	`, id).Scan(&sup.ID, &sup.Name, &sup.Rubro, &sup.Phone, &sup.Email, &sup.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Supplier{}, store.ErrNotFound
	}
	return sup, err
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, rubro, phone, email, address FROM suppliers ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Rubro, &sup.Phone, &sup.Email, &sup.Address); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *Store) UpdateSupplier(ctx context.Context, sup domain.Supplier) error {
	if sup.Name == "" {
		return store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE suppliers SET name = $2, rubro = $3, phone = $4, email = $5, address = $6 WHERE id = $1
	`, sup.ID, sup.Name, sup.Rubro, sup.Phone, sup.Email, sup.Address)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Discounts.

func (s *Store) CreateDiscount(ctx context.Context, d domain.Discount) (domain.Discount, error) {
	if d.Name == "" {
		return domain.Discount{}, store.ErrInvalidInput
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO discounts (name, type, percent, amount_cents, active)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, d.Name, d.Type, d.Percent, d.AmountCents, d.Active).Scan(&d.ID)
	return d, err
}

func (s *Store) GetDiscountByID(ctx context.Context, id int64) (domain.Discount, error) {
	var d domain.Discount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, percent, amount_cents, active FROM discounts WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Type, &d.Percent, &d.AmountCents, &d.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Discount{}, store.ErrNotFound
	}
	return d, err
}

func (s *Store) ListDiscounts(ctx context.Context) ([]domain.Discount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, percent, amount_cents, active FROM discounts ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	discounts := make([]domain.Discount, 0, 16)
	for rows.Next() {
		var d domain.Discount
		if err := rows.Scan(&d.ID, &d.Name, &d.Type, &d.Percent, &d.AmountCents, &d.Active); err != nil {
			return nil, err
		}
		discounts = append(discounts, d)
	}
	return discounts, rows.Err()
}

func (s *Store) UpdateDiscount(ctx context.Context, d domain.Discount) error {
	if d.Name == "" {
		return store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE discounts SET name = $2, type = $3, percent = $4, amount_cents = $5, active = $6 WHERE id = $1
	`, d.ID, d.Name, d.Type, d.Percent, d.AmountCents, d.Active)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteDiscount(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM discounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Orders.

func (s *Store) CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	services, err := json.Marshal(o.Services)
	if err != nil {
		return domain.Order{}, err
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return domain.Order{}, err
	}
	payments, err := json.Marshal(o.Payments)
	if err != nil {
		return domain.Order{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE orders IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return domain.Order{}, err
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT GREATEST(COALESCE(MAX(id), 5000) + 1, 5001) FROM orders`).Scan(&o.ID); err != nil {
		return domain.Order{}, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, created_at, client, email, status, total_cents, services, items, observations, payments)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, o.ID, o.CreatedAt, o.Client, o.Email, o.Status, o.TotalCents, services, items, o.Observations, payments)
	if err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id int64) (domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, client, email, status, total_cents, services, items, observations, payments
		FROM orders WHERE id = $1
	`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, store.ErrNotFound
	}
	return o, err
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, client, email, status, total_cents, services, items, observations, payments
		FROM orders ORDER BY id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 32)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	var services, items, payments []byte
	err := row.Scan(&o.ID, &o.CreatedAt, &o.Client, &o.Email, &o.Status, &o.TotalCents,
		&services, &items, &o.Observations, &payments)
	if err != nil {
		return domain.Order{}, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	if err := json.Unmarshal(services, &o.Services); err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(payments, &o.Payments); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Store) SetOrderStatus(ctx context.Context, id int64, status string) (domain.Order, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return domain.Order{}, err
	}
	if err := requireAffected(res); err != nil {
		return domain.Order{}, err
	}
	return s.GetOrderByID(ctx, id)
}

func (s *Store) AppendOrderPayment(ctx context.Context, id int64, payment domain.Payment) (domain.Order, error) {
	raw, err := json.Marshal(payment)
	if err != nil {
		return domain.Order{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET payments = payments || $2::jsonb WHERE id = $1
	`, id, raw)
	if err != nil {
		return domain.Order{}, err
	}
	if err := requireAffected(res); err != nil {
		return domain.Order{}, err
	}
	return s.GetOrderByID(ctx, id)
}

func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Purchase orders.

func (s *Store) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	if po.ID == "" {
		return store.ErrInvalidInput
	}
	items, err := json.Marshal(po.Items)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, created_at, supplier_id, status, items, total_cents)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, po.ID, po.CreatedAt, po.SupplierID, po.Status, items, po.TotalCents)
	if isUniqueViolation(err) {
		return store.ErrInvalidInput
	}
	return err
}

func (s *Store) GetPurchaseOrderByID(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, supplier_id, status, items, total_cents
		FROM purchase_orders WHERE id = $1
	`, id)
	po, err := scanPurchaseOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PurchaseOrder{}, store.ErrNotFound
	}
	return po, err
}

func (s *Store) ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, supplier_id, status, items, total_cents
		FROM purchase_orders ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.PurchaseOrder, 0, 32)
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

func scanPurchaseOrder(row rowScanner) (domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	var items []byte
	err := row.Scan(&po.ID, &po.CreatedAt, &po.SupplierID, &po.Status, &items, &po.TotalCents)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	po.CreatedAt = po.CreatedAt.UTC()
	if err := json.Unmarshal(items, &po.Items); err != nil {
		return domain.PurchaseOrder{}, err
	}
	return po, nil
}

func (s *Store) SetPurchaseOrderStatus(ctx context.Context, id string, status string) (domain.PurchaseOrder, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE purchase_orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if err := requireAffected(res); err != nil {
		return domain.PurchaseOrder{}, err
	}
	return s.GetPurchaseOrderByID(ctx, id)
}

// Users.

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, attempts, blocked, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.Username, user.Password, user.Role, user.Active, user.Attempts, user.Blocked, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrInvalidInput
	}
	return err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.UserAccount, error) {
	var u domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, attempts, blocked, created_at
		FROM users WHERE username = $1
	`, username).Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.Attempts, &u.Blocked, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserAccount{}, store.ErrNotFound
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, attempts, blocked, created_at
		FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.Attempts, &u.Blocked, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) UpdateUserLoginState(ctx context.Context, username string, attempts int, blocked bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET attempts = $2, blocked = $3 WHERE username = $1
	`, username, attempts, blocked)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Backup.

func (s *Store) ExportState(ctx context.Context) (domain.BackupBundle, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return domain.BackupBundle{}, err
	}
	products, err := s.ListProducts(ctx)
	if err != nil {
		return domain.BackupBundle{}, err
	}
	sales, err := s.ListSales(ctx)
	if err != nil {
		return domain.BackupBundle{}, err
	}
	clients, err := s.ListClients(ctx)
	if err != nil {
		return domain.BackupBundle{}, err
	}
	suppliers, err := s.ListSuppliers(ctx)
	if err != nil {
		return domain.BackupBundle{}, err
	}
	orders, err := s.ListOrders(ctx)
	if err != nil {
		return domain.BackupBundle{}, err
	}
	purchaseOrders, err := s.ListPurchaseOrders(ctx)
	if err != nil {
		return domain.BackupBundle{}, err
	}
	discounts, err := s.ListDiscounts(ctx)
	if err != nil {
		return domain.BackupBundle{}, err
	}

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

// ImportState runs in a single transaction: every collection present in the
// bundle is wiped and reloaded, and any failure rolls the whole import back.
func (s *Store) ImportState(ctx context.Context, bundle domain.BackupBundle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if bundle.Products != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
			return err
		}
		for _, p := range *bundle.Products {
			if p.ID == "" {
				return store.ErrInvalidInput
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO products (id, name, category, price_cents, supplier_price_cents, stock, supplier)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, p.ID, p.Name, p.Category, p.PriceCents, p.SupplierPriceCents, p.Stock, p.Supplier)
			if err != nil {
				return err
			}
		}
	}
	if bundle.Sales != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sales`); err != nil {
			return err
		}
		for _, sale := range *bundle.Sales {
			items, err := json.Marshal(sale.Items)
			if err != nil {
				return err
			}
			var discount any
			if sale.DiscountApplied != nil {
				raw, err := json.Marshal(sale.DiscountApplied)
				if err != nil {
					return err
				}
				discount = raw
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO sales (id, created_at, subtotal_cents, total_cents, client, items, payment_method, invoice_type, discount_applied, surcharge_cents)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			`, sale.ID, sale.CreatedAt, sale.SubtotalCents, sale.TotalCents, sale.Client, items, sale.PaymentMethod, sale.InvoiceType, discount, sale.SurchargeCents)
			if err != nil {
				return err
			}
		}
	}
	if bundle.Clients != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM clients`); err != nil {
			return err
		}
		for _, c := range *bundle.Clients {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO clients (id, first_name, last_name, email, phone, address, notes, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			`, c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Address, c.Notes, c.CreatedAt)
			if err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `
			SELECT setval(pg_get_serial_sequence('clients','id'), GREATEST((SELECT COALESCE(MAX(id),0) FROM clients), 1))
		`); err != nil {
			return err
		}
	}
	if bundle.Suppliers != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM suppliers`); err != nil {
			return err
		}
		for _, sup := range *bundle.Suppliers {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO suppliers (id, name, rubro, phone, email, address)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, sup.ID, sup.Name, sup.Rubro, sup.Phone, sup.Email, sup.Address)
			if err != nil {
				return err
			}
		}
	}
	if bundle.Orders != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM orders`); err != nil {
			return err
		}
		for _, o := range *bundle.Orders {
			services, err := json.Marshal(o.Services)
			if err != nil {
				return err
			}
			items, err := json.Marshal(o.Items)
			if err != nil {
				return err
			}
			payments, err := json.Marshal(o.Payments)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO orders (id, created_at, client, email, status, total_cents, services, items, observations, payments)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			`, o.ID, o.CreatedAt, o.Client, o.Email, o.Status, o.TotalCents, services, items, o.Observations, payments)
			if err != nil {
				return err
			}
		}
	}
	if bundle.PurchaseOrders != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_orders`); err != nil {
			return err
		}
		for _, po := range *bundle.PurchaseOrders {
			items, err := json.Marshal(po.Items)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO purchase_orders (id, created_at, supplier_id, status, items, total_cents)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, po.ID, po.CreatedAt, po.SupplierID, po.Status, items, po.TotalCents)
			if err != nil {
				return err
			}
		}
	}
	if bundle.Discounts != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM discounts`); err != nil {
			return err
		}
		for _, d := range *bundle.Discounts {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO discounts (id, name, type, percent, amount_cents, active)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, d.ID, d.Name, d.Type, d.Percent, d.AmountCents, d.Active)
			if err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `
			SELECT setval(pg_get_serial_sequence('discounts','id'), GREATEST((SELECT COALESCE(MAX(id),0) FROM discounts), 1))
		`); err != nil {
			return err
		}
	}
	if bundle.Users != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return err
		}
		for _, u := range *bundle.Users {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO users (username, password, role, active, attempts, blocked, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, u.Username, u.Password, u.Role, u.Active, u.Attempts, u.Blocked, u.CreatedAt)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Audit trail.

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.Actor, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
