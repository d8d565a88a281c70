package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

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

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates missing tables and indexes. Statements are idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// withTx runs fn in a read-committed transaction. Callers take explicit row
// locks (FOR UPDATE) on the rows whose invariants they maintain.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Users.

const userColumns = `id, full_name, email, mobile, username, password_hash, role, is_locked, is_active, avatar, login_token, login_token_expires, created_at, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var token sql.NullString
	var expires sql.NullTime
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Mobile, &u.Username, &u.PasswordHash, &u.Role,
		&u.IsLocked, &u.IsActive, &u.Avatar, &token, &expires, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	u.LoginToken = token.String
	if expires.Valid {
		at := expires.Time
		u.LoginTokenExpires = &at
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+userColumns,
		user.ID, user.FullName, user.Email, user.Mobile, user.Username, user.PasswordHash, user.Role,
		user.IsLocked, user.IsActive, user.Avatar, nullString(user.LoginToken), user.LoginTokenExpires, user.CreatedAt, user.UpdatedAt)
	created, err := scanUser(row)
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	return created, err
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (s *Store) GetUserByLoginToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE login_token = $1`, token))
}

func (s *Store) ListUsers(ctx context.Context, role string) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE $1 = '' OR role = $1
		ORDER BY seq
	`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET full_name = $2, email = $3, mobile = $4, username = $5, password_hash = $6, role = $7,
		    is_locked = $8, is_active = $9, avatar = $10, login_token = $11, login_token_expires = $12, updated_at = $13
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.FullName, user.Email, user.Mobile, user.Username, user.PasswordHash, user.Role,
		user.IsLocked, user.IsActive, user.Avatar, nullString(user.LoginToken), user.LoginTokenExpires, user.UpdatedAt)
	updated, err := scanUser(row)
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	return updated, err
}

// Categories.

func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counters (name, seq) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
		RETURNING seq
	`, name).Scan(&seq)
	return seq, err
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description) VALUES ($1, $2, $3)
	`, category.ID, category.Name, category.Description)
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description FROM categories ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Customers.

const customerColumns = `id, name, phone_number, address, email, created_at, updated_at`

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.PhoneNumber, &c.Address, &c.Email, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+customerColumns,
		customer.ID, customer.Name, customer.PhoneNumber, customer.Address, customer.Email, customer.CreatedAt, customer.UpdatedAt)
	created, err := scanCustomer(row)
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	return created, err
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
}

func (s *Store) GetCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone_number = $1`, phone))
}

func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	if email == "" {
		return nil, store.ErrNotFound
	}
	return scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+` FROM customers WHERE lower(email) = lower($1) ORDER BY seq LIMIT 1
	`, email))
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, phone_number = $3, address = $4, email = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+customerColumns,
		customer.ID, customer.Name, customer.PhoneNumber, customer.Address, customer.Email, customer.UpdatedAt)
	updated, err := scanCustomer(row)
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	return updated, err
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT true FROM customers WHERE id = $1 FOR UPDATE`, id).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}
		var orders int
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM orders WHERE customer_id = $1`, id).Scan(&orders); err != nil {
			return err
		}
		if orders > 0 {
			return store.ErrCustomerInUse
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
		return err
	})
}

// Products.

const productColumns = `id, name, barcode, category_id, import_price, retail_price, manufacturer, description, images, stock_quantity, is_active, created_at, updated_at`

var productSortColumns = map[string]string{
	"productName":  "name",
	"retailPrice":  "retail_price",
	"createdAt":    "created_at",
	"manufacturer": "manufacturer",
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var images []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Barcode, &p.CategoryID, &p.ImportPrice, &p.RetailPrice, &p.Manufacturer,
		&p.Description, &images, &p.StockQuantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return nil, fmt.Errorf("decode product images: %w", err)
		}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]any, 0, 8)
	addArg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CategoryPrefix != "" {
		conditions = append(conditions, "category_id ILIKE "+addArg(escapeLike(filter.CategoryPrefix)+"-%"))
	}
	if filter.Manufacturer != "" {
		conditions = append(conditions, "manufacturer ILIKE "+addArg("%"+escapeLike(filter.Manufacturer)+"%"))
	}
	if filter.Name != "" {
		conditions = append(conditions, "name ILIKE "+addArg("%"+escapeLike(filter.Name)+"%"))
	}
	if filter.Barcode != "" {
		conditions = append(conditions, "barcode ILIKE "+addArg("%"+escapeLike(filter.Barcode)+"%"))
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, "retail_price >= "+addArg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, "retail_price <= "+addArg(*filter.MaxPrice))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM products `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := make([]string, 0, len(filter.Sort)+1)
	for _, field := range filter.Sort {
		column, ok := productSortColumns[field.Field]
		if !ok {
			continue
		}
		if field.Desc {
			column += " DESC"
		}
		order = append(order, column)
	}
	order = append(order, "seq")

	query := `SELECT ` + productColumns + ` FROM products ` + where + ` ORDER BY ` + strings.Join(order, ", ")
	if filter.Limit > 0 {
		query += " LIMIT " + addArg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + addArg(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, max(filter.Limit, 8))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE barcode = $1`, barcode))
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = *p
	}
	return result, rows.Err()
}

func (s *Store) FindProduct(ctx context.Context, lookup store.ProductLookup) (*domain.Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 = '' OR name ~* $1) AND ($2 = '' OR barcode = $2)
		ORDER BY seq
		LIMIT 1
	`, lookup.NamePattern, lookup.Barcode))
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product, items []domain.ProductItem) (*domain.Product, error) {
	images, err := json.Marshal(nonNil(product.Images))
	if err != nil {
		return nil, err
	}

	var created *domain.Product
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, barcode, category_id, import_price, retail_price, manufacturer, description, images, stock_quantity, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11, $12)
		`, product.ID, product.Name, product.Barcode, product.CategoryID, product.ImportPrice, product.RetailPrice,
			product.Manufacturer, product.Description, images, product.IsActive, product.CreatedAt, product.UpdatedAt); err != nil {
			return err
		}
		if err := insertItems(ctx, tx, items); err != nil {
			return err
		}
		created, err = recountStock(ctx, tx, product.ID, product.UpdatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	return created, err
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product, newItems []domain.ProductItem, removeCount int) (*domain.Product, error) {
	images, err := json.Marshal(nonNil(product.Images))
	if err != nil {
		return nil, err
	}

	var updated *domain.Product
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockProduct(ctx, tx, product.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE products
			SET name = $2, category_id = $3, import_price = $4, retail_price = $5, manufacturer = $6,
			    description = $7, images = $8, is_active = $9, updated_at = $10
			WHERE id = $1
		`, product.ID, product.Name, product.CategoryID, product.ImportPrice, product.RetailPrice,
			product.Manufacturer, product.Description, images, product.IsActive, product.UpdatedAt); err != nil {
			return err
		}

		if removeCount > 0 {
			ids, err := selectIDs(ctx, tx, `
				SELECT id FROM product_items
				WHERE product_id = $1 AND status = 'IN_STOCK'
				ORDER BY seq DESC
				LIMIT $2
				FOR UPDATE
			`, product.ID, removeCount)
			if err != nil {
				return err
			}
			if len(ids) < removeCount {
				return &store.StockError{Available: len(ids)}
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM product_items WHERE id = ANY($1)`, ids); err != nil {
				return err
			}
		}
		if err := insertItems(ctx, tx, newItems); err != nil {
			return err
		}
		updated, err = recountStock(ctx, tx, product.ID, product.UpdatedAt)
		return err
	})
	return updated, err
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockProduct(ctx, tx, id); err != nil {
			return err
		}
		var referenced int
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM order_items WHERE product_id = $1`, id).Scan(&referenced); err != nil {
			return err
		}
		if referenced > 0 {
			return store.ErrProductInUse
		}
		// product_items cascade.
		_, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
		return err
	})
}

const itemColumns = `id, product_id, serial_number, status, created_at, updated_at`

func scanItem(row rowScanner) (*domain.ProductItem, error) {
	var item domain.ProductItem
	if err := row.Scan(&item.ID, &item.ProductID, &item.SerialNumber, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListProductItems(ctx context.Context, productID string) ([]domain.ProductItem, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM product_items WHERE product_id = $1 ORDER BY seq`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ProductItem, 0, 16)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *Store) GetProductItem(ctx context.Context, id string) (*domain.ProductItem, error) {
	return scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM product_items WHERE id = $1`, id))
}

func (s *Store) UpdateProductItemStatus(ctx context.Context, id string, status domain.ItemStatus, at time.Time) (*domain.ProductItem, error) {
	var updated *domain.ProductItem
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		item, err := scanItem(tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM product_items WHERE id = $1`, id))
		if err != nil {
			return err
		}
		if _, err := lockProduct(ctx, tx, item.ProductID); err != nil {
			return err
		}
		var sold bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM order_items WHERE product_item_id = $1)
		`, id).Scan(&sold); err != nil {
			return err
		}
		if sold {
			return store.ErrItemLocked
		}
		updated, err = scanItem(tx.QueryRowContext(ctx, `
			UPDATE product_items SET status = $2, updated_at = $3 WHERE id = $1
			RETURNING `+itemColumns, id, string(status), at))
		if err != nil {
			return err
		}
		_, err = recountStock(ctx, tx, item.ProductID, at)
		return err
	})
	return updated, err
}

func (s *Store) DeleteProductItem(ctx context.Context, id string, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		item, err := scanItem(tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM product_items WHERE id = $1`, id))
		if err != nil {
			return err
		}
		if _, err := lockProduct(ctx, tx, item.ProductID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM product_items WHERE id = $1 AND status = 'IN_STOCK'`, id)
		if err != nil {
			return err
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return store.ErrItemLocked
		}
		_, err = recountStock(ctx, tx, item.ProductID, at)
		return err
	})
}

// Orders.

const orderColumns = `id, customer_id, employee_id, total, amount_received, change_given, status, invoice_url, order_date, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(&o.ID, &o.CustomerID, &o.EmployeeID, &o.Total, &o.AmountReceived, &o.ChangeGiven,
		&o.Status, &o.InvoiceURL, &o.OrderDate, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+orderColumns,
		order.ID, order.CustomerID, order.EmployeeID, order.Total, order.AmountReceived, order.ChangeGiven,
		string(order.Status), order.InvoiceURL, order.OrderDate, order.CreatedAt, order.UpdatedAt)
	created, err := scanOrder(row)
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	return created, err
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR customer_id = $1)
		  AND ($2 = '' OR employee_id = $2)
		  AND ($3 = '' OR status = $3)
		  AND ($4::timestamptz IS NULL OR order_date >= $4)
		  AND ($5::timestamptz IS NULL OR order_date <= $5)
		ORDER BY order_date DESC, seq DESC
	`, filter.CustomerID, filter.EmployeeID, string(filter.Status), filter.From, filter.To)
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
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (s *Store) ListOrderItems(ctx context.Context, orderIDs []string) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, 32)
	if len(orderIDs) == 0 {
		return items, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_item_id, unit_price, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY seq
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var oi domain.OrderItem
		if err := rows.Scan(&oi.ID, &oi.OrderID, &oi.ProductID, &oi.ProductItemID, &oi.UnitPrice, &oi.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, oi)
	}
	return items, rows.Err()
}

func (s *Store) AddOrderItems(ctx context.Context, orderID string, productID string, quantity int, at time.Time) (*domain.Order, error) {
	var updated *domain.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockPendingOrder(ctx, tx, orderID); err != nil {
			return err
		}
		product, err := lockProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		ids, err := selectIDs(ctx, tx, `
			SELECT id FROM product_items
			WHERE product_id = $1 AND status = 'IN_STOCK'
			ORDER BY seq
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, productID, quantity)
		if err != nil {
			return err
		}
		if len(ids) < quantity {
			return &store.StockError{Available: len(ids)}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE product_items SET status = 'SOLD', updated_at = $2 WHERE id = ANY($1)
		`, ids, at); err != nil {
			return err
		}
		for _, itemID := range ids {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, product_id, product_item_id, unit_price, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, xid.New(), orderID, productID, itemID, product.RetailPrice, at); err != nil {
				return err
			}
		}
		if _, err := recountStock(ctx, tx, productID, at); err != nil {
			return err
		}

		updated, err = scanOrder(tx.QueryRowContext(ctx, `
			UPDATE orders SET total = total + $2, updated_at = $3 WHERE id = $1
			RETURNING `+orderColumns, orderID, product.RetailPrice*int64(quantity), at))
		return err
	})
	return updated, err
}

func (s *Store) RemoveOrderItems(ctx context.Context, orderID string, productID string, quantity int, at time.Time) (*domain.Order, error) {
	var updated *domain.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockPendingOrder(ctx, tx, orderID); err != nil {
			return err
		}
		if _, err := lockProduct(ctx, tx, productID); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, product_item_id, unit_price
			FROM order_items
			WHERE order_id = $1 AND product_id = $2
			ORDER BY seq DESC
			FOR UPDATE
		`, orderID, productID)
		if err != nil {
			return err
		}
		type line struct {
			id     string
			itemID string
			price  int64
		}
		lines := make([]line, 0, quantity)
		for rows.Next() {
			var l line
			if err := rows.Scan(&l.id, &l.itemID, &l.price); err != nil {
				_ = rows.Close()
				return err
			}
			lines = append(lines, l)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}
		_ = rows.Close()

		if len(lines) == 0 {
			return store.ErrNotFound
		}
		if len(lines) < quantity {
			return &store.StockError{Available: len(lines)}
		}

		lineIDs := make([]string, 0, quantity)
		itemIDs := make([]string, 0, quantity)
		var refund int64
		for _, l := range lines[:quantity] {
			lineIDs = append(lineIDs, l.id)
			itemIDs = append(itemIDs, l.itemID)
			refund += l.price
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE id = ANY($1)`, lineIDs); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE product_items SET status = 'IN_STOCK', updated_at = $2 WHERE id = ANY($1)
		`, itemIDs, at); err != nil {
			return err
		}
		if _, err := recountStock(ctx, tx, productID, at); err != nil {
			return err
		}

		updated, err = scanOrder(tx.QueryRowContext(ctx, `
			UPDATE orders SET total = total - $2, updated_at = $3 WHERE id = $1
			RETURNING `+orderColumns, orderID, refund, at))
		return err
	})
	return updated, err
}

func (s *Store) UpdateOrderPayment(ctx context.Context, orderID string, payment store.Payment, at time.Time) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		UPDATE orders SET amount_received = $2, change_given = $3, updated_at = $4
		WHERE id = $1 AND status = 'PENDING' AND total = $5
		RETURNING `+orderColumns, orderID, payment.AmountReceived, payment.ChangeGiven, at, payment.ExpectedTotal))
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.paymentStateError(ctx, orderID)
	}
	return order, err
}

func (s *Store) CompleteOrder(ctx context.Context, orderID string, payment store.Payment, invoiceURL string, at time.Time) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		UPDATE orders
		SET amount_received = $2, change_given = $3, invoice_url = $4, status = 'COMPLETED', updated_at = $5
		WHERE id = $1 AND status = 'PENDING' AND total = $6
		RETURNING `+orderColumns, orderID, payment.AmountReceived, payment.ChangeGiven, invoiceURL, at, payment.ExpectedTotal))
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.paymentStateError(ctx, orderID)
	}
	return order, err
}

func (s *Store) DeleteOrder(ctx context.Context, orderID string, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockPendingOrder(ctx, tx, orderID); err != nil {
			return err
		}
		productIDs, err := selectIDs(ctx, tx, `
			SELECT DISTINCT product_id FROM order_items WHERE order_id = $1 ORDER BY product_id
		`, orderID)
		if err != nil {
			return err
		}
		for _, productID := range productIDs {
			if _, err := lockProduct(ctx, tx, productID); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE product_items SET status = 'IN_STOCK', updated_at = $2
			WHERE id IN (SELECT product_item_id FROM order_items WHERE order_id = $1)
		`, orderID, at); err != nil {
			return err
		}
		// order_items cascade.
		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID); err != nil {
			return err
		}
		for _, productID := range productIDs {
			if _, err := recountStock(ctx, tx, productID, at); err != nil {
				return err
			}
		}
		return nil
	})
}

// paymentStateError explains why a conditional payment update matched no row.
func (s *Store) paymentStateError(ctx context.Context, orderID string) error {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderPending {
		return store.ErrOrderNotPending
	}
	return store.ErrTotalChanged
}

// helpers

func lockPendingOrder(ctx context.Context, q queryer, orderID string) (*domain.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderPending {
		return nil, store.ErrOrderNotPending
	}
	return order, nil
}

func lockProduct(ctx context.Context, q queryer, productID string) (*domain.Product, error) {
	return scanProduct(q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, productID))
}

func recountStock(ctx context.Context, q queryer, productID string, at time.Time) (*domain.Product, error) {
	return scanProduct(q.QueryRowContext(ctx, `
		UPDATE products
		SET stock_quantity = (SELECT count(*) FROM product_items WHERE product_id = $1 AND status = 'IN_STOCK'),
		    updated_at = $2
		WHERE id = $1
		RETURNING `+productColumns, productID, at))
}

func insertItems(ctx context.Context, q queryer, items []domain.ProductItem) error {
	for _, item := range items {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO product_items (id, product_id, serial_number, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.ID, item.ProductID, item.SerialNumber, string(item.Status), item.CreatedAt, item.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

func selectIDs(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
