package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"retailpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductInUse      = errors.New("product is referenced by orders")
	ErrItemLocked        = errors.New("product item is not in stock")
	ErrOrderNotPending   = errors.New("order is not pending")
	ErrCustomerInUse     = errors.New("customer has orders")
	ErrTotalChanged      = errors.New("order total changed")
)

// Payment is written to a pending order only while its total still equals
// ExpectedTotal. A mismatch yields ErrTotalChanged.
type Payment struct {
	ExpectedTotal  int64
	AmountReceived int64
	ChangeGiven    int64
}

// StockError reports how many units were actually available when a
// multi-unit operation could not be satisfied.
type StockError struct {
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available", e.Available)
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type SortField struct {
	Field string
	Desc  bool
}

type ProductFilter struct {
	CategoryPrefix string
	Manufacturer   string
	Name           string
	Barcode        string
	MinPrice       *int64
	MaxPrice       *int64
	Sort           []SortField
	Offset         int
	Limit          int
}

// ProductLookup finds a single product by a case-insensitive name pattern
// and/or an exact barcode.
type ProductLookup struct {
	NamePattern string
	Barcode     string
}

type OrderFilter struct {
	CustomerID string
	EmployeeID string
	Status     domain.OrderStatus
	From       *time.Time
	To         *time.Time
}

type Repository interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByLoginToken(ctx context.Context, token string) (*domain.User, error)
	ListUsers(ctx context.Context, role string) ([]domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)

	NextSequence(ctx context.Context, name string) (int64, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	FindProduct(ctx context.Context, lookup ProductLookup) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product, items []domain.ProductItem) (*domain.Product, error)
	// UpdateProduct saves the product fields, inserts newItems and deletes the
	// removeCount most recently created IN_STOCK items. Stock is recounted.
	UpdateProduct(ctx context.Context, product domain.Product, newItems []domain.ProductItem, removeCount int) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListProductItems(ctx context.Context, productID string) ([]domain.ProductItem, error)
	GetProductItem(ctx context.Context, id string) (*domain.ProductItem, error)
	// UpdateProductItemStatus fails with ErrItemLocked once the item is
	// referenced by an order.
	UpdateProductItemStatus(ctx context.Context, id string, status domain.ItemStatus, at time.Time) (*domain.ProductItem, error)
	DeleteProductItem(ctx context.Context, id string, at time.Time) error

	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	ListOrderItems(ctx context.Context, orderIDs []string) ([]domain.OrderItem, error)
	// AddOrderItems sells quantity IN_STOCK units of a product into a pending
	// order in one atomic step.
	AddOrderItems(ctx context.Context, orderID string, productID string, quantity int, at time.Time) (*domain.Order, error)
	// RemoveOrderItems returns up to quantity units of a product from a
	// pending order to stock in one atomic step.
	RemoveOrderItems(ctx context.Context, orderID string, productID string, quantity int, at time.Time) (*domain.Order, error)
	UpdateOrderPayment(ctx context.Context, orderID string, payment Payment, at time.Time) (*domain.Order, error)
	CompleteOrder(ctx context.Context, orderID string, payment Payment, invoiceURL string, at time.Time) (*domain.Order, error)
	// DeleteOrder removes a pending order, restoring every unit it holds to stock.
	DeleteOrder(ctx context.Context, orderID string, at time.Time) error
}
