package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/xid"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("RETAILPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set RETAILPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

type fixture struct {
	customer domain.Customer
	employee domain.User
	product  domain.Product
}

func seedFixture(t *testing.T, s *Store, stock int) fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	stamp := time.Now().UnixNano()

	category := domain.Category{ID: fmt.Sprintf("it-%d", stamp), Name: "IT"}
	_, err := s.CreateCategory(ctx, category)
	require.NoError(t, err)

	employee, err := s.CreateUser(ctx, domain.User{
		ID: xid.New(), FullName: "IT Employee", Email: fmt.Sprintf("it-%d@example.com", stamp),
		Username: fmt.Sprintf("it-%d", stamp), PasswordHash: "x", Role: domain.RoleEmployee,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	customer, err := s.CreateCustomer(ctx, domain.Customer{
		ID: xid.New(), Name: "IT Customer", PhoneNumber: fmt.Sprintf("09%d", stamp%100000000),
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	product := domain.Product{
		ID: xid.New(), Name: fmt.Sprintf("IT Phone %d", stamp), Barcode: xid.Barcode(), CategoryID: category.ID,
		ImportPrice: 500, RetailPrice: 1000, Manufacturer: "Acme", Images: []string{"/uploads/products/it.png"},
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	items := make([]domain.ProductItem, 0, stock)
	for i := 0; i < stock; i++ {
		items = append(items, domain.ProductItem{
			ID: xid.New(), ProductID: product.ID, SerialNumber: xid.Serial("Acme"),
			Status: domain.ItemInStock, CreatedAt: now, UpdatedAt: now,
		})
	}
	created, err := s.CreateProduct(ctx, product, items)
	require.NoError(t, err)
	require.Equal(t, stock, created.StockQuantity)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE customer_id = $1`, customer.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, customer.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, employee.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, category.ID)
	})

	return fixture{customer: *customer, employee: *employee, product: *created}
}

func createOrder(t *testing.T, s *Store, f fixture) *domain.Order {
	t.Helper()
	now := time.Now().UTC()
	order, err := s.CreateOrder(context.Background(), domain.Order{
		ID: xid.New(), CustomerID: f.customer.ID, EmployeeID: f.employee.ID, Status: domain.OrderPending,
		OrderDate: now, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	return order
}

func TestDeleteOrderRestoresStock(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	f := seedFixture(t, s, 4)
	order := createOrder(t, s, f)

	updated, err := s.AddOrderItems(ctx, order.ID, f.product.ID, 3, time.Now().UTC())
	require.NoError(t, err)
	require.EqualValues(t, 3000, updated.Total)

	product, err := s.GetProduct(ctx, f.product.ID)
	require.NoError(t, err)
	require.Equal(t, 1, product.StockQuantity)

	require.NoError(t, s.DeleteOrder(ctx, order.ID, time.Now().UTC()))

	product, err = s.GetProduct(ctx, f.product.ID)
	require.NoError(t, err)
	require.Equal(t, 4, product.StockQuantity)

	_, err = s.GetOrder(ctx, order.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentAddsNeverOversell(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	f := seedFixture(t, s, 3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	sold := 0
	for i := 0; i < 8; i++ {
		order := createOrder(t, s, f)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AddOrderItems(ctx, order.ID, f.product.ID, 1, time.Now().UTC()); err == nil {
				mu.Lock()
				sold++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 3, sold)
	product, err := s.GetProduct(ctx, f.product.ID)
	require.NoError(t, err)
	require.Zero(t, product.StockQuantity)
}

func TestCompleteOrderFreezesIt(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	f := seedFixture(t, s, 2)
	order := createOrder(t, s, f)

	_, err := s.AddOrderItems(ctx, order.ID, f.product.ID, 1, time.Now().UTC())
	require.NoError(t, err)
	stale := store.Payment{ExpectedTotal: 0, AmountReceived: 1000}
	_, err = s.CompleteOrder(ctx, order.ID, stale, "invoices/invoice_it.pdf", time.Now().UTC())
	require.ErrorIs(t, err, store.ErrTotalChanged)

	done, err := s.CompleteOrder(ctx, order.ID, store.Payment{ExpectedTotal: 1000, AmountReceived: 1000}, "invoices/invoice_it.pdf", time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, domain.OrderCompleted, done.Status)

	_, err = s.RemoveOrderItems(ctx, order.ID, f.product.ID, 1, time.Now().UTC())
	require.ErrorIs(t, err, store.ErrOrderNotPending)
	_, err = s.UpdateOrderPayment(ctx, order.ID, store.Payment{ExpectedTotal: 1000, AmountReceived: 2000, ChangeGiven: 1000}, time.Now().UTC())
	require.ErrorIs(t, err, store.ErrOrderNotPending)

	items, err := s.ListProductItems(ctx, f.product.ID)
	require.NoError(t, err)
	for _, item := range items {
		if item.Status == domain.ItemSold {
			_, err = s.UpdateProductItemStatus(ctx, item.ID, domain.ItemInStock, time.Now().UTC())
			require.ErrorIs(t, err, store.ErrItemLocked)
		}
	}
	require.ErrorIs(t, s.DeleteProduct(ctx, f.product.ID), store.ErrProductInUse)
}
