package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"retailpos/backend/internal/events"
)

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisCache(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheRoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)
	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "product_1", []byte(`{"productId":"1"}`), time.Hour))
	got, ok, err := c.Get(ctx, "product_1")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"productId":"1"}`, string(got))

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "product_1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCacheGetFailsWhenServerIsDown(t *testing.T) {
	c, mr := newRedisCache(t)
	mr.Close()

	_, _, err := c.Get(context.Background(), "product_1")
	require.Error(t, err)
}

func TestInvalidatorDeletesKeysForOrderChange(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)
	bus := events.NewBus()
	NewInvalidator(c, nil).Register(bus)

	stale := []string{
		OrderKey("o1"),
		OrdersByPhoneKey("0900"),
		CustomerOrdersKey("0900"),
		EmployeeProfileKey("e1"),
		AdminEmployeeProfileKey("e1"),
		ProductKey("p1"),
		PublicView(ProductKey("p1")),
		ProductBarcodeKey("b1"),
		PublicView(ProductBarcodeKey("b1")),
		ProductItemsKey("p1"),
		ProductItemsBarcodeKey("b1"),
		SalesReportKey("e1", "today", "", ""),
		ProductReportKey("e1", "", "", "thisMonth"),
	}
	for _, key := range append(stale, ProductKey("p2"), CustomersListKey) {
		require.NoError(t, c.Set(ctx, key, []byte(`[]`), time.Hour))
	}

	require.NoError(t, bus.Publish(ctx, events.Change{
		Kind:       events.KindOrder,
		ID:         "o1",
		Phone:      "0900",
		EmployeeID: "e1",
		ActorID:    "e1",
		Products:   []events.ProductRef{{ID: "p1", Barcode: "b1"}},
	}))

	for _, key := range stale {
		_, ok, err := c.Get(ctx, key)
		require.NoError(t, err)
		require.False(t, ok, key)
	}
	for _, key := range []string{ProductKey("p2"), CustomersListKey} {
		_, ok, err := c.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok, key)
	}
}

func TestKeysForCustomerPhoneChange(t *testing.T) {
	keys := KeysFor(events.Change{Kind: events.KindCustomer, ID: "c1", Phone: "0911", PreviousPhone: "0900"})
	require.Contains(t, keys, CustomersListKey)
	require.Contains(t, keys, CustomerKey("0900"))
	require.Contains(t, keys, CustomerKey("0911"))
	require.Contains(t, keys, CustomerOrdersKey("0900"))
	require.Contains(t, keys, OrdersByPhoneKey("0911"))
}

func TestKeysForEmployeeAndCategory(t *testing.T) {
	require.ElementsMatch(t,
		[]string{EmployeesListKey, "employee_profile_u1", "admin_employee_profile_u1"},
		KeysFor(events.Change{Kind: events.KindEmployee, ID: "u1"}))
	require.Equal(t, []string{CategoriesListKey}, KeysFor(events.Change{Kind: events.KindCategory, ID: "c-1"}))
}

func TestReportKeyFormats(t *testing.T) {
	require.Equal(t, "u1_timeline:today", SalesReportKey("u1", "today", "", ""))
	require.Equal(t, "u1_start:2024-01-01_end:2024-01-31", SalesReportKey("u1", "", "2024-01-01", "2024-01-31"))
	require.Equal(t, "product_report:u1:::last7days", ProductReportKey("u1", "", "", "last7days"))
	require.Len(t, ReportKeys("u1"), 10)
}

func TestNoopCacheNeverHits(t *testing.T) {
	ctx := context.Background()
	var c ResponseCache = NoopCache{}
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, c.Delete(ctx, "k"))
}
