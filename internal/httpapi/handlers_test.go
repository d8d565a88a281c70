package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/events"
	"retailpos/backend/internal/invoice"
	"retailpos/backend/internal/mailer"
	"retailpos/backend/internal/media"
	"retailpos/backend/internal/service"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/store/memory"
	"retailpos/backend/internal/xid"
)

type mailRecorder struct {
	mu        sync.Mutex
	envelopes []mailer.Envelope
}

func (m *mailRecorder) Dispatch(_ context.Context, envelope mailer.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envelopes = append(m.envelopes, envelope)
	return nil
}

func (m *mailRecorder) sent() []mailer.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Envelope(nil), m.envelopes...)
}

type testEnv struct {
	handler    http.Handler
	repo       *memory.Store
	auth       *AuthManager
	redis      *miniredis.Miniredis
	mail       *mailRecorder
	adminToken string
	staffToken string
	staffID    string
}

type testEnvelope struct {
	Code    int             `json:"code"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// newTestEnv wires the full API over an in-memory store and a miniredis
// response cache, so handler tests exercise the real request path.
func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	responseCache := cache.NewRedisCache(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = responseCache.Close() })

	repo := memory.NewSeeded()
	bus := events.NewBus()
	cache.NewInvalidator(responseCache, nil).Register(bus)

	generator, err := invoice.NewGenerator(invoice.Options{Dir: t.TempDir(), Location: time.UTC})
	require.NoError(t, err)

	auth := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, bcrypt.MinCost)
	mail := &mailRecorder{}
	uploadDir := t.TempDir()
	svc := service.New(service.Deps{
		Repo:      repo,
		Bus:       bus,
		Media:     media.NewDiskStore(uploadDir, "/uploads"),
		Invoices:  generator,
		Mail:      mail,
		Passwords: auth,
		Tokens:    auth,
	}, service.Options{
		Location:      time.UTC,
		PublicBaseURL: "http://pos.test",
		FrontendURL:   "http://app.test",
	})

	ctx := context.Background()
	_, err = svc.BootstrapAdmin(ctx, "admin", "admin@retailpos.test", "admin-secret")
	require.NoError(t, err)
	admin, err := repo.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)

	hash, err := auth.HashPassword("staff-pass")
	require.NoError(t, err)
	staff, err := repo.CreateUser(ctx, domain.User{
		ID:           xid.New(),
		FullName:     "Staff One",
		Email:        "staff@retailpos.test",
		Username:     "staff",
		PasswordHash: hash,
		Role:         domain.RoleEmployee,
		IsActive:     true,
	})
	require.NoError(t, err)

	opts := Options{
		AllowedOrigin:  "http://app.test",
		Cache:          responseCache,
		CacheTTL:       time.Hour,
		UploadDir:      uploadDir,
		LoginRateLimit: 100,
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	env := &testEnv{
		handler: New(svc, auth, opts).Handler(),
		repo:    repo,
		auth:    auth,
		redis:   mr,
		mail:    mail,
		staffID: staff.ID,
	}
	env.adminToken = env.tokenFor(t, *admin)
	env.staffToken = env.tokenFor(t, *staff)
	return env
}

func (e *testEnv) tokenFor(t *testing.T, user domain.User) string {
	t.Helper()
	token, err := e.auth.IssueToken(user)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Reader
	if body == nil {
		payload = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) product(t *testing.T, name string) domain.Product {
	t.Helper()
	p, err := e.repo.FindProduct(context.Background(), store.ProductLookup{NamePattern: "^" + name + "$"})
	require.NoError(t, err)
	return *p
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return env
}

func decodeResult(t *testing.T, env testEnvelope, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Result, dest), "result: %s", env.Result)
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
}

func TestLoginIssuesUsableToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{Username: "admin", Password: "admin-secret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeEnvelope(t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, http.StatusOK, body.Code)
	assert.Equal(t, "Login successful", body.Message)

	var login domain.LoginResponse
	decodeResult(t, body, &login)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, domain.RoleAdmin, login.Role)

	rec = env.do(t, http.MethodGet, "/api/categories", login.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{Username: "admin", Password: "nope"})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, http.StatusUnauthorized, body.Code)
	assert.Equal(t, "Invalid email or password", body.Message)
	assert.Equal(t, "null", string(body.Result))
}

func TestLoginRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin", "password": "x", "role": "admin"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/nope", "", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "Route /api/nope not found", body.Message)
}

func TestProtectedRoutesRequireValidToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized, no token", decodeEnvelope(t, rec).Message)

	rec = env.do(t, http.MethodGet, "/api/products", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized, token invalid", decodeEnvelope(t, rec).Message)

	ghost := env.tokenFor(t, domain.User{ID: "missing", Role: domain.RoleAdmin})
	rec = env.do(t, http.MethodGet, "/api/products", ghost, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized, user not found", decodeEnvelope(t, rec).Message)
}

func TestInactiveEmployeeMustResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fresh, err := env.repo.CreateUser(ctx, domain.User{
		ID:       xid.New(),
		Email:    "fresh@retailpos.test",
		Username: "fresh",
		Role:     domain.RoleEmployee,
	})
	require.NoError(t, err)
	token := env.tokenFor(t, *fresh)

	rec := env.do(t, http.MethodGet, "/api/products", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You must reset your password before accessing other features.", decodeEnvelope(t, rec).Message)

	rec = env.do(t, http.MethodGet, "/api/employee/profile", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/employee/reset-password", token, domain.PasswordResetRequest{Password: "brand-new-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Password has been reset successfully.", decodeEnvelope(t, rec).Message)

	rec = env.do(t, http.MethodGet, "/api/products", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLockedEmployeeIsBlocked(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPatch, "/api/admin/employees/"+env.staffID+"/lock", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Employee account status updated successfully.", decodeEnvelope(t, rec).Message)

	rec = env.do(t, http.MethodGet, "/api/customers", env.staffToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "This employee is locked!", decodeEnvelope(t, rec).Message)

	rec = env.do(t, http.MethodPatch, "/api/admin/employees/"+env.staffID+"/lock", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/customers", env.staffToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRejectEmployees(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/admin/employees", nil},
		{http.MethodPost, "/api/categories", domain.CategoryCreateRequest{Name: "Camera"}},
		{http.MethodDelete, "/api/products/whatever", nil},
	} {
		rec := env.do(t, tc.method, tc.path, env.staffToken, tc.body)
		require.Equal(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "Access denied. Admins only.", decodeEnvelope(t, rec).Message)
	}
}

func TestCreateEmployeeMailsLoginLink(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/create-employee", env.adminToken, domain.EmployeeCreateRequest{
		FullName: "New Hire",
		Email:    "new.hire@retailpos.test",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Employee created successfully.", decodeEnvelope(t, rec).Message)

	sent := env.mail.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "new.hire@retailpos.test", sent[0].To)
	assert.Contains(t, sent[0].Text, "http://pos.test/api/auth/login/")

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{Username: "new.hire", Password: "new.hire"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please login by clicking on the link in your email", decodeEnvelope(t, rec).Message)

	hire, err := env.repo.GetUserByEmail(context.Background(), "new.hire@retailpos.test")
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, "/api/auth/login/"+hire.LoginToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/auth/login/"+hire.LoginToken, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductViewHidesImportPriceFromEmployees(t *testing.T) {
	env := newTestEnv(t)
	airpods := env.product(t, "AirPods Pro")

	rec := env.do(t, http.MethodGet, "/api/products/"+airpods.ID, env.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var public map[string]any
	decodeResult(t, decodeEnvelope(t, rec), &public)
	assert.NotContains(t, public, "importPrice")
	assert.Equal(t, airpods.Name, public["productName"])

	rec = env.do(t, http.MethodGet, "/api/products/"+airpods.ID, env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "Get product successfully", body.Message, "admin view is cached separately")
	var full map[string]any
	decodeResult(t, body, &full)
	assert.EqualValues(t, airpods.ImportPrice, full["importPrice"])
}

func TestCachedResponsesAreInvalidatedOnWrite(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/customers", env.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Get all customers successfully", decodeEnvelope(t, rec).Message)
	assert.True(t, env.redis.Exists(cache.CustomersListKey))

	rec = env.do(t, http.MethodGet, "/api/customers", env.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cached := decodeEnvelope(t, rec)
	assert.Equal(t, cacheHitMessage, cached.Message)
	var customers []domain.Customer
	decodeResult(t, cached, &customers)
	assert.Len(t, customers, 2)

	rec = env.do(t, http.MethodPost, "/api/customers", env.staffToken, domain.CustomerRequest{
		Name:        "Hoa Tran",
		PhoneNumber: "0987654321",
		Address:     "7 Hai Ba Trung",
		Email:       "hoa.tran@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.False(t, env.redis.Exists(cache.CustomersListKey))

	rec = env.do(t, http.MethodGet, "/api/customers", env.staffToken, nil)
	fresh := decodeEnvelope(t, rec)
	assert.Equal(t, "Get all customers successfully", fresh.Message)
	decodeResult(t, fresh, &customers)
	assert.Len(t, customers, 3)
}

func TestFailedResponsesAreNotCached(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/customers/0000000000", env.staffToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.redis.Exists(cache.CustomerKey("0000000000")))
}

func TestOrderFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	airpods := env.product(t, "AirPods Pro")

	rec := env.do(t, http.MethodPost, "/api/orders", env.staffToken, domain.OrderCreateRequest{PhoneNumber: "0901234567"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order domain.Order
	decodeResult(t, decodeEnvelope(t, rec), &order)
	assert.Equal(t, domain.OrderPending, order.Status)

	rec = env.do(t, http.MethodGet, "/api/products/items/"+airpods.ID, env.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.redis.Exists(cache.ProductItemsKey(airpods.ID)))

	rec = env.do(t, http.MethodPost, "/api/orders/add-product/"+order.ID, env.staffToken, domain.OrderItemRequest{Barcode: airpods.Barcode, Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeResult(t, decodeEnvelope(t, rec), &order)
	assert.Equal(t, 2*airpods.RetailPrice, order.Total)
	assert.False(t, env.redis.Exists(cache.ProductItemsKey(airpods.ID)), "adding to an order invalidates the product items")

	rec = env.do(t, http.MethodPost, "/api/orders/checkout/"+order.ID, env.staffToken, domain.CheckoutRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Amount received is required", decodeEnvelope(t, rec).Message)

	paid := order.Total + 20000
	rec = env.do(t, http.MethodPost, "/api/orders/checkout/"+order.ID, env.staffToken, domain.CheckoutRequest{AmountReceived: &paid})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeResult(t, decodeEnvelope(t, rec), &order)
	assert.Equal(t, domain.OrderCompleted, order.Status)
	assert.EqualValues(t, 20000, order.ChangeGiven)

	sent := env.mail.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "minh.nguyen@example.com", sent[0].To)
	assert.NotEmpty(t, sent[0].AttachmentPath)

	rec = env.do(t, http.MethodGet, "/api/orders/"+order.ID+"/invoice", env.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "invoice_"+order.ID+".html")
	assert.Contains(t, rec.Body.String(), airpods.Name)

	rec = env.do(t, http.MethodGet, "/api/orders/details/"+order.ID, env.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail domain.OrderDetail
	decodeResult(t, decodeEnvelope(t, rec), &detail)
	require.Len(t, detail.Products, 1)
	assert.Equal(t, 2, detail.Products[0].Quantity)

	rec = env.do(t, http.MethodDelete, "/api/orders/"+order.ID, env.staffToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCustomerAndCategoryWireNames(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/customers", env.staffToken, map[string]string{
		"name": "Hoa Tran", "phoneNumber": "0933333333", "address": "7 Hai Ba Trung", "email": "hoa@example.com",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/customers", env.staffToken, map[string]string{
		"customerName": "Hoa Tran", "phoneNumber": "0933333333", "address": "7 Hai Ba Trung", "email": "hoa@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"customerName":"Hoa Tran"`)

	rec = env.do(t, http.MethodGet, "/api/customers/0901234567", env.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"customerName":"Minh Nguyen"`)

	rec = env.do(t, http.MethodPost, "/api/categories", env.adminToken, map[string]string{"categoryName": "Smart Watch"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"categoryName":"Smart Watch"`)

	rec = env.do(t, http.MethodGet, "/api/categories", env.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"categoryName":"Smartphone"`)
	assert.NotContains(t, rec.Body.String(), `"name":`)
}

func TestSalesReportOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	galaxy := env.product(t, "Galaxy Buds")

	rec := env.do(t, http.MethodGet, "/api/reports/sales?timeline=today", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "No orders found", decodeEnvelope(t, rec).Message)

	rec = env.do(t, http.MethodPost, "/api/orders", env.staffToken, domain.OrderCreateRequest{PhoneNumber: "0912345678"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order domain.Order
	decodeResult(t, decodeEnvelope(t, rec), &order)
	rec = env.do(t, http.MethodPost, "/api/orders/add-product/"+order.ID, env.staffToken, domain.OrderItemRequest{ProductName: "Galaxy Buds", Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := galaxy.RetailPrice
	rec = env.do(t, http.MethodPost, "/api/orders/checkout/"+order.ID, env.adminToken, domain.CheckoutRequest{AmountReceived: &paid})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/reports/sales?timeline=today", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "Get reports successfully", body.Message)
	var report domain.SalesReport
	decodeResult(t, body, &report)
	assert.Equal(t, 1, report.TotalOrders)
	assert.Equal(t, galaxy.RetailPrice, report.TotalIncome)
	require.NotNil(t, report.TotalProfit)
	assert.Equal(t, galaxy.RetailPrice-galaxy.ImportPrice, *report.TotalProfit)

	rec = env.do(t, http.MethodPost, "/api/reports/products", env.staffToken, domain.ReportRequest{StartDate: "2026-01-01"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSalesReportDatesOverrideTimeline(t *testing.T) {
	env := newTestEnv(t)
	galaxy := env.product(t, "Galaxy Buds")

	rec := env.do(t, http.MethodPost, "/api/orders", env.staffToken, domain.OrderCreateRequest{PhoneNumber: "0912345678"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order domain.Order
	decodeResult(t, decodeEnvelope(t, rec), &order)
	rec = env.do(t, http.MethodPost, "/api/orders/add-product/"+order.ID, env.staffToken, domain.OrderItemRequest{ProductName: "Galaxy Buds", Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := galaxy.RetailPrice
	rec = env.do(t, http.MethodPost, "/api/orders/checkout/"+order.ID, env.staffToken, domain.CheckoutRequest{AmountReceived: &paid})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	window := domain.ReportRequest{StartDate: "2000-01-01", EndDate: "2000-01-02"}
	rec = env.do(t, http.MethodPost, "/api/reports/sales?timeline=today", env.adminToken, window)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "No orders found", body.Message)
	var report domain.SalesReport
	decodeResult(t, body, &report)
	assert.Equal(t, "From 2000-01-01 to 2000-01-02", report.Timeline)
	assert.Equal(t, 0, report.TotalOrders)

	rec = env.do(t, http.MethodPost, "/api/reports/sales", env.adminToken, window)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeEnvelope(t, rec)
	assert.Equal(t, "Data fetched successfully (from cache)", body.Message)
	report = domain.SalesReport{}
	decodeResult(t, body, &report)
	assert.Equal(t, "From 2000-01-01 to 2000-01-02", report.Timeline)
	assert.Equal(t, 0, report.TotalOrders)
}

func TestUploadAvatar(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	writer := newMultipartImage(t, &body, "avatar", "me.png")
	req := httptest.NewRequest(http.MethodPost, "/api/employee/upload-avatar", &body)
	req.Header.Set("Content-Type", writer)
	req.Header.Set("Authorization", "Bearer "+env.staffToken)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result domain.AvatarResult
	decodeResult(t, decodeEnvelope(t, rec), &result)
	assert.True(t, strings.HasPrefix(result.Avatar, "/uploads/avatars/"), result.Avatar)

	rec = env.do(t, http.MethodGet, result.Avatar, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

// newMultipartImage writes a one-file form into body and returns its
// Content-Type header.
func newMultipartImage(t *testing.T, body *bytes.Buffer, field, filename string) string {
	t.Helper()
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return writer.FormDataContentType()
}
