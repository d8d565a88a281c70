package memory

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/xid"
)

// Store keeps every entity in maps guarded by one mutex. Multi-entity writes
// (order line items, restocks, deletes) run under the write lock, so they are
// atomic with respect to each other.
type Store struct {
	mu         sync.RWMutex
	seq        int64
	users      map[string]domain.User
	categories map[string]domain.Category
	sequences  map[string]int64
	customers  map[string]domain.Customer
	products   map[string]domain.Product
	items      map[string]domain.ProductItem
	orders     map[string]domain.Order
	orderItems map[string]domain.OrderItem
	created    map[string]int64
}

func New() *Store {
	return &Store{
		users:      make(map[string]domain.User),
		categories: make(map[string]domain.Category),
		sequences:  make(map[string]int64),
		customers:  make(map[string]domain.Customer),
		products:   make(map[string]domain.Product),
		items:      make(map[string]domain.ProductItem),
		orders:     make(map[string]domain.Order),
		orderItems: make(map[string]domain.OrderItem),
		created:    make(map[string]int64),
	}
}

// NewSeeded returns a store with demo categories, products and customers.
// Users are not seeded here; the service bootstraps the admin account.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	categories := []domain.Category{
		{Name: "Smartphone", Description: "Mobile phones"},
		{Name: "Laptop", Description: "Notebooks and ultrabooks"},
		{Name: "Tablet", Description: "Tablets"},
		{Name: "Accessory", Description: "Chargers, cases and audio"},
	}
	categoryIDs := make([]string, 0, len(categories))
	for _, c := range categories {
		seq, _ := s.NextSequence(ctx, "categoryId")
		c.ID = fmt.Sprintf("%s-%d", strings.ToLower(c.Name), seq)
		_, _ = s.CreateCategory(ctx, c)
		categoryIDs = append(categoryIDs, c.ID)
	}

	products := []struct {
		name         string
		category     int
		manufacturer string
		importPrice  int64
		retailPrice  int64
		stock        int
	}{
		{"iPhone 15 Pro", 0, "Apple", 24000000, 28990000, 5},
		{"Galaxy S24", 0, "Samsung", 18000000, 22990000, 4},
		{"MacBook Air M3", 1, "Apple", 23000000, 27490000, 3},
		{"iPad Air", 2, "Apple", 13000000, 16490000, 3},
		{"AirPods Pro", 3, "Apple", 4500000, 5990000, 6},
		{"Galaxy Buds", 3, "Samsung", 2200000, 3190000, 6},
	}
	for _, p := range products {
		product := domain.Product{
			ID:           xid.New(),
			Name:         p.name,
			Barcode:      xid.Barcode(),
			CategoryID:   categoryIDs[p.category],
			ImportPrice:  p.importPrice,
			RetailPrice:  p.retailPrice,
			Manufacturer: p.manufacturer,
			Images:       []string{"/uploads/products/placeholder.png"},
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		items := make([]domain.ProductItem, 0, p.stock)
		for i := 0; i < p.stock; i++ {
			items = append(items, domain.ProductItem{
				ID:           xid.New(),
				ProductID:    product.ID,
				SerialNumber: xid.Serial(p.manufacturer),
				Status:       domain.ItemInStock,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		_, _ = s.CreateProduct(ctx, product, items)
	}

	for _, c := range []domain.Customer{
		{Name: "Minh Nguyen", PhoneNumber: "0901234567", Address: "12 Le Loi, District 1", Email: "minh.nguyen@example.com"},
		{Name: "Lan Pham", PhoneNumber: "0912345678", Address: "45 Tran Hung Dao, District 5", Email: "lan.pham@example.com"},
	} {
		c.ID = xid.New()
		c.CreatedAt = now
		c.UpdatedAt = now
		_, _ = s.CreateCustomer(ctx, c)
	}

	return s
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// Users.

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) || existing.Username == user.Username {
			return nil, store.ErrConflict
		}
	}
	s.users[user.ID] = user
	s.created[user.ID] = s.nextSeq()
	return cloneUser(user), nil
}

func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	return s.findUser(func(u domain.User) bool { return u.Username == username })
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	return s.findUser(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Store) GetUserByLoginToken(_ context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(func(u domain.User) bool { return u.LoginToken == token })
}

func (s *Store) findUser(match func(domain.User) bool) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if match(user) {
			return cloneUser(user), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, role string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		if role != "" && user.Role != role {
			continue
		}
		users = append(users, *cloneUser(user))
	}
	sortByCreated(s.created, users, func(u domain.User) string { return u.ID })
	return users, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return nil, store.ErrNotFound
	}
	for id, existing := range s.users {
		if id != user.ID && (strings.EqualFold(existing.Email, user.Email) || existing.Username == user.Username) {
			return nil, store.ErrConflict
		}
	}
	s.users[user.ID] = user
	return cloneUser(user), nil
}

// Categories.

func (s *Store) NextSequence(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequences[name]++
	return s.sequences[name], nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[category.ID]; ok {
		return nil, store.ErrConflict
	}
	s.categories[category.ID] = category
	s.created[category.ID] = s.nextSeq()
	return &category, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, ok := s.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &category, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, c)
	}
	sortByCreated(s.created, categories, func(c domain.Category) string { return c.ID })
	return categories, nil
}

// Customers.

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.customers {
		if existing.PhoneNumber == customer.PhoneNumber {
			return nil, store.ErrConflict
		}
	}
	s.customers[customer.ID] = customer
	s.created[customer.ID] = s.nextSeq()
	return &customer, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) GetCustomerByPhone(_ context.Context, phone string) (*domain.Customer, error) {
	return s.findCustomer(func(c domain.Customer) bool { return c.PhoneNumber == phone })
}

func (s *Store) GetCustomerByEmail(_ context.Context, email string) (*domain.Customer, error) {
	if email == "" {
		return nil, store.ErrNotFound
	}
	return s.findCustomer(func(c domain.Customer) bool { return strings.EqualFold(c.Email, email) })
}

func (s *Store) findCustomer(match func(domain.Customer) bool) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, customer := range s.customers {
		if match(customer) {
			return &customer, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	sortByCreated(s.created, customers, func(c domain.Customer) string { return c.ID })
	return customers, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[customer.ID]; !ok {
		return nil, store.ErrNotFound
	}
	for id, existing := range s.customers {
		if id != customer.ID && existing.PhoneNumber == customer.PhoneNumber {
			return nil, store.ErrConflict
		}
	}
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	for _, order := range s.orders {
		if order.CustomerID == id {
			return store.ErrCustomerInUse
		}
	}
	delete(s.customers, id)
	delete(s.created, id)
	return nil
}

// Products.

func (s *Store) ListProducts(_ context.Context, filter store.ProductFilter) ([]domain.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := strings.ToLower(filter.CategoryPrefix)
	matched := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if prefix != "" && !strings.HasPrefix(strings.ToLower(p.CategoryID), prefix+"-") {
			continue
		}
		if !containsFold(p.Manufacturer, filter.Manufacturer) || !containsFold(p.Name, filter.Name) || !containsFold(p.Barcode, filter.Barcode) {
			continue
		}
		if filter.MinPrice != nil && p.RetailPrice < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && p.RetailPrice > *filter.MaxPrice {
			continue
		}
		matched = append(matched, *cloneProduct(p))
	}

	slices.SortStableFunc(matched, func(a, b domain.Product) int {
		for _, field := range filter.Sort {
			c := compareProducts(a, b, field.Field)
			if field.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(s.created[a.ID], s.created[b.ID])
	})

	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func compareProducts(a, b domain.Product, field string) int {
	switch field {
	case "productName":
		return cmp.Compare(a.Name, b.Name)
	case "retailPrice":
		return cmp.Compare(a.RetailPrice, b.RetailPrice)
	case "createdAt":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "manufacturer":
		return cmp.Compare(a.Manufacturer, b.Manufacturer)
	}
	return 0
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneProduct(product), nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Barcode == barcode {
			return cloneProduct(p), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = *cloneProduct(p)
		}
	}
	return result, nil
}

func (s *Store) FindProduct(_ context.Context, lookup store.ProductLookup) (*domain.Product, error) {
	var pattern *regexp.Regexp
	if lookup.NamePattern != "" {
		compiled, err := regexp.Compile("(?i)" + lookup.NamePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid name pattern: %w", err)
		}
		pattern = compiled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Product
	for _, p := range s.products {
		if pattern != nil && !pattern.MatchString(p.Name) {
			continue
		}
		if lookup.Barcode != "" && p.Barcode != lookup.Barcode {
			continue
		}
		if found == nil || s.created[p.ID] < s.created[found.ID] {
			found = cloneProduct(p)
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product, items []domain.ProductItem) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[product.ID]; ok {
		return nil, store.ErrConflict
	}
	for _, p := range s.products {
		if p.Barcode == product.Barcode {
			return nil, store.ErrConflict
		}
	}

	product.StockQuantity = 0
	s.products[product.ID] = product
	s.created[product.ID] = s.nextSeq()
	s.insertItems(items)
	s.recount(product.ID)
	return cloneProduct(s.products[product.ID]), nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product, newItems []domain.ProductItem, removeCount int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}

	if removeCount > 0 {
		inStock := s.inStockItems(product.ID)
		if len(inStock) < removeCount {
			return nil, &store.StockError{Available: len(inStock)}
		}
		for _, item := range inStock[len(inStock)-removeCount:] {
			delete(s.items, item.ID)
			delete(s.created, item.ID)
		}
	}

	product.Barcode = existing.Barcode
	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product
	s.insertItems(newItems)
	s.recount(product.ID)
	return cloneProduct(s.products[product.ID]), nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	for _, oi := range s.orderItems {
		if oi.ProductID == id {
			return store.ErrProductInUse
		}
	}
	for itemID, item := range s.items {
		if item.ProductID == id {
			delete(s.items, itemID)
			delete(s.created, itemID)
		}
	}
	delete(s.products, id)
	delete(s.created, id)
	return nil
}

func (s *Store) ListProductItems(_ context.Context, productID string) ([]domain.ProductItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.products[productID]; !ok {
		return nil, store.ErrNotFound
	}
	return s.productItems(productID, nil), nil
}

func (s *Store) GetProductItem(_ context.Context, id string) (*domain.ProductItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) UpdateProductItemStatus(_ context.Context, id string, status domain.ItemStatus, at time.Time) (*domain.ProductItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	for _, oi := range s.orderItems {
		if oi.ProductItemID == id {
			return nil, store.ErrItemLocked
		}
	}
	item.Status = status
	item.UpdatedAt = at
	s.items[id] = item
	s.recount(item.ProductID)
	return &item, nil
}

func (s *Store) DeleteProductItem(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return store.ErrNotFound
	}
	if item.Status != domain.ItemInStock {
		return store.ErrItemLocked
	}
	delete(s.items, id)
	delete(s.created, id)
	if product, ok := s.products[item.ProductID]; ok {
		product.UpdatedAt = at
		s.products[item.ProductID] = product
	}
	s.recount(item.ProductID)
	return nil
}

// Orders.

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return nil, store.ErrConflict
	}
	s.orders[order.ID] = order
	s.created[order.ID] = s.nextSeq()
	return &order, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (s *Store) ListOrders(_ context.Context, filter store.OrderFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0)
	for _, o := range s.orders {
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.EmployeeID != "" && o.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.From != nil && o.OrderDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && o.OrderDate.After(*filter.To) {
			continue
		}
		orders = append(orders, o)
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if c := b.OrderDate.Compare(a.OrderDate); c != 0 {
			return c
		}
		return cmp.Compare(s.created[b.ID], s.created[a.ID])
	})
	return orders, nil
}

func (s *Store) ListOrderItems(_ context.Context, orderIDs []string) ([]domain.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		wanted[id] = struct{}{}
	}
	items := make([]domain.OrderItem, 0)
	for _, oi := range s.orderItems {
		if _, ok := wanted[oi.OrderID]; ok {
			items = append(items, oi)
		}
	}
	sortByCreated(s.created, items, func(oi domain.OrderItem) string { return oi.ID })
	return items, nil
}

func (s *Store) AddOrderItems(_ context.Context, orderID string, productID string, quantity int, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if order.Status != domain.OrderPending {
		return nil, store.ErrOrderNotPending
	}
	product, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}

	inStock := s.inStockItems(productID)
	if len(inStock) < quantity {
		return nil, &store.StockError{Available: len(inStock)}
	}

	for _, item := range inStock[:quantity] {
		item.Status = domain.ItemSold
		item.UpdatedAt = at
		s.items[item.ID] = item

		oi := domain.OrderItem{
			ID:            xid.New(),
			OrderID:       orderID,
			ProductID:     productID,
			ProductItemID: item.ID,
			UnitPrice:     product.RetailPrice,
			CreatedAt:     at,
		}
		s.orderItems[oi.ID] = oi
		s.created[oi.ID] = s.nextSeq()
		order.Total += product.RetailPrice
	}

	product.UpdatedAt = at
	s.products[productID] = product
	s.recount(productID)
	order.UpdatedAt = at
	s.orders[orderID] = order
	return &order, nil
}

func (s *Store) RemoveOrderItems(_ context.Context, orderID string, productID string, quantity int, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if order.Status != domain.OrderPending {
		return nil, store.ErrOrderNotPending
	}

	lines := make([]domain.OrderItem, 0)
	for _, oi := range s.orderItems {
		if oi.OrderID == orderID && oi.ProductID == productID {
			lines = append(lines, oi)
		}
	}
	if len(lines) == 0 {
		return nil, store.ErrNotFound
	}
	if len(lines) < quantity {
		return nil, &store.StockError{Available: len(lines)}
	}
	// Most recently added units go back first.
	slices.SortFunc(lines, func(a, b domain.OrderItem) int {
		return cmp.Compare(s.created[b.ID], s.created[a.ID])
	})

	for _, oi := range lines[:quantity] {
		s.restoreItem(oi.ProductItemID, at)
		delete(s.orderItems, oi.ID)
		delete(s.created, oi.ID)
		order.Total -= oi.UnitPrice
	}
	s.recount(productID)
	order.UpdatedAt = at
	s.orders[orderID] = order
	return &order, nil
}

func (s *Store) UpdateOrderPayment(_ context.Context, orderID string, payment store.Payment, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.payableOrder(orderID, payment)
	if err != nil {
		return nil, err
	}
	order.AmountReceived = payment.AmountReceived
	order.ChangeGiven = payment.ChangeGiven
	order.UpdatedAt = at
	s.orders[orderID] = order
	return &order, nil
}

func (s *Store) CompleteOrder(_ context.Context, orderID string, payment store.Payment, invoiceURL string, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.payableOrder(orderID, payment)
	if err != nil {
		return nil, err
	}
	order.AmountReceived = payment.AmountReceived
	order.ChangeGiven = payment.ChangeGiven
	order.InvoiceURL = invoiceURL
	order.Status = domain.OrderCompleted
	order.UpdatedAt = at
	s.orders[orderID] = order
	return &order, nil
}

func (s *Store) DeleteOrder(_ context.Context, orderID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	if order.Status != domain.OrderPending {
		return store.ErrOrderNotPending
	}

	touched := make(map[string]struct{})
	for id, oi := range s.orderItems {
		if oi.OrderID != orderID {
			continue
		}
		s.restoreItem(oi.ProductItemID, at)
		touched[oi.ProductID] = struct{}{}
		delete(s.orderItems, id)
		delete(s.created, id)
	}
	for productID := range touched {
		s.recount(productID)
	}
	delete(s.orders, orderID)
	delete(s.created, orderID)
	return nil
}

// helpers; callers hold the lock.

func (s *Store) payableOrder(orderID string, payment store.Payment) (domain.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, store.ErrNotFound
	}
	if order.Status != domain.OrderPending {
		return domain.Order{}, store.ErrOrderNotPending
	}
	if order.Total != payment.ExpectedTotal {
		return domain.Order{}, store.ErrTotalChanged
	}
	return order, nil
}

func (s *Store) insertItems(items []domain.ProductItem) {
	for _, item := range items {
		s.items[item.ID] = item
		s.created[item.ID] = s.nextSeq()
	}
}

func (s *Store) restoreItem(itemID string, at time.Time) {
	item, ok := s.items[itemID]
	if !ok {
		return
	}
	item.Status = domain.ItemInStock
	item.UpdatedAt = at
	s.items[itemID] = item
}

func (s *Store) recount(productID string) {
	product, ok := s.products[productID]
	if !ok {
		return
	}
	count := 0
	for _, item := range s.items {
		if item.ProductID == productID && item.Status == domain.ItemInStock {
			count++
		}
	}
	product.StockQuantity = count
	s.products[productID] = product
}

func (s *Store) inStockItems(productID string) []domain.ProductItem {
	status := domain.ItemInStock
	return s.productItems(productID, &status)
}

// productItems returns the product's items oldest first.
func (s *Store) productItems(productID string, status *domain.ItemStatus) []domain.ProductItem {
	items := make([]domain.ProductItem, 0)
	for _, item := range s.items {
		if item.ProductID != productID {
			continue
		}
		if status != nil && item.Status != *status {
			continue
		}
		items = append(items, item)
	}
	sortByCreated(s.created, items, func(item domain.ProductItem) string { return item.ID })
	return items
}

func sortByCreated[T any](created map[string]int64, values []T, id func(T) string) {
	slices.SortFunc(values, func(a, b T) int {
		return cmp.Compare(created[id(a)], created[id(b)])
	})
}

func containsFold(value string, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(needle))
}

func cloneProduct(p domain.Product) *domain.Product {
	p.Images = slices.Clone(p.Images)
	return &p
}

func cloneUser(u domain.User) *domain.User {
	if u.LoginTokenExpires != nil {
		expires := *u.LoginTokenExpires
		u.LoginTokenExpires = &expires
	}
	return &u
}
