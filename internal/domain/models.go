package domain

import "time"

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

type ItemStatus string

const (
	ItemInStock    ItemStatus = "IN_STOCK"
	ItemSold       ItemStatus = "SOLD"
	ItemWarranty   ItemStatus = "WARRANTY"
	ItemReturned   ItemStatus = "RETURNED"
	ItemProcessing ItemStatus = "PROCESSING"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemInStock, ItemSold, ItemWarranty, ItemReturned, ItemProcessing:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

type Actor struct {
	UserID   string
	Username string
	Role     string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type Category struct {
	ID          string `json:"categoryId"`
	Name        string `json:"categoryName"`
	Description string `json:"description"`
}

type Product struct {
	ID            string    `json:"productId"`
	Name          string    `json:"productName"`
	Barcode       string    `json:"barcode"`
	CategoryID    string    `json:"categoryId"`
	ImportPrice   int64     `json:"importPrice"`
	RetailPrice   int64     `json:"retailPrice"`
	Manufacturer  string    `json:"manufacturer"`
	Description   string    `json:"description"`
	Images        []string  `json:"image"`
	StockQuantity int       `json:"stockQuantity"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PublicProduct is the catalog view served to non-admin users.
type PublicProduct struct {
	ID            string    `json:"productId"`
	Name          string    `json:"productName"`
	Barcode       string    `json:"barcode"`
	CategoryID    string    `json:"categoryId"`
	RetailPrice   int64     `json:"retailPrice"`
	Manufacturer  string    `json:"manufacturer"`
	Description   string    `json:"description"`
	Images        []string  `json:"image"`
	StockQuantity int       `json:"stockQuantity"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (p Product) Public() PublicProduct {
	return PublicProduct{
		ID:            p.ID,
		Name:          p.Name,
		Barcode:       p.Barcode,
		CategoryID:    p.CategoryID,
		RetailPrice:   p.RetailPrice,
		Manufacturer:  p.Manufacturer,
		Description:   p.Description,
		Images:        p.Images,
		StockQuantity: p.StockQuantity,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type ProductItem struct {
	ID           string     `json:"productItemId"`
	ProductID    string     `json:"productId"`
	SerialNumber string     `json:"serialNumber"`
	Status       ItemStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Customer struct {
	ID          string    `json:"customerId"`
	Name        string    `json:"customerName"`
	PhoneNumber string    `json:"phoneNumber"`
	Address     string    `json:"address"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Order struct {
	ID             string      `json:"orderId"`
	CustomerID     string      `json:"customerId"`
	EmployeeID     string      `json:"employeeId"`
	Total          int64       `json:"total"`
	AmountReceived int64       `json:"amountReceived"`
	ChangeGiven    int64       `json:"changeGiven"`
	Status         OrderStatus `json:"status"`
	InvoiceURL     string      `json:"invoiceUrl"`
	OrderDate      time.Time   `json:"orderDate"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

type OrderItem struct {
	ID            string    `json:"orderItemId"`
	OrderID       string    `json:"orderId"`
	ProductID     string    `json:"productId"`
	ProductItemID string    `json:"productItemId"`
	UnitPrice     int64     `json:"unitPrice"`
	CreatedAt     time.Time `json:"createdAt"`
}

// OrderLine is the per-product consolidation of an order's items.
type OrderLine struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Barcode     string `json:"barcode"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	TotalPrice  int64  `json:"totalPrice"`
}

type User struct {
	ID                string     `json:"userId"`
	FullName          string     `json:"fullName"`
	Email             string     `json:"email"`
	Mobile            string     `json:"mobile"`
	Username          string     `json:"username"`
	PasswordHash      string     `json:"-"`
	Role              string     `json:"role"`
	IsLocked          bool       `json:"isLocked"`
	IsActive          bool       `json:"isActive"`
	Avatar            string     `json:"avatar"`
	LoginToken        string     `json:"-"`
	LoginTokenExpires *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// ImageUpload is an image received from a client before it is stored.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ProductQuery struct {
	Category    string
	Brand       string
	ProductName string
	Barcode     string
	MinPrice    string
	MaxPrice    string
	Sort        string
	Page        string
	Limit       string
}

type ProductCreateRequest struct {
	Name          string
	ImportPrice   *int64
	RetailPrice   *int64
	CategoryID    string
	Manufacturer  string
	Description   string
	StockQuantity *int
	Images        []ImageUpload
}

type ProductUpdateRequest struct {
	Name          *string
	ImportPrice   *int64
	RetailPrice   *int64
	CategoryID    *string
	Manufacturer  *string
	Description   *string
	StockQuantity *int
	IsActive      *bool
	Images        []ImageUpload
}

type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

type ProductPage struct {
	Products   any        `json:"products"`
	Pagination Pagination `json:"pagination"`
}

type ProductItemStatusRequest struct {
	Status ItemStatus `json:"status"`
}

type CustomerRequest struct {
	Name        string `json:"customerName" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Address     string `json:"address" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
}

type CustomerUpdateRequest struct {
	Name        string `json:"customerName" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Address     string `json:"address" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
}

type CustomerHistory struct {
	Customer Customer `json:"customer"`
	Orders   []Order  `json:"orders"`
}

type OrderCreateRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type OrderItemRequest struct {
	ProductName string `json:"productName"`
	Barcode     string `json:"barcode"`
	Quantity    int    `json:"quantity"`
}

type OrderUpdateRequest struct {
	AmountReceived *int64  `json:"amountReceived"`
	Email          *string `json:"email"`
	Address        *string `json:"address"`
}

type CheckoutRequest struct {
	AmountReceived *int64 `json:"amountReceived"`
}

type OrderDetail struct {
	Order    Order       `json:"order"`
	Customer *Customer   `json:"customer,omitempty"`
	Products []OrderLine `json:"products"`
}

type ReportRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type SalesReport struct {
	Timeline            string  `json:"timeline"`
	TotalAmountReceived int64   `json:"totalAmountReceived"`
	TotalIncome         int64   `json:"totalIncome"`
	TotalProfit         *int64  `json:"totalProfit,omitempty"`
	TotalOrders         int     `json:"totalOrders"`
	TotalProducts       int     `json:"totalProducts"`
	Orders              []Order `json:"orders"`
}

type ProductSales struct {
	ProductID     string `json:"productId"`
	ProductName   string `json:"productName"`
	Barcode       string `json:"barcode"`
	TotalSold     int    `json:"totalSold"`
	StockQuantity int    `json:"stockQuantity"`
	IsActive      bool   `json:"isActive"`
}

type ProductReport struct {
	Timeline string         `json:"timeline"`
	Products []ProductSales `json:"products"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	UserID   string `json:"userId"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

type EmployeeCreateRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Mobile   string `json:"mobile"`
}

type PasswordResetRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

type PasswordChangeRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type EmployeeProfile struct {
	Employee User    `json:"employee"`
	Orders   []Order `json:"orders"`
}

type CategoryCreateRequest struct {
	Name        string `json:"categoryName" validate:"required"`
	Description string `json:"description"`
}

type EmployeeLockResult struct {
	Message  string `json:"message"`
	IsLocked bool   `json:"isLocked"`
}

type AvatarResult struct {
	Avatar string `json:"avatar"`
}

type MessageResult struct {
	Message string `json:"message"`
}
