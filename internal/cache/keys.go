package cache

import "fmt"

// ReportTimelines are the preset report windows.
var ReportTimelines = []string{"today", "yesterday", "last7days", "thisMonth"}

const (
	CustomersListKey  = "customers_list"
	EmployeesListKey  = "employees_list"
	CategoriesListKey = "categories_list"
)

func OrdersByPhoneKey(phone string) string { return "orders_phoneNumber_" + phone }

func OrderKey(id string) string { return "order_" + id }

func ProductKey(id string) string { return "product_" + id }

func ProductBarcodeKey(barcode string) string { return "product_barcode_" + barcode }

func ProductItemsKey(productID string) string { return "product_items_" + productID }

func ProductItemsBarcodeKey(barcode string) string { return "product_items_barcode_" + barcode }

// PublicView is the variant of a product key cached for non-admin users,
// whose payload omits the import price.
func PublicView(key string) string { return key + ":public" }

func CustomerKey(phone string) string { return "customer_" + phone }

func CustomerOrdersKey(phone string) string { return "customer_orders_" + phone }

func EmployeeProfileKey(userID string) string { return "employee_profile_" + userID }

// AdminEmployeeProfileKey is the admin view of an employee, which carries a
// different payload than the employee's own profile.
func AdminEmployeeProfileKey(employeeID string) string { return "admin_employee_profile_" + employeeID }

func SalesReportKey(userID, timeline, start, end string) string {
	if timeline != "" {
		return fmt.Sprintf("%s_timeline:%s", userID, timeline)
	}
	return fmt.Sprintf("%s_start:%s_end:%s", userID, start, end)
}

func ProductReportKey(userID, start, end, timeline string) string {
	return fmt.Sprintf("product_report:%s:%s:%s:%s", userID, start, end, timeline)
}

// ReportKeys lists the preset and all-time report keys of one user.
func ReportKeys(userID string) []string {
	keys := make([]string, 0, 2*len(ReportTimelines)+2)
	for _, timeline := range ReportTimelines {
		keys = append(keys, SalesReportKey(userID, timeline, "", ""), ProductReportKey(userID, "", "", timeline))
	}
	keys = append(keys, SalesReportKey(userID, "", "", ""), ProductReportKey(userID, "", "", ""))
	return keys
}
