package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"retailpos/backend/internal/apperr"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store"
)

const dateLayout = "2006-01-02"

// reportWindow is an inclusive time range. Nil bounds are open.
type reportWindow struct {
	label string
	from  *time.Time
	to    *time.Time
}

func (s *Service) resolveWindow(timeline string, req domain.ReportRequest) (reportWindow, error) {
	timeline = strings.TrimSpace(timeline)
	now := s.now().In(s.location)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)

	window := func(label string, from, to time.Time) reportWindow {
		return reportWindow{label: label, from: &from, to: &to}
	}

	start, end := strings.TrimSpace(req.StartDate), strings.TrimSpace(req.EndDate)
	if start != "" && end != "" {
		return s.dateWindow(start, end)
	}
	if start != "" || end != "" {
		return reportWindow{}, apperr.Validation("Start date and end date are required")
	}

	switch timeline {
	case "today":
		return window("Today", startOfDay, now), nil
	case "yesterday":
		return window("Yesterday", startOfDay.AddDate(0, 0, -1), startOfDay.Add(-time.Nanosecond)), nil
	case "last7days":
		return window("Last 7 Days", startOfDay.AddDate(0, 0, -7), now), nil
	case "thisMonth":
		return window("This Month", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.location), now), nil
	case "":
		return reportWindow{label: "All Time"}, nil
	default:
		return reportWindow{}, apperr.Validation("Invalid timeline. Allowed values: today, yesterday, last7days, thisMonth")
	}
}

// dateWindow is used whenever both dates are present, ignoring the timeline.
func (s *Service) dateWindow(start, end string) (reportWindow, error) {
	from, _, err := s.parseReportDate(start)
	if err != nil {
		return reportWindow{}, err
	}
	to, dateOnly, err := s.parseReportDate(end)
	if err != nil {
		return reportWindow{}, err
	}
	if dateOnly {
		to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if from.After(to) {
		return reportWindow{}, apperr.Validation("Start date cannot be after end date")
	}
	return reportWindow{label: fmt.Sprintf("From %s to %s", start, end), from: &from, to: &to}, nil
}

func (s *Service) parseReportDate(raw string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(dateLayout, raw, s.location); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, apperr.Validation("Invalid date format: %s", raw)
}

func (s *Service) completedOrders(ctx context.Context, window reportWindow) ([]domain.Order, []domain.OrderItem, error) {
	orders, err := s.repo.ListOrders(ctx, store.OrderFilter{
		Status: domain.OrderCompleted,
		From:   window.from,
		To:     window.to,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(orders) == 0 {
		return orders, nil, nil
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	items, err := s.repo.ListOrderItems(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return orders, items, nil
}

func (s *Service) SalesReport(ctx context.Context, timeline string, req domain.ReportRequest) (domain.SalesReport, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}
	window, err := s.resolveWindow(timeline, req)
	if err != nil {
		return domain.SalesReport{}, err
	}
	orders, items, err := s.completedOrders(ctx, window)
	if err != nil {
		return domain.SalesReport{}, apperr.Internal(err, "getting reports")
	}

	slices.SortFunc(orders, func(a, b domain.Order) int { return a.OrderDate.Compare(b.OrderDate) })

	report := domain.SalesReport{
		Timeline:      window.label,
		TotalOrders:   len(orders),
		TotalProducts: len(items),
		Orders:        orders,
	}
	for _, o := range orders {
		report.TotalAmountReceived += o.AmountReceived
		report.TotalIncome += o.Total
	}

	if actor.IsAdmin() {
		var importCost int64
		if len(items) > 0 {
			products, err := s.repo.GetProductsByIDs(ctx, productIDs(items))
			if err != nil {
				return domain.SalesReport{}, apperr.Internal(err, "getting reports")
			}
			for _, item := range items {
				importCost += products[item.ProductID].ImportPrice
			}
		}
		profit := report.TotalAmountReceived - importCost
		report.TotalProfit = &profit
	}
	return report, nil
}

func (s *Service) ProductReport(ctx context.Context, timeline string, req domain.ReportRequest) (domain.ProductReport, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return domain.ProductReport{}, err
	}
	window, err := s.resolveWindow(timeline, req)
	if err != nil {
		return domain.ProductReport{}, err
	}
	_, items, err := s.completedOrders(ctx, window)
	if err != nil {
		return domain.ProductReport{}, apperr.Internal(err, "getting products report")
	}

	report := domain.ProductReport{Timeline: window.label, Products: []domain.ProductSales{}}
	if len(items) == 0 {
		return report, nil
	}

	products, err := s.repo.GetProductsByIDs(ctx, productIDs(items))
	if err != nil {
		return domain.ProductReport{}, apperr.Internal(err, "getting products report")
	}
	sold := make(map[string]int, len(products))
	for _, item := range items {
		sold[item.ProductID]++
	}
	for id, count := range sold {
		p := products[id]
		report.Products = append(report.Products, domain.ProductSales{
			ProductID:     id,
			ProductName:   p.Name,
			Barcode:       p.Barcode,
			TotalSold:     count,
			StockQuantity: p.StockQuantity,
			IsActive:      p.IsActive,
		})
	}
	slices.SortFunc(report.Products, func(a, b domain.ProductSales) int {
		if c := cmp.Compare(b.TotalSold, a.TotalSold); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductName, b.ProductName)
	})
	return report, nil
}

func productIDs(items []domain.OrderItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if !slices.Contains(ids, item.ProductID) {
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}
