package service

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"retailpos/backend/internal/apperr"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/events"
	"retailpos/backend/internal/invoice"
	"retailpos/backend/internal/mailer"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/xid"
)

const (
	totalChangedMessage = "Order total changed during checkout, please review the order and try again"
	invoiceSubject      = "Your Invoice from POS"
	invoiceText         = "Thank you for your shopping! This is your invoice."
)

func (s *Service) ListOrdersByPhone(ctx context.Context, phone string) ([]domain.Order, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, apperr.Validation("Phone number is required")
	}
	customer, err := s.repo.GetCustomerByPhone(ctx, phone)
	if err != nil {
		return nil, notFound(err, "Customer not found", "getting orders by phone number")
	}
	orders, err := s.repo.ListOrders(ctx, store.OrderFilter{CustomerID: customer.ID})
	if err != nil {
		return nil, apperr.Internal(err, "getting orders by phone number")
	}
	if len(orders) == 0 {
		return nil, apperr.NotFound("No orders found")
	}
	return orders, nil
}

func (s *Service) GetOrderDetail(ctx context.Context, orderID string) (domain.OrderDetail, error) {
	order, err := s.repo.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.OrderDetail{}, notFound(err, "Order not found", "getting order detail")
	}

	var (
		customer *domain.Customer
		lines    []domain.OrderLine
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.repo.GetCustomer(gctx, order.CustomerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		customer = c
		return nil
	})
	g.Go(func() error {
		var err error
		lines, err = s.orderLines(gctx, order.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.OrderDetail{}, apperr.Internal(err, "getting order detail")
	}

	return domain.OrderDetail{Order: *order, Customer: customer, Products: lines}, nil
}

// orderLines groups an order's items per product in the order they were added.
func (s *Service) orderLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	items, err := s.repo.ListOrderItems(ctx, []string{orderID})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []domain.OrderLine{}, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if !slices.Contains(ids, item.ProductID) {
			ids = append(ids, item.ProductID)
		}
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(ids))
	lines := make([]domain.OrderLine, 0, len(ids))
	for _, item := range items {
		i, ok := index[item.ProductID]
		if !ok {
			product := products[item.ProductID]
			lines = append(lines, domain.OrderLine{
				ProductID:   item.ProductID,
				ProductName: product.Name,
				Barcode:     product.Barcode,
				UnitPrice:   item.UnitPrice,
			})
			i = len(lines) - 1
			index[item.ProductID] = i
		}
		lines[i].Quantity++
		lines[i].TotalPrice += item.UnitPrice
	}
	return lines, nil
}

func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" {
		return domain.Order{}, apperr.Validation("Phone number is required")
	}
	customer, err := s.repo.GetCustomerByPhone(ctx, phone)
	if err != nil {
		return domain.Order{}, notFound(err, "Customer not found", "creating order")
	}
	if _, err := s.repo.GetUser(ctx, actor.UserID); err != nil {
		return domain.Order{}, notFound(err, "Employee not found", "creating order")
	}

	now := s.now()
	created, err := s.repo.CreateOrder(ctx, domain.Order{
		ID:         xid.New(),
		CustomerID: customer.ID,
		EmployeeID: actor.UserID,
		Status:     domain.OrderPending,
		OrderDate:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return domain.Order{}, apperr.Internal(err, "creating order")
	}
	s.publish(ctx, events.Change{Kind: events.KindOrder, ID: created.ID, Phone: customer.PhoneNumber, EmployeeID: created.EmployeeID})
	return *created, nil
}

// findOrderProduct resolves the product named by an add or remove request.
func (s *Service) findOrderProduct(ctx context.Context, req domain.OrderItemRequest, action string) (*domain.Product, error) {
	name := strings.TrimSpace(req.ProductName)
	barcode := strings.TrimSpace(req.Barcode)
	if name == "" && barcode == "" {
		return nil, apperr.Validation("Product name or barcode is required")
	}
	if name != "" {
		if _, err := regexp.Compile(name); err != nil {
			return nil, apperr.Validation("Invalid product name pattern")
		}
	}
	product, err := s.repo.FindProduct(ctx, store.ProductLookup{NamePattern: name, Barcode: barcode})
	if err != nil {
		return nil, notFound(err, "Product not found", action)
	}
	return product, nil
}

func (s *Service) pendingOrder(ctx context.Context, orderID string, action string) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, notFound(err, "Order not found", action)
	}
	if order.Status != domain.OrderPending {
		return nil, apperr.Validation("Order is already completed")
	}
	return order, nil
}

func (s *Service) AddProductToOrder(ctx context.Context, orderID string, req domain.OrderItemRequest) (domain.Order, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return domain.Order{}, err
	}
	order, err := s.pendingOrder(ctx, orderID, "adding product to order")
	if err != nil {
		return domain.Order{}, err
	}
	product, err := s.findOrderProduct(ctx, req, "adding product to order")
	if err != nil {
		return domain.Order{}, err
	}

	switch {
	case req.Quantity <= 0:
		return domain.Order{}, apperr.Validation("Quantity must be greater than 0")
	case product.StockQuantity == 0:
		return domain.Order{}, apperr.Validation("Product is out of stock")
	case product.StockQuantity < req.Quantity:
		return domain.Order{}, apperr.Validation("Product have only %d items", product.StockQuantity)
	case !product.IsActive:
		return domain.Order{}, apperr.Validation("Product is not active")
	}

	updated, err := s.repo.AddOrderItems(ctx, order.ID, product.ID, req.Quantity, s.now())
	if err != nil {
		var stockErr *store.StockError
		switch {
		case errors.As(err, &stockErr):
			return domain.Order{}, apperr.Validation("Only %d items available", stockErr.Available)
		case errors.Is(err, store.ErrOrderNotPending):
			return domain.Order{}, apperr.Validation("Order is already completed")
		}
		return domain.Order{}, notFound(err, "Order not found", "adding product to order")
	}
	s.publishOrder(ctx, *updated, *product)
	return *updated, nil
}

func (s *Service) RemoveProductFromOrder(ctx context.Context, orderID string, req domain.OrderItemRequest) (domain.Order, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return domain.Order{}, err
	}
	order, err := s.pendingOrder(ctx, orderID, "removing product from order")
	if err != nil {
		return domain.Order{}, err
	}
	if req.Quantity <= 0 {
		return domain.Order{}, apperr.Validation("Quantity must be greater than 0")
	}
	product, err := s.findOrderProduct(ctx, req, "removing product from order")
	if err != nil {
		return domain.Order{}, err
	}

	updated, err := s.repo.RemoveOrderItems(ctx, order.ID, product.ID, req.Quantity, s.now())
	if err != nil {
		var stockErr *store.StockError
		switch {
		case errors.As(err, &stockErr):
			return domain.Order{}, apperr.Validation("Only %d items available to remove", stockErr.Available)
		case errors.Is(err, store.ErrOrderNotPending):
			return domain.Order{}, apperr.Validation("Order is already completed")
		}
		return domain.Order{}, notFound(err, "Product not found in order", "removing product from order")
	}
	s.publishOrder(ctx, *updated, *product)
	return *updated, nil
}

func (s *Service) UpdateOrder(ctx context.Context, orderID string, req domain.OrderUpdateRequest) (domain.Order, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return domain.Order{}, err
	}
	order, err := s.pendingOrder(ctx, orderID, "updating order")
	if err != nil {
		return domain.Order{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, order.CustomerID)
	if err != nil {
		return domain.Order{}, notFound(err, "Customer not found", "updating order")
	}

	if req.AmountReceived != nil && *req.AmountReceived < order.Total {
		return domain.Order{}, apperr.Validation("Amount received is less than the total amount")
	}

	updatedCustomer := *customer
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		email := strings.TrimSpace(*req.Email)
		owner, err := s.repo.GetCustomerByEmail(ctx, email)
		switch {
		case err == nil && owner.ID != customer.ID:
			return domain.Order{}, apperr.Validation("Email exist! Please insert other email")
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return domain.Order{}, apperr.Internal(err, "updating order")
		}
		updatedCustomer.Email = email
	}
	if req.Address != nil && strings.TrimSpace(*req.Address) != "" {
		updatedCustomer.Address = strings.TrimSpace(*req.Address)
	}

	now := s.now()
	if updatedCustomer != *customer {
		updatedCustomer.UpdatedAt = now
		if _, err := s.repo.UpdateCustomer(ctx, updatedCustomer); err != nil {
			return domain.Order{}, apperr.Internal(err, "updating order")
		}
		s.publish(ctx, events.Change{Kind: events.KindCustomer, ID: customer.ID, Phone: customer.PhoneNumber})
	}

	updated := order
	if req.AmountReceived != nil {
		payment := store.Payment{
			ExpectedTotal:  order.Total,
			AmountReceived: *req.AmountReceived,
			ChangeGiven:    *req.AmountReceived - order.Total,
		}
		updated, err = s.repo.UpdateOrderPayment(ctx, order.ID, payment, now)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrOrderNotPending):
				return domain.Order{}, apperr.Validation("Order is already completed")
			case errors.Is(err, store.ErrTotalChanged):
				return domain.Order{}, apperr.Validation(totalChangedMessage)
			}
			return domain.Order{}, notFound(err, "Order not found", "updating order")
		}
	}
	s.publish(ctx, events.Change{Kind: events.KindOrder, ID: updated.ID, Phone: customer.PhoneNumber, EmployeeID: updated.EmployeeID})
	return *updated, nil
}

func (s *Service) Checkout(ctx context.Context, orderID string, req domain.CheckoutRequest) (domain.Order, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return domain.Order{}, err
	}
	order, err := s.repo.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, notFound(err, "Order not found", "checking out order")
	}
	if order.Status != domain.OrderPending || order.CustomerID == "" || order.EmployeeID == "" || order.Total <= 0 {
		return domain.Order{}, apperr.Validation("Order is not ready for checkout")
	}

	amount := order.AmountReceived
	if req.AmountReceived != nil {
		amount = *req.AmountReceived
	}
	if amount <= 0 {
		return domain.Order{}, apperr.Validation("Amount received is required")
	}
	if amount < order.Total {
		return domain.Order{}, apperr.Validation("Amount received is less than the total amount")
	}
	change := amount - order.Total

	customer, err := s.repo.GetCustomer(ctx, order.CustomerID)
	if err != nil {
		return domain.Order{}, notFound(err, "Customer not found", "checking out order")
	}
	lines, err := s.orderLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, apperr.Internal(err, "checking out order")
	}
	if s.invoices == nil {
		return domain.Order{}, apperr.Internal(errors.New("invoice generator not configured"), "checking out order")
	}

	snapshot := *order
	snapshot.AmountReceived = amount
	snapshot.ChangeGiven = change
	invoicePath, err := s.invoices.Generate(ctx, invoice.Data{Order: snapshot, Customer: *customer, Lines: lines})
	if err != nil {
		return domain.Order{}, apperr.Internal(err, "generating invoice")
	}

	payment := store.Payment{ExpectedTotal: order.Total, AmountReceived: amount, ChangeGiven: change}
	completed, err := s.repo.CompleteOrder(ctx, order.ID, payment, invoicePath, s.now())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrOrderNotPending):
			return domain.Order{}, apperr.Validation("Order is not ready for checkout")
		case errors.Is(err, store.ErrTotalChanged):
			return domain.Order{}, apperr.Validation(totalChangedMessage)
		}
		return domain.Order{}, apperr.Internal(err, "checking out order")
	}

	if customer.Email != "" {
		envelope := mailer.Envelope{
			To:             customer.Email,
			ToName:         customer.Name,
			Subject:        invoiceSubject,
			Text:           invoiceText,
			AttachmentPath: invoicePath,
		}
		if err := s.mail.Dispatch(ctx, envelope); err != nil {
			s.logger.Warn("invoice email failed", "order_id", completed.ID, "to", customer.Email, "error", err)
		}
	}

	refs := make([]events.ProductRef, 0, len(lines))
	for _, line := range lines {
		refs = append(refs, events.ProductRef{ID: line.ProductID, Barcode: line.Barcode})
	}
	s.publish(ctx, events.Change{
		Kind:       events.KindOrder,
		ID:         completed.ID,
		Phone:      customer.PhoneNumber,
		EmployeeID: completed.EmployeeID,
		Products:   refs,
	})
	return *completed, nil
}

func (s *Service) DeleteOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return domain.Order{}, err
	}
	order, err := s.pendingOrder(ctx, orderID, "deleting order")
	if err != nil {
		return domain.Order{}, err
	}
	lines, err := s.orderLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, apperr.Internal(err, "deleting order")
	}

	if err := s.repo.DeleteOrder(ctx, order.ID, s.now()); err != nil {
		if errors.Is(err, store.ErrOrderNotPending) {
			return domain.Order{}, apperr.Validation("Order is already completed")
		}
		return domain.Order{}, notFound(err, "Order not found", "deleting order")
	}

	change := events.Change{Kind: events.KindOrder, ID: order.ID, EmployeeID: order.EmployeeID}
	if customer, err := s.repo.GetCustomer(ctx, order.CustomerID); err == nil {
		change.Phone = customer.PhoneNumber
	}
	for _, line := range lines {
		change.Products = append(change.Products, events.ProductRef{ID: line.ProductID, Barcode: line.Barcode})
	}
	s.publish(ctx, change)
	return *order, nil
}

// InvoicePath returns the stored invoice file of a completed order.
func (s *Service) InvoicePath(ctx context.Context, orderID string) (string, error) {
	order, err := s.repo.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return "", notFound(err, "Order not found", "getting invoice")
	}
	if order.Status != domain.OrderCompleted || order.InvoiceURL == "" {
		return "", apperr.NotFound("Invoice not found")
	}
	return order.InvoiceURL, nil
}

func (s *Service) publishOrder(ctx context.Context, order domain.Order, product domain.Product) {
	change := events.Change{
		Kind:       events.KindOrder,
		ID:         order.ID,
		EmployeeID: order.EmployeeID,
		Products:   []events.ProductRef{{ID: product.ID, Barcode: product.Barcode}},
	}
	if customer, err := s.repo.GetCustomer(ctx, order.CustomerID); err == nil {
		change.Phone = customer.PhoneNumber
	}
	s.publish(ctx, change)
}
