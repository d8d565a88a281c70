package service

import (
	"context"
	"errors"
	"strings"

	"retailpos/backend/internal/apperr"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/events"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/xid"
)

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "getting customers")
	}
	if len(customers) == 0 {
		return nil, apperr.NotFound("No customers found")
	}
	return customers, nil
}

func (s *Service) GetCustomerByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.Customer{}, apperr.Validation("Phone number is required")
	}
	customer, err := s.repo.GetCustomerByPhone(ctx, phone)
	if err != nil {
		return domain.Customer{}, notFound(err, "No customers found", "getting customer by phone number")
	}
	return *customer, nil
}

func (s *Service) CustomerHistory(ctx context.Context, phone string) (domain.CustomerHistory, error) {
	customer, err := s.GetCustomerByPhone(ctx, phone)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return domain.CustomerHistory{}, apperr.NotFound("Customer not found")
		}
		return domain.CustomerHistory{}, err
	}
	orders, err := s.repo.ListOrders(ctx, store.OrderFilter{CustomerID: customer.ID})
	if err != nil {
		return domain.CustomerHistory{}, apperr.Internal(err, "getting order history")
	}
	if len(orders) == 0 {
		return domain.CustomerHistory{}, apperr.NotFound("No orders found for this customer")
	}
	return domain.CustomerHistory{Customer: customer, Orders: orders}, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (domain.Customer, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return domain.Customer{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Address = strings.TrimSpace(req.Address)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validateStruct(req); err != nil {
		return domain.Customer{}, err
	}

	now := s.now()
	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		ID:          xid.New(),
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		Email:       req.Email,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Customer{}, apperr.Validation("Phone number already exists")
		}
		return domain.Customer{}, apperr.Internal(err, "creating customer")
	}
	s.publish(ctx, events.Change{Kind: events.KindCustomer, ID: created.ID, Phone: created.PhoneNumber})
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, customerID string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return domain.Customer{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Address = strings.TrimSpace(req.Address)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.PhoneNumber == "" || req.Address == "" {
		return domain.Customer{}, apperr.Validation("Customer name, address and phone number are required")
	}
	if err := s.validateStruct(req); err != nil {
		return domain.Customer{}, err
	}

	existing, err := s.repo.GetCustomer(ctx, strings.TrimSpace(customerID))
	if err != nil {
		return domain.Customer{}, notFound(err, "Customer not found", "updating customer")
	}

	updated := *existing
	updated.Name = req.Name
	updated.PhoneNumber = req.PhoneNumber
	updated.Address = req.Address
	if req.Email != "" {
		updated.Email = req.Email
	}
	updated.UpdatedAt = s.now()

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Customer{}, apperr.Validation("Phone number already exists")
		}
		return domain.Customer{}, notFound(err, "Customer not found", "updating customer")
	}

	change := events.Change{Kind: events.KindCustomer, ID: saved.ID, Phone: saved.PhoneNumber}
	if existing.PhoneNumber != saved.PhoneNumber {
		change.PreviousPhone = existing.PhoneNumber
	}
	s.publish(ctx, change)
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return domain.Customer{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, strings.TrimSpace(customerID))
	if err != nil {
		return domain.Customer{}, notFound(err, "Customer not found", "deleting customer")
	}
	if err := s.repo.DeleteCustomer(ctx, customer.ID); err != nil {
		if errors.Is(err, store.ErrCustomerInUse) {
			return domain.Customer{}, apperr.Validation("Customer cannot be deleted because they have orders")
		}
		return domain.Customer{}, notFound(err, "Customer not found", "deleting customer")
	}
	s.publish(ctx, events.Change{Kind: events.KindCustomer, ID: customer.ID, Phone: customer.PhoneNumber})
	return *customer, nil
}
