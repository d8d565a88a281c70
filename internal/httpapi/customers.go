package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/domain"
)

func (a *API) mountCustomers(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.With(a.cached(func(*http.Request) string { return cache.CustomersListKey })).
			Get("/", a.handleListCustomers)
		r.With(a.cached(func(r *http.Request) string { return cache.CustomerKey(chi.URLParam(r, "phoneNumber")) })).
			Get("/{phoneNumber}", a.handleGetCustomer)
		r.With(a.cached(func(r *http.Request) string { return cache.CustomerOrdersKey(chi.URLParam(r, "phoneNumber")) })).
			Get("/history/{phoneNumber}", a.handleCustomerHistory)
		r.Post("/", a.handleCreateCustomer)
		r.Patch("/{customerId}", a.handleUpdateCustomer)
		r.Delete("/{customerId}", a.handleDeleteCustomer)
	})
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.ListCustomers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Get all customers successfully", customers)
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.GetCustomerByPhone(r.Context(), chi.URLParam(r, "phoneNumber"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Get customers successfully", customer)
}

func (a *API) handleCustomerHistory(w http.ResponseWriter, r *http.Request) {
	history, err := a.service.CustomerHistory(r.Context(), chi.URLParam(r, "phoneNumber"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Get order history successfully", history)
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "Customer created successfully", customer)
}

func (a *API) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	customer, err := a.service.UpdateCustomer(r.Context(), chi.URLParam(r, "customerId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Customer updated successfully", customer)
}

func (a *API) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.DeleteCustomer(r.Context(), chi.URLParam(r, "customerId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Customer deleted successfully", customer)
}
