package httpapi

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/domain"
)

func (a *API) mountOrders(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.With(a.cached(func(r *http.Request) string {
			phone := r.URL.Query().Get("phoneNumber")
			if phone == "" {
				phone = "none"
			}
			return cache.OrdersByPhoneKey(phone)
		})).Get("/", a.handleListOrders)
		r.With(a.cached(func(r *http.Request) string { return cache.OrderKey(chi.URLParam(r, "orderId")) })).
			Get("/details/{orderId}", a.handleOrderDetail)
		r.Get("/{orderId}/invoice", a.handleDownloadInvoice)
		r.Post("/", a.handleCreateOrder)
		r.Post("/add-product/{orderId}", a.handleAddProduct)
		r.Post("/remove-product/{orderId}", a.handleRemoveProduct)
		r.Post("/checkout/{orderId}", a.handleCheckout)
		r.Patch("/{orderId}", a.handleUpdateOrder)
		r.Delete("/{orderId}", a.handleDeleteOrder)
	})
}

func (a *API) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := a.service.ListOrdersByPhone(r.Context(), r.URL.Query().Get("phoneNumber"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Get orders successfully", orders)
}

func (a *API) handleOrderDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := a.service.GetOrderDetail(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Get order detail successfully", detail)
}

func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	order, err := a.service.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "Order created successfully", order)
}

func (a *API) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	order, err := a.service.AddProductToOrder(r.Context(), chi.URLParam(r, "orderId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Product added to order successfully", order)
}

func (a *API) handleRemoveProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	order, err := a.service.RemoveProductFromOrder(r.Context(), chi.URLParam(r, "orderId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Product removed from order successfully", order)
}

func (a *API) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	order, err := a.service.UpdateOrder(r.Context(), chi.URLParam(r, "orderId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Order updated successfully", order)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	order, err := a.service.Checkout(r.Context(), chi.URLParam(r, "orderId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Order checked out successfully", order)
}

func (a *API) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.DeleteOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Order deleted successfully", order)
}

func (a *API) handleDownloadInvoice(w http.ResponseWriter, r *http.Request) {
	path, err := a.service.InvoicePath(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}
