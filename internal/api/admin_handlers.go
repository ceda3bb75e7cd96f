package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/storefront/internal/app"
	"github.com/example/storefront/internal/backend"
)

// Admin Handlers
//
// The admin surface proxies straight to the backend; the only state
// kept here is the admin's own session. The backend enforces
// authorization too, so the role check below is a fast local gate, not
// the security boundary.

func (h *Handlers) adminAppFor(w http.ResponseWriter, r *http.Request) (*app.App, bool) {
	a, ok := h.appFor(w, r)
	if !ok {
		return nil, false
	}
	if !a.Session.IsAuthenticated() {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	if !a.Session.HasRole("admin") {
		respondError(w, "forbidden", http.StatusForbidden)
		return nil, false
	}
	return a, true
}

func (h *Handlers) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	a, ok := h.adminAppFor(w, r)
	if !ok {
		return
	}

	var input backend.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	product, err := a.Backend().CreateProduct(r.Context(), input)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (h *Handlers) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	a, ok := h.adminAppFor(w, r)
	if !ok {
		return
	}
	id := extractPathParam(r.URL.Path, "/admin/products/")

	var input backend.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	product, err := a.Backend().UpdateProduct(r.Context(), id, input)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	a, ok := h.adminAppFor(w, r)
	if !ok {
		return
	}
	id := extractPathParam(r.URL.Path, "/admin/products/")

	if err := a.Backend().DeleteProduct(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

func (h *Handlers) AdminGetOrders(w http.ResponseWriter, r *http.Request) {
	a, ok := h.adminAppFor(w, r)
	if !ok {
		return
	}

	orders, err := a.Backend().ListOrders(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if orders == nil {
		orders = []backend.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) AdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := h.adminAppFor(w, r)
	if !ok {
		return
	}
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/admin/orders/"), "/status")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	order, err := a.Backend().UpdateOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *Handlers) AdminGetUsers(w http.ResponseWriter, r *http.Request) {
	a, ok := h.adminAppFor(w, r)
	if !ok {
		return
	}

	users, err := a.Backend().ListUsers(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *Handlers) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	a, ok := h.adminAppFor(w, r)
	if !ok {
		return
	}
	id := extractPathParam(r.URL.Path, "/admin/users/")

	if err := a.Backend().DeleteUser(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (h *Handlers) AdminGetDashboard(w http.ResponseWriter, r *http.Request) {
	a, ok := h.adminAppFor(w, r)
	if !ok {
		return
	}

	stats, err := a.Backend().GetDashboardStats(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
