package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/app"
	"github.com/example/storefront/internal/backend"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/paging"
	"github.com/example/storefront/internal/domain/session"
)

type Handlers struct {
	registry *Registry
}

func NewHandlers(registry *Registry) *Handlers {
	return &Handlers{registry: registry}
}

// appFor resolves the per-session App for the request.
func (h *Handlers) appFor(w http.ResponseWriter, r *http.Request) (*app.App, bool) {
	a, err := h.registry.Get(r.Context(), middleware.SessionID(r.Context()))
	if err != nil {
		respondError(w, "failed to load session state", http.StatusInternalServerError)
		return nil, false
	}
	return a, true
}

// Cart Handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, a.Cart.Snapshot())
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	snap, err := a.AddToCart(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}
	productID := extractPathParam(r.URL.Path, "/cart/items/")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	snap, err := a.Cart.SetQuantity(r.Context(), productID, req.Quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}
	productID := extractPathParam(r.URL.Path, "/cart/items/")

	snap, err := a.Cart.RemoveItem(r.Context(), productID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handlers) IncreaseCartItem(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}
	productID := strings.TrimSuffix(extractPathParam(r.URL.Path, "/cart/items/"), "/increase")

	snap, err := a.Cart.IncreaseQuantity(r.Context(), productID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handlers) DecreaseCartItem(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}
	productID := strings.TrimSuffix(extractPathParam(r.URL.Path, "/cart/items/"), "/decrease")

	snap, err := a.Cart.DecreaseQuantity(r.Context(), productID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	snap, err := a.Cart.Clear(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handlers) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	snap, err := a.Cart.ApplyPromo(r.Context(), req.Code)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handlers) RemovePromo(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	snap, err := a.Cart.RemovePromo(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// Checkout / Orders

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	order, err := a.Checkout(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (h *Handlers) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}
	if !a.Session.IsAuthenticated() {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	orders, err := a.Backend().ListMyOrders(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if orders == nil {
		orders = []backend.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// respondDomainError maps domain and backend errors onto HTTP status
// codes.
func respondDomainError(w http.ResponseWriter, err error) {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, cart.ErrInsufficientStock):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, cart.ErrUnknownPromoCode),
		errors.Is(err, paging.ErrInvalidPageSize),
		errors.Is(err, app.ErrEmptyCart):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, app.ErrProductNotFound),
		errors.Is(err, backend.ErrNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, app.ErrNotAuthenticated),
		errors.Is(err, backend.ErrUnauthorized):
		respondError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, backend.ErrInvalidCredentials):
		respondError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, session.ErrSuperseded):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, backend.ErrNetwork):
		respondError(w, "backend unavailable", http.StatusBadGateway)
	case errors.As(err, &apiErr):
		respondError(w, apiErr.Message, apiErr.Status)
	default:
		respondError(w, err.Error(), http.StatusInternalServerError)
	}
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}
