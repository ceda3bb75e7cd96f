package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/storefront/internal/app"
	"github.com/example/storefront/internal/domain/catalog"
)

// Catalog Handlers

type productPage struct {
	Items    []catalog.Product `json:"items"`
	Page     catalog.PageInfo  `json:"page"`
	Criteria catalog.Criteria  `json:"criteria"`
}

func respondProductPage(w http.ResponseWriter, a *app.App) {
	items, info := a.Catalog.Page()
	respondJSON(w, http.StatusOK, productPage{
		Items:    items,
		Page:     info,
		Criteria: a.Catalog.Criteria(),
	})
}

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	respondProductPage(w, a)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}
	id := extractPathParam(r.URL.Path, "/catalog/products/")

	if product, ok := a.Catalog.Product(id); ok {
		respondJSON(w, http.StatusOK, product)
		return
	}
	product, err := a.Backend().GetProduct(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) GetCategories(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, a.Catalog.Categories())
}

func (h *Handlers) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	if err := a.RefreshCatalog(r.Context()); err != nil {
		respondDomainError(w, err)
		return
	}
	respondProductPage(w, a)
}

func (h *Handlers) SetFilters(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	var patch catalog.CriteriaPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := a.Catalog.SetCriteria(r.Context(), patch); err != nil {
		respondDomainError(w, err)
		return
	}
	respondProductPage(w, a)
}

func (h *Handlers) ClearFilters(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	if _, err := a.Catalog.ClearCriteria(r.Context()); err != nil {
		respondDomainError(w, err)
		return
	}
	respondProductPage(w, a)
}

func (h *Handlers) SetPage(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	var req struct {
		Page int `json:"page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a.Catalog.SetPage(req.Page)
	respondProductPage(w, a)
}

func (h *Handlers) SetPageSize(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	var req struct {
		PageSize int `json:"page_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := a.Catalog.SetPageSize(req.PageSize); err != nil {
		respondDomainError(w, err)
		return
	}
	respondProductPage(w, a)
}
