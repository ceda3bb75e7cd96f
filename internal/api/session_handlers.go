package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/storefront/internal/domain/session"
)

// Session Handlers

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *session.User `json:"user,omitempty"`
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	resp := sessionResponse{}
	if user, ok := a.Session.Current(); ok {
		resp.Authenticated = true
		resp.User = &user
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	var creds session.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := a.Session.Login(r.Context(), creds)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: &user})
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	var profile session.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := a.Session.Register(r.Context(), profile)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sessionResponse{Authenticated: true, User: &user})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	a, ok := h.appFor(w, r)
	if !ok {
		return
	}

	a.Session.Logout(r.Context())
	respondJSON(w, http.StatusOK, sessionResponse{Authenticated: false})
}
