// Package backendtest provides an in-process fake of the storefront's
// REST backend for tests: bcrypt-checked credentials, HS256 tokens and
// the same {success, data, message} envelopes the real API speaks.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/storefront/internal/backend"
	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/domain/session"
)

const tokenTTL = time.Hour

type account struct {
	ID           string
	Name         string
	Email        string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
}

// Server is a scriptable fake backend.
type Server struct {
	mu         sync.Mutex
	secret     []byte
	users      map[string]*account // keyed by email
	products   []catalog.Product
	categories []catalog.Category
	orders     []backend.Order

	rejectTokens bool
	down         bool
	failLogout   bool

	httpServer *httptest.Server
}

func New() *Server {
	s := &Server{
		secret: []byte("backendtest-secret-0123456789abcdef"),
		users:  make(map[string]*account),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/register", s.handleRegister)
	mux.HandleFunc("/auth/logout", s.handleLogout)
	mux.HandleFunc("/products", s.handleProducts)
	mux.HandleFunc("/products/", s.handleProduct)
	mux.HandleFunc("/categories", s.handleCategories)
	mux.HandleFunc("/orders", s.handleOrders)
	mux.HandleFunc("/orders/", s.handleOrder)
	mux.HandleFunc("/users", s.handleUsers)
	mux.HandleFunc("/users/", s.handleUser)
	mux.HandleFunc("/dashboard/stats", s.handleStats)

	s.httpServer = httptest.NewServer(s.gate(mux))
	return s
}

func (s *Server) URL() string { return s.httpServer.URL }
func (s *Server) Close()      { s.httpServer.Close() }

// SetDown makes every request fail at the network level.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// RejectTokens makes every token-bearing request come back 401,
// simulating server-side invalidation.
func (s *Server) RejectTokens(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectTokens = reject
}

// FailLogout makes the logout endpoint return an error envelope.
func (s *Server) FailLogout(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogout = fail
}

// SeedUser registers an account directly and returns its id.
func (s *Server) SeedUser(name, email, password, role string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct := &account{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	s.users[email] = acct
	return acct.ID
}

func (s *Server) SeedProducts(products []catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append([]catalog.Product(nil), products...)
}

func (s *Server) SeedCategories(categories []catalog.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append([]catalog.Category(nil), categories...)
}

// Orders returns every order placed against the fake.
func (s *Server) Orders() []backend.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.Order(nil), s.orders...)
}

// gate simulates total backend outage by hijacking the connection.
func (s *Server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		down := s.down
		s.mu.Unlock()
		if down {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			http.Error(w, "", http.StatusBadGateway)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ============================================
// Auth
// ============================================

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds session.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	acct, ok := s.users[creds.Email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(creds.Password)) != nil {
		respondFailure(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	s.respondAuth(w, http.StatusOK, acct)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var profile session.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	_, exists := s.users[profile.Email]
	s.mu.Unlock()
	if exists {
		respondFailure(w, http.StatusConflict, "email already registered")
		return
	}
	if len(profile.Password) < 8 {
		respondFailure(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	s.SeedUser(profile.Name, profile.Email, profile.Password, "customer")
	s.mu.Lock()
	acct := s.users[profile.Email]
	s.mu.Unlock()
	s.respondAuth(w, http.StatusCreated, acct)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fail := s.failLogout
	s.mu.Unlock()
	if fail {
		respondFailure(w, http.StatusInternalServerError, "token store unavailable")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) respondAuth(w http.ResponseWriter, status int, acct *account) {
	claims := jwt.RegisteredClaims{
		Subject:   acct.ID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		respondFailure(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	respondSuccess(w, status, map[string]any{
		"user": session.User{
			ID:    acct.ID,
			Email: acct.Email,
			Name:  acct.Name,
			Roles: []string{acct.Role},
		},
		"token": token,
	})
}

// authorize validates the bearer token and returns the account.
func (s *Server) authorize(r *http.Request) (*account, bool) {
	s.mu.Lock()
	reject := s.rejectTokens
	s.mu.Unlock()
	if reject {
		return nil, false
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.users {
		if acct.ID == claims.Subject {
			return acct, true
		}
	}
	return nil, false
}

// ============================================
// Catalog
// ============================================

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		items := append([]catalog.Product(nil), s.products...)
		s.mu.Unlock()

		if category := r.URL.Query().Get("category"); category != "" {
			filtered := items[:0]
			for _, p := range items {
				if p.CategoryID == category {
					filtered = append(filtered, p)
				}
			}
			items = filtered
		}
		respondSuccess(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})

	case http.MethodPost:
		acct, ok := s.authorize(r)
		if !ok {
			respondFailure(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if acct.Role != "admin" {
			respondFailure(w, http.StatusForbidden, "admin access required")
			return
		}
		var input catalog.Product
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			respondFailure(w, http.StatusBadRequest, "invalid request body")
			return
		}
		input.ID = uuid.New().String()
		input.CreatedAt = time.Now()
		s.mu.Lock()
		s.products = append(s.products, input)
		s.mu.Unlock()
		respondSuccess(w, http.StatusCreated, input)

	default:
		respondFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/products/")

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, p := range s.products {
			if p.ID == id {
				respondSuccess(w, http.StatusOK, p)
				return
			}
		}
		respondFailure(w, http.StatusNotFound, "product not found")

	case http.MethodPut, http.MethodDelete:
		acct, ok := s.authorize(r)
		if !ok {
			respondFailure(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if acct.Role != "admin" {
			respondFailure(w, http.StatusForbidden, "admin access required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		for i, p := range s.products {
			if p.ID != id {
				continue
			}
			if r.Method == http.MethodDelete {
				s.products = append(s.products[:i], s.products[i+1:]...)
				respondSuccess(w, http.StatusOK, map[string]string{"message": "product deleted"})
				return
			}
			var input catalog.Product
			if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
				respondFailure(w, http.StatusBadRequest, "invalid request body")
				return
			}
			input.ID = p.ID
			input.CreatedAt = p.CreatedAt
			s.products[i] = input
			respondSuccess(w, http.StatusOK, input)
			return
		}
		respondFailure(w, http.StatusNotFound, "product not found")

	default:
		respondFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	categories := append([]catalog.Category(nil), s.categories...)
	s.mu.Unlock()
	respondSuccess(w, http.StatusOK, categories)
}

// ============================================
// Orders
// ============================================

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authorize(r)
	if !ok {
		respondFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var body struct {
			Items []backend.OrderItem `json:"items"`
			Total int                 `json:"total"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondFailure(w, http.StatusBadRequest, "invalid request body")
			return
		}
		order := backend.Order{
			ID:        uuid.New().String(),
			UserID:    acct.ID,
			Items:     body.Items,
			Total:     body.Total,
			Status:    "pending",
			CreatedAt: time.Now(),
		}
		s.mu.Lock()
		s.orders = append(s.orders, order)
		s.mu.Unlock()
		respondSuccess(w, http.StatusCreated, order)

	case http.MethodGet:
		if acct.Role != "admin" {
			respondFailure(w, http.StatusForbidden, "admin access required")
			return
		}
		s.mu.Lock()
		orders := append([]backend.Order(nil), s.orders...)
		s.mu.Unlock()
		respondSuccess(w, http.StatusOK, orders)

	default:
		respondFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authorize(r)
	if !ok {
		respondFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/orders/")
	switch {
	case path == "my" && r.Method == http.MethodGet:
		s.mu.Lock()
		var mine []backend.Order
		for _, o := range s.orders {
			if o.UserID == acct.ID {
				mine = append(mine, o)
			}
		}
		s.mu.Unlock()
		respondSuccess(w, http.StatusOK, mine)

	case strings.HasSuffix(path, "/status") && r.Method == http.MethodPut:
		if acct.Role != "admin" {
			respondFailure(w, http.StatusForbidden, "admin access required")
			return
		}
		id := strings.TrimSuffix(path, "/status")
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondFailure(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range s.orders {
			if s.orders[i].ID == id {
				s.orders[i].Status = body.Status
				respondSuccess(w, http.StatusOK, s.orders[i])
				return
			}
		}
		respondFailure(w, http.StatusNotFound, "order not found")

	default:
		respondFailure(w, http.StatusNotFound, "not found")
	}
}

// ============================================
// Admin users / dashboard
// ============================================

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (*account, bool) {
	acct, ok := s.authorize(r)
	if !ok {
		respondFailure(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	if acct.Role != "admin" {
		respondFailure(w, http.StatusForbidden, "admin access required")
		return nil, false
	}
	return acct, true
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	s.mu.Lock()
	accounts := make([]backend.Account, 0, len(s.users))
	for _, acct := range s.users {
		accounts = append(accounts, backend.Account{
			ID:        acct.ID,
			Name:      acct.Name,
			Email:     acct.Email,
			Role:      acct.Role,
			CreatedAt: acct.CreatedAt,
		})
	}
	s.mu.Unlock()
	respondSuccess(w, http.StatusOK, accounts)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	if r.Method != http.MethodDelete {
		respondFailure(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/users/")
	s.mu.Lock()
	defer s.mu.Unlock()
	for email, acct := range s.users {
		if acct.ID == id {
			delete(s.users, email)
			respondSuccess(w, http.StatusOK, map[string]string{"message": "user deleted"})
			return
		}
	}
	respondFailure(w, http.StatusNotFound, "user not found")
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	s.mu.Lock()
	stats := backend.DashboardStats{
		TotalProducts: len(s.products),
		TotalOrders:   len(s.orders),
		TotalUsers:    len(s.users),
	}
	for _, o := range s.orders {
		stats.Revenue += o.Total
	}
	s.mu.Unlock()
	respondSuccess(w, http.StatusOK, stats)
}

// ============================================
// Envelopes
// ============================================

func respondSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func respondFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
