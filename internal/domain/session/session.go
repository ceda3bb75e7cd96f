package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/storefront/internal/storage"
	"github.com/example/storefront/pkg/logger"
)

// ErrSuperseded reports that a login or register completed after a
// newer attempt had already started; its result was discarded.
var ErrSuperseded = errors.New("authentication attempt superseded by a newer one")

// User is the authenticated identity. User and token are always both
// present or both absent; an inconsistent pair is treated as absent.
type User struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

func (u User) hasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Profile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Authenticator is the backend collaborator the machine delegates to.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (User, string, error)
	Register(ctx context.Context, profile Profile) (User, string, error)
	Logout(ctx context.Context, token string) error
}

// Machine holds the session state: Anonymous or Authenticated. The only
// transitions are login/register success (to Authenticated) and
// logout or backend-signaled invalidation (to Anonymous).
type Machine struct {
	mu    sync.Mutex
	store storage.Adapter
	auth  Authenticator

	user  *User
	token string

	// seq guards against a stale network completion clobbering the
	// result of a newer attempt.
	seq uint64
}

func NewMachine(store storage.Adapter, auth Authenticator) *Machine {
	return &Machine{store: store, auth: auth}
}

// Restore determines the initial state from storage. The session is
// Authenticated only if both user and token are present, readable, and
// the token has not expired; anything less clears both keys.
func (m *Machine) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rawUser, userOK, err := m.store.Read(ctx, storage.KeySessionUser)
	if err != nil {
		return fmt.Errorf("failed to read session user: %w", err)
	}
	rawToken, tokenOK, err := m.store.Read(ctx, storage.KeySessionToken)
	if err != nil {
		return fmt.Errorf("failed to read session token: %w", err)
	}

	if !userOK || !tokenOK {
		if userOK != tokenOK {
			logger.Warn(ctx).
				Str("component", "session").
				Msg("clearing inconsistent persisted session")
		}
		m.clearLocked(ctx)
		return nil
	}

	var user User
	if err := json.Unmarshal(rawUser, &user); err != nil || user.ID == "" {
		logger.Warn(ctx).
			Str("component", "session").
			Err(err).
			Msg("discarding corrupt persisted session user")
		m.clearLocked(ctx)
		return nil
	}

	token := string(rawToken)
	if tokenExpired(token) {
		logger.Info(ctx).
			Str("component", "session").
			Msg("persisted token has expired, starting anonymous")
		m.clearLocked(ctx)
		return nil
	}

	m.user = &user
	m.token = token
	return nil
}

// Login delegates to the backend and, on success, sets user and token
// together. A completion that lost the race to a newer attempt is
// discarded with ErrSuperseded.
func (m *Machine) Login(ctx context.Context, creds Credentials) (User, error) {
	seq := m.nextSeq()

	user, token, err := m.auth.Login(ctx, creds)
	if err != nil {
		return User{}, err
	}

	return m.complete(ctx, seq, user, token)
}

// Register creates a new identity, then behaves like Login.
func (m *Machine) Register(ctx context.Context, profile Profile) (User, error) {
	seq := m.nextSeq()

	user, token, err := m.auth.Register(ctx, profile)
	if err != nil {
		return User{}, err
	}

	return m.complete(ctx, seq, user, token)
}

// Logout clears the session. The backend invalidation is best-effort;
// local clearing is unconditional.
func (m *Machine) Logout(ctx context.Context) {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	if token != "" {
		if err := m.auth.Logout(ctx, token); err != nil {
			logger.Warn(ctx).
				Str("component", "session").
				Err(err).
				Msg("backend logout failed, clearing local session anyway")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeqLocked() // invalidate any in-flight login
	m.clearLocked(ctx)
}

// Invalidate clears the session in response to an
// authentication-rejected signal from the backend.
func (m *Machine) Invalidate(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil && m.token == "" {
		return
	}
	logger.Info(ctx).
		Str("component", "session").
		Msg("backend rejected token, clearing session")
	m.nextSeqLocked()
	m.clearLocked(ctx)
}

// IsAuthenticated reports whether both user and token are present.
func (m *Machine) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil && m.token != ""
}

// HasRole reports whether the current user carries the named role.
func (m *Machine) HasRole(role string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil && m.token != "" && m.user.hasRole(role)
}

// Current returns the authenticated user, if any.
func (m *Machine) Current() (User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil || m.token == "" {
		return User{}, false
	}
	user := *m.user
	user.Roles = append([]string(nil), m.user.Roles...)
	return user, true
}

// Token returns the credential token, empty when anonymous.
func (m *Machine) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Machine) nextSeq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextSeqLocked()
}

func (m *Machine) nextSeqLocked() uint64 {
	m.seq++
	return m.seq
}

// complete applies a successful authentication atomically: both keys
// are persisted before the new state becomes visible.
func (m *Machine) complete(ctx context.Context, seq uint64, user User, token string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != m.seq {
		return User{}, ErrSuperseded
	}

	rawUser, err := json.Marshal(user)
	if err != nil {
		return User{}, fmt.Errorf("failed to marshal session user: %w", err)
	}
	if err := m.store.Write(ctx, storage.KeySessionUser, rawUser); err != nil {
		return User{}, fmt.Errorf("failed to persist session user: %w", err)
	}
	if err := m.store.Write(ctx, storage.KeySessionToken, []byte(token)); err != nil {
		// Roll back so the two keys never diverge.
		_ = m.store.Remove(ctx, storage.KeySessionUser)
		return User{}, fmt.Errorf("failed to persist session token: %w", err)
	}

	m.user = &user
	m.token = token
	return user, nil
}

func (m *Machine) clearLocked(ctx context.Context) {
	m.user = nil
	m.token = ""
	_ = m.store.Remove(ctx, storage.KeySessionUser)
	_ = m.store.Remove(ctx, storage.KeySessionToken)
}

// tokenExpired inspects a JWT's exp claim without verifying the
// signature; verification is the backend's job. Tokens that are not
// JWTs are treated as opaque and assumed live.
func tokenExpired(token string) bool {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(time.Now())
}
