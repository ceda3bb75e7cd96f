package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/example/storefront/internal/domain/session"
)

// authPayload is the {user, token} pair both auth endpoints return.
type authPayload struct {
	User  session.User `json:"user"`
	Token string       `json:"token"`
}

// Login authenticates credentials. A 401 is normalized to
// ErrInvalidCredentials and does not fire the unauthorized hook.
func (c *Client) Login(ctx context.Context, creds session.Credentials) (session.User, string, error) {
	var payload authPayload
	err := c.send(ctx, http.MethodPost, "/auth/login", nil, creds, &payload, sendOpts{skipUnauthorizedHook: true})
	if errors.Is(err, ErrUnauthorized) {
		return session.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return session.User{}, "", err
	}
	return payload.User, payload.Token, nil
}

// Register creates a new identity and returns it authenticated.
func (c *Client) Register(ctx context.Context, profile session.Profile) (session.User, string, error) {
	var payload authPayload
	err := c.send(ctx, http.MethodPost, "/auth/register", nil, profile, &payload, sendOpts{skipUnauthorizedHook: true})
	if err != nil {
		return session.User{}, "", err
	}
	return payload.User, payload.Token, nil
}

// Logout tells the backend to invalidate the token. Best-effort by
// contract: callers clear local state regardless of the outcome.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.send(ctx, http.MethodPost, "/auth/logout", nil, map[string]string{"token": token}, nil, sendOpts{skipUnauthorizedHook: true})
}
