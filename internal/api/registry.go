package api

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/app"
	"github.com/example/storefront/internal/backend"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/storage"
)

// Registry hands out one App per client session. Each session's state
// is namespaced inside the shared storage adapter, so a returning
// session id rehydrates the same cart, filters, and login.
type Registry struct {
	mu         sync.Mutex
	base       storage.Adapter
	backendURL string
	pageSize   int
	clientOpts []backend.Option
	apps       map[string]*app.App
}

func NewRegistry(backendURL string, base storage.Adapter, pageSize int, clientOpts ...backend.Option) *Registry {
	return &Registry{
		base:       base,
		backendURL: backendURL,
		pageSize:   pageSize,
		clientOpts: clientOpts,
		apps:       make(map[string]*app.App),
	}
}

// Get returns the App for the session, creating and restoring it on
// first sight of the id.
func (r *Registry) Get(ctx context.Context, sessionID string) (*app.App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.apps[sessionID]; ok {
		return a, nil
	}

	store := storage.WithPrefix(r.base, "session:"+sessionID+":")
	a, err := app.New(r.backendURL, store, r.pageSize, r.clientOpts...)
	if err != nil {
		return nil, err
	}
	if err := a.Restore(ctx); err != nil {
		return nil, err
	}

	r.apps[sessionID] = a
	metrics.SessionsActive.Set(float64(len(r.apps)))
	return a, nil
}

// Drop evicts a session's App, forcing a rebuild from storage on the
// next request.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.apps, sessionID)
	metrics.SessionsActive.Set(float64(len(r.apps)))
}
