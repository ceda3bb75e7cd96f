package storage

import "context"

// Well-known keys. Cart and session own disjoint namespaces and never
// race on the same key.
const (
	KeyCartLines      = "cart-lines"
	KeySessionUser    = "session-user"
	KeySessionToken   = "session-token"
	KeyFilterCriteria = "last-filter-criteria"
)

// Adapter is the persistent store contract used by the state machines.
// Read reports absence with ok=false; a missing key is not an error.
// Values are opaque bytes, callers own the encoding.
type Adapter interface {
	Read(ctx context.Context, key string) (value []byte, ok bool, err error)
	Write(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// prefixed namespaces every key of an underlying adapter. It lets
// several independent state containers share one backing store.
type prefixed struct {
	inner  Adapter
	prefix string
}

// WithPrefix returns an adapter that prepends prefix to every key.
func WithPrefix(inner Adapter, prefix string) Adapter {
	return &prefixed{inner: inner, prefix: prefix}
}

func (p *prefixed) Read(ctx context.Context, key string) ([]byte, bool, error) {
	return p.inner.Read(ctx, p.prefix+key)
}

func (p *prefixed) Write(ctx context.Context, key string, value []byte) error {
	return p.inner.Write(ctx, p.prefix+key, value)
}

func (p *prefixed) Remove(ctx context.Context, key string) error {
	return p.inner.Remove(ctx, p.prefix+key)
}
