// Package remote defines the contract of the multi-tenant document store the
// sync engine talks to, together with the value conventions every
// implementation shares: write sentinels, merge semantics, field filters and
// the change-notification hub.
//
// Implementations live in subpackages: memstore (in-process), pgstore
// (PostgreSQL JSONB with LISTEN/NOTIFY) and grpcstore (client of the document
// server).
package remote

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("remote: not found")
	ErrPermissionDenied = errors.New("remote: permission denied")
	ErrUnauthenticated  = errors.New("remote: unauthenticated")
	ErrUnavailable      = errors.New("remote: unavailable")
	ErrInvalidArgument  = errors.New("remote: invalid argument")
)

// IsIgnorableDeleteError reports whether a delete failure means the document
// is gone or was never ours, which delete callers treat as success.
func IsIgnorableDeleteError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermissionDenied)
}

// Document is a single stored document.
type Document struct {
	ID   string
	Data map[string]any
}

// Filter selects documents whose Field equals Value.
type Filter struct {
	Field string
	Value any
}

// Where is shorthand for Filter{Field: field, Value: value}.
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Subscription delivers "something in scope changed" signals. Bursts are
// coalesced: a slow reader sees at least one signal after the last change.
// The channel is closed when the subscription ends, either through Close or
// because the underlying transport broke.
type Subscription interface {
	Changes() <-chan struct{}
	Close() error
}

// Store is the remote document store contract.
type Store interface {
	// Query is a one-shot read of every document in collection matching filter.
	Query(ctx context.Context, collection string, filter Filter) ([]Document, error)

	// SetFields writes fields into the document. With merge the remaining
	// fields are kept, otherwise the document is replaced. Values may be
	// ServerTimestamp or DeleteField.
	SetFields(ctx context.Context, collection, docID string, fields map[string]any, merge bool) error

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, docID string) error

	// Subscribe opens a change feed for documents matching filter. One signal
	// is delivered right after the subscription opens.
	Subscribe(ctx context.Context, collection string, filter Filter) (Subscription, error)
}

// Pinger is implemented by stores that can probe reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
