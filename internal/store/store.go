// Package store defines the backing-store contract the cache facade and
// index maintenance hooks are written against, plus the shared error
// wrapping helpers every backend uses.
package store

import (
	"context"
	"fmt"

	"github.com/kvindex/ihashmap/internal/types"
)

// Store is the minimal persistence contract the rest of the engine depends
// on. Every operation is total except Delete, which reports NotFound.
// Unknown namespaces read as empty/default and are created implicitly on
// write — there is no separate namespace-creation step.
type Store interface {
	// Get returns the value stored at ns/key, or found=false if absent.
	Get(ctx context.Context, ns types.Namespace, key string) (value interface{}, found bool, err error)

	// Set upserts value at ns/key.
	Set(ctx context.Context, ns types.Namespace, key string, value interface{}) error

	// Update shallow-merges partial into the value stored at ns/key. If
	// fields is non-empty, only those keys of partial are applied.
	Update(ctx context.Context, ns types.Namespace, key string, partial map[string]interface{}, fields []string) error

	// Delete removes ns/key. Returns types.ErrNotFound if key is absent.
	Delete(ctx context.Context, ns types.Namespace, key string) error

	// Keys returns a snapshot of every key currently stored in ns. Order is
	// unspecified but stable within one call.
	Keys(ctx context.Context, ns types.Namespace) ([]string, error)

	// Pop atomically retrieves and removes the value at ns/key.
	Pop(ctx context.Context, ns types.Namespace, key string) (value interface{}, found bool, err error)

	// Close releases any resources (file handles, connections) the backend holds.
	Close() error
}

// wrapErrorf is the shared sentinel-wrapping idiom every backend uses so
// callers can errors.Is against types.ErrNotFound etc. regardless of which
// backend produced the error.
func wrapErrorf(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("store: %s: %w", op, err)
}

// WrapErrorf is exported so backend packages outside this one (memstore,
// sqlstore) can reuse the same wrapping convention.
func WrapErrorf(op string, err error) error {
	return wrapErrorf(op, err)
}
