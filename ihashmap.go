// Package ihashmap is a schemaless key-value cache with declarative
// secondary indexes and a conjunctive query planner. It wraps
// internal/cache.Cache behind a small public surface so callers don't need
// to reach into internal packages for everyday use.
package ihashmap

import (
	"context"

	"github.com/kvindex/ihashmap/internal/cache"
	"github.com/kvindex/ihashmap/internal/export"
	"github.com/kvindex/ihashmap/internal/index"
	"github.com/kvindex/ihashmap/internal/query"
	"github.com/kvindex/ihashmap/internal/store"
	"github.com/kvindex/ihashmap/internal/store/memstore"
	"github.com/kvindex/ihashmap/internal/types"
)

// Document is a single stored record, keyed by field name.
type Document = types.Document

// Namespace partitions the key space, analogous to a table or collection.
type Namespace = types.Namespace

// Query is a conjunctive set of field constraints.
type Query = query.Query

// IndexDefinition declares a secondary index.
type IndexDefinition = index.Definition

// ErrorPolicy controls Dump's behavior on a read failure mid-export.
type ErrorPolicy = export.ErrorPolicy

const (
	FailFast   = export.FailFast
	SkipErrors = export.SkipErrors
)

// PKField is the default name of every document's primary key field;
// WithPKField selects another.
const PKField = types.PKField

// Cache is a namespaced, indexed key-value store.
type Cache struct {
	inner *cache.Cache
}

// Option configures a Cache at construction time.
type Option = cache.Option

// WithPKField overrides the primary-key field name every document must
// carry (default "_id"), mainly useful for test isolation.
func WithPKField(field string) Option {
	return cache.WithPKField(field)
}

// Open constructs a Cache over the given backing store. Use
// memstore.New() for an in-memory store, or sqlstore.Open for a durable one.
func Open(s store.Store, opts ...Option) *Cache {
	return &Cache{inner: cache.New(s, opts...)}
}

// OpenMemory is a convenience constructor for the common in-memory case.
func OpenMemory(opts ...Option) *Cache {
	return Open(memstore.New(), opts...)
}

// RegisterIndex declares a secondary index and begins maintaining it for
// subsequent writes. It does not backfill existing data — call Reindex
// after registering an index over a namespace with existing documents.
func (c *Cache) RegisterIndex(def IndexDefinition) {
	c.inner.RegisterIndex(def)
}

// Set upserts doc under its primary-key field in namespace ns.
func (c *Cache) Set(ctx context.Context, ns Namespace, doc Document) error {
	return c.inner.Set(ctx, ns, doc)
}

// Get reads the document stored at ns/key, or returns def if absent.
func (c *Cache) Get(ctx context.Context, ns Namespace, key string, def Document) (Document, error) {
	return c.inner.Get(ctx, ns, key, def)
}

// Update shallow-merges doc's fields into the document already stored under
// doc's primary key. If fields is non-empty, only those keys of doc are
// applied.
func (c *Cache) Update(ctx context.Context, ns Namespace, doc Document, fields []string) error {
	return c.inner.Update(ctx, ns, doc, fields)
}

// Delete removes the document stored at ns/key.
func (c *Cache) Delete(ctx context.Context, ns Namespace, key string) error {
	return c.inner.Delete(ctx, ns, key)
}

// All returns every live document in namespace ns.
func (c *Cache) All(ctx context.Context, ns Namespace) ([]Document, error) {
	return c.inner.All(ctx, ns)
}

// Search runs q against namespace ns, using registered indexes where
// possible and falling back to a full scan plus residual filtering.
func (c *Cache) Search(ctx context.Context, ns Namespace, q Query) ([]Document, error) {
	return c.inner.Search(ctx, ns, q)
}

// Reindex recomputes every index applicable to ns from the live data and
// drops any dangling index entries left by a previously interrupted
// operation.
func (c *Cache) Reindex(ctx context.Context, ns Namespace) (*cache.ReindexReport, error) {
	return c.inner.Reindex(ctx, ns)
}

// Dump writes every live document in ns to path as a YAML snapshot.
func (c *Cache) Dump(ctx context.Context, ns Namespace, path string, policy ErrorPolicy) error {
	return c.inner.Dump(ctx, ns, path, policy)
}

// Load restores a snapshot previously written by Dump, returning the
// namespace it was restored into and how many documents were written.
func (c *Cache) Load(ctx context.Context, path string) (Namespace, int, error) {
	return c.inner.Load(ctx, path)
}
