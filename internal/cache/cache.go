// Package cache implements the Cache facade: the single entry point
// callers use to read and write namespaced documents, with secondary-index
// maintenance and instrumentation wired in as pipeline actions rather than
// hardcoded into the operations themselves.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/kvindex/ihashmap/internal/index"
	"github.com/kvindex/ihashmap/internal/pipeline"
	"github.com/kvindex/ihashmap/internal/planner"
	"github.com/kvindex/ihashmap/internal/query"
	"github.com/kvindex/ihashmap/internal/registry"
	"github.com/kvindex/ihashmap/internal/store"
	"github.com/kvindex/ihashmap/internal/types"
)

// Cache binds a backing Store, an index registry, and the pipelines that
// wrap every operation. It is constructed explicitly per use — there is no
// package-level singleton, so independent Cache values never share state.
type Cache struct {
	store     store.Store
	pipelines *pipeline.Registry
	indexes   *registry.Registry
	pkField   string

	// lockKey identifies this Cache instance in the context carried through
	// a call chain, giving the cache lock reentrant semantics: a hook that
	// re-enters the facade on the same goroutine sees its own marker in
	// ctx and skips re-acquiring mu, instead of deadlocking.
	lockKey lockKeyType
	mu      sync.Mutex
}

type lockKeyType struct{ c *Cache }

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithPKField overrides the primary-key field name every document is
// required to carry. The default, used when no Option sets this, is
// types.PKField ("_id").
func WithPKField(field string) Option {
	return func(c *Cache) { c.pkField = field }
}

// New constructs a Cache over store with an empty index registry. Register
// indexes with RegisterIndex before writing data that must be covered by
// them — registering an index after data already exists does not backfill
// it (see the separate reindex tooling for that).
func New(s store.Store, opts ...Option) *Cache {
	c := &Cache{
		store:     s,
		pipelines: pipeline.NewRegistry(),
		indexes:   registry.New(),
		pkField:   types.PKField,
	}
	c.lockKey = lockKeyType{c: c}
	for _, o := range opts {
		o(c)
	}
	// Every namespace gets an implicit unique index on the primary key
	// itself, built on the same index machinery as user-declared indexes
	// rather than special-cased identity logic.
	c.RegisterIndex(index.Definition{Fields: []string{index.PKPlaceholder}, Unique: true})
	return c
}

// Indexes exposes the index registry for inspection by tooling (reindex,
// export) that needs to walk every declared index.
func (c *Cache) Indexes() *registry.Registry { return c.indexes }

// Pipelines exposes the pipeline registry so callers can attach their own
// before/after actions (auditing, metrics, rate limiting) alongside index
// maintenance.
func (c *Cache) Pipelines() *pipeline.Registry { return c.pipelines }

// RegisterIndex declares a secondary index and wires its maintenance hooks
// onto this cache's pipelines.
func (c *Cache) RegisterIndex(def index.Definition) *index.Index {
	ix := index.New(def, c.store, c.pipelines, c.pkField)
	c.indexes.Add(ix, def.Target)
	ix.AttachHooks(c.pipelines)
	return ix
}

func (c *Cache) withLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if held, _ := ctx.Value(c.lockKey).(bool); held {
		return fn(ctx)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(context.WithValue(ctx, c.lockKey, true))
}

// Set upserts entity under its primary key in namespace ns. entity must
// carry the configured primary-key field ("_id" unless WithPKField set
// another); a missing key is a validation error, never passed down to the
// store.
func (c *Cache) Set(ctx context.Context, ns types.Namespace, entity types.Document) error {
	pk, ok := entity.PKWith(c.pkField)
	if !ok {
		return fmt.Errorf("cache: set %s: %w", ns, types.ErrInvalidDocument)
	}

	return c.withLock(ctx, func(ctx context.Context) error {
		p := c.pipelines.Get(pipeline.Set)
		ev := &pipeline.Event{Namespace: ns, After: entity, Scratch: map[string]interface{}{}}

		if err := p.Dispatch(ctx, pipeline.Before, ev); err != nil {
			return err
		}
		if err := c.store.Set(ctx, ns, pk, map[string]interface{}(entity)); err != nil {
			return err
		}
		return p.Dispatch(ctx, pipeline.After, ev)
	})
}

// Get reads the document stored at ns/key, or returns def if absent.
func (c *Cache) Get(ctx context.Context, ns types.Namespace, key string, def types.Document) (types.Document, error) {
	var result types.Document
	err := c.withLock(ctx, func(ctx context.Context) error {
		p := c.pipelines.Get(pipeline.Get)
		ev := &pipeline.Event{Namespace: ns, Scratch: map[string]interface{}{}}

		if err := p.Dispatch(ctx, pipeline.Before, ev); err != nil {
			return err
		}
		v, ok, err := c.store.Get(ctx, ns, key)
		if err != nil {
			return err
		}
		if !ok {
			result = def
		} else if m, ok := v.(map[string]interface{}); ok {
			result = types.Document(m)
		} else {
			result = def
		}
		ev.After = result
		return p.Dispatch(ctx, pipeline.After, ev)
	})
	return result, err
}

// Update shallow-merges partial into the document already stored under
// entity's primary key. If fields is non-empty, only those keys of partial
// are applied.
func (c *Cache) Update(ctx context.Context, ns types.Namespace, entity types.Document, fields []string) error {
	pk, ok := entity.PKWith(c.pkField)
	if !ok {
		return fmt.Errorf("cache: update %s: %w", ns, types.ErrInvalidDocument)
	}

	return c.withLock(ctx, func(ctx context.Context) error {
		p := c.pipelines.Get(pipeline.Update)
		ev := &pipeline.Event{Namespace: ns, Scratch: map[string]interface{}{}}

		if v, ok, err := c.store.Get(ctx, ns, pk); err != nil {
			return err
		} else if ok {
			if m, ok := v.(map[string]interface{}); ok {
				ev.Before = types.Document(m)
			}
		}

		if err := p.Dispatch(ctx, pipeline.Before, ev); err != nil {
			return err
		}
		if err := c.store.Update(ctx, ns, pk, map[string]interface{}(entity), fields); err != nil {
			return err
		}

		merged := ev.Before.Clone()
		if merged == nil {
			merged = types.Document{}
		}
		apply := map[string]interface{}(entity)
		if len(fields) > 0 {
			restricted := make(map[string]interface{}, len(fields))
			for _, f := range fields {
				if v, ok := entity[f]; ok {
					restricted[f] = v
				}
			}
			apply = restricted
		}
		for k, v := range apply {
			merged[k] = v
		}
		ev.After = merged

		return p.Dispatch(ctx, pipeline.After, ev)
	})
}

// Delete removes the document stored at ns/key.
func (c *Cache) Delete(ctx context.Context, ns types.Namespace, key string) error {
	return c.withLock(ctx, func(ctx context.Context) error {
		p := c.pipelines.Get(pipeline.Delete)
		ev := &pipeline.Event{Namespace: ns, Scratch: map[string]interface{}{}}

		if v, ok, err := c.store.Get(ctx, ns, key); err != nil {
			return err
		} else if ok {
			if m, ok := v.(map[string]interface{}); ok {
				ev.Before = types.Document(m)
			}
		}

		if err := p.Dispatch(ctx, pipeline.Before, ev); err != nil {
			return err
		}
		if err := c.store.Delete(ctx, ns, key); err != nil {
			return err
		}
		return p.Dispatch(ctx, pipeline.After, ev)
	})
}

// All enumerates every live document in namespace ns.
func (c *Cache) All(ctx context.Context, ns types.Namespace) ([]types.Document, error) {
	var out []types.Document
	err := c.withLock(ctx, func(ctx context.Context) error {
		keys, err := c.store.Keys(ctx, ns)
		if err != nil {
			return err
		}
		for _, k := range keys {
			v, ok, err := c.store.Get(ctx, ns, k)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if m, ok := v.(map[string]interface{}); ok {
				out = append(out, types.Document(m))
			}
		}
		return nil
	})
	return out, err
}

// Search runs q against namespace ns using the registered indexes where
// possible, falling back to a full scan plus residual filtering.
func (c *Cache) Search(ctx context.Context, ns types.Namespace, q query.Query) ([]types.Document, error) {
	var out []types.Document
	err := c.withLock(ctx, func(ctx context.Context) error {
		indexes := c.indexes.For(ns)
		results, err := planner.Search(ctx, storeGetter{c.store}, indexes, ns, q)
		if err != nil {
			return err
		}
		out = results
		return nil
	})
	return out, err
}

// storeGetter adapts store.Store to planner.Getter.
type storeGetter struct{ s store.Store }

func (g storeGetter) Get(ctx context.Context, ns types.Namespace, key string) (interface{}, bool, error) {
	return g.s.Get(ctx, ns, key)
}

func (g storeGetter) Keys(ctx context.Context, ns types.Namespace) ([]string, error) {
	return g.s.Keys(ctx, ns)
}
