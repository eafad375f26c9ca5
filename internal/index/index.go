// Package index implements secondary index declarations and the pipeline
// actions that keep each index's forward/reverse maps in sync with a
// namespace's data as it is written, updated, and deleted.
//
// Two maps back every index, both stored through the same Store the data
// lives in, under reserved namespaces:
//
//	forward: "_index_:" + ns + ":" + joined(fields)  -> {encoded key -> []PK}
//	reverse: "_reverse_index_:" + ns + ":" + joined(fields) -> {PK -> encoded key}
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kvindex/ihashmap/internal/codec"
	"github.com/kvindex/ihashmap/internal/pipeline"
	"github.com/kvindex/ihashmap/internal/types"
)

const (
	forwardPrefix = "_index_"
	reversePrefix = "_reverse_index_"

	// PKPlaceholder stands in for the store's primary key field name inside
	// a Definition's Fields list, letting an index declare "index on the
	// primary key" without hardcoding the field name.
	PKPlaceholder = " pk "
)

// Reader is the minimal store surface index maintenance needs: plain
// key/value get/set/delete against a namespace, without going back through
// the Cache facade (which would re-enter the pipelines recursively).
type Reader interface {
	Get(ctx context.Context, ns types.Namespace, key string) (interface{}, bool, error)
	Set(ctx context.Context, ns types.Namespace, key string, value interface{}) error
	Delete(ctx context.Context, ns types.Namespace, key string) error
	Keys(ctx context.Context, ns types.Namespace) ([]string, error)
}

// Definition describes one secondary index. Target is the data namespace it
// covers, or "" to apply to every namespace (a global index).
type Definition struct {
	Target types.Namespace
	Fields []string
	Unique bool
}

// resolvedFields substitutes PKPlaceholder with pkField, then dedupes and
// sorts — normalization that is observable because it feeds directly into
// the composed forward/reverse map names.
func (d Definition) resolvedFields(pkField string) []string {
	set := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if f == PKPlaceholder {
			f = pkField
		}
		set[f] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Index is a registered Definition bound to the reader it maintains itself
// against. Its own reads and writes against that reader are themselves
// dispatched through reg's index_get/index_set/index_delete pipelines,
// rather than calling store directly, so instrumentation attached to those
// pipelines observes index-internal traffic without recursing into the
// Cache-level hooks that dispatch set/get/update/delete.
type Index struct {
	def     Definition
	fields  []string
	pkField string
	store   Reader
	reg     *pipeline.Registry
	mu      sync.Mutex // per-index lock serializing forward/reverse read-modify-write

	// sf collapses concurrent forward-map reads for the same encoded key,
	// so a burst of writers contending on one unique-index key don't each
	// issue a redundant store round trip before serializing on mu.
	sf singleflight.Group
}

// New creates an Index over store, resolving and normalizing its fields
// against pkField (pass "" to use the default "_id"). reg is the pipeline
// registry the index dispatches its own internal store access through, and
// also the registry AttachHooks wires the index's set/update/delete hooks
// onto.
func New(def Definition, store Reader, reg *pipeline.Registry, pkField string) *Index {
	if pkField == "" {
		pkField = types.PKField
	}
	return &Index{
		def:     def,
		fields:  def.resolvedFields(pkField),
		pkField: pkField,
		store:   store,
		reg:     reg,
	}
}

// Fields returns the normalized (deduped, sorted) field list, with the PK
// placeholder already resolved to the real PK field name.
func (ix *Index) Fields() []string { return ix.fields }

// Unique reports whether this index enforces at most one PK per key.
func (ix *Index) Unique() bool { return ix.def.Unique }

// AppliesTo reports whether this index covers namespace ns: either it
// targets ns directly, or it is a global index (Target == "").
func (ix *Index) AppliesTo(ns types.Namespace) bool {
	return ix.def.Target == "" || ix.def.Target == ns
}

// ForwardName composes the reserved namespace backing this index's forward
// map for data namespace ns.
func (ix *Index) ForwardName(ns types.Namespace) types.Namespace {
	return types.Namespace(fmt.Sprintf("%s:%s:%s", forwardPrefix, ns, strings.Join(ix.fields, "_")))
}

// ReverseName composes the reserved namespace backing this index's reverse
// map for data namespace ns.
func (ix *Index) ReverseName(ns types.Namespace) types.Namespace {
	return types.Namespace(fmt.Sprintf("%s:%s:%s", reversePrefix, ns, strings.Join(ix.fields, "_")))
}

// project extracts this index's fields from entity. Missing fields encode
// as explicit nils rather than being omitted, so an entity missing a field
// produces the same key as one where the field is set to nil.
func (ix *Index) project(entity map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(ix.fields))
	for _, f := range ix.fields {
		out[f] = entity[f]
	}
	return out
}

// EncodeKey returns the deterministic forward-map key for entity's
// projection onto this index's fields.
func (ix *Index) EncodeKey(entity map[string]interface{}) (string, error) {
	return codec.EncodeIndexKey(ix.project(entity))
}

func (ix *Index) forwardSet(ctx context.Context, ns types.Namespace, key string) ([]string, error) {
	sfKey := string(ns) + "\x00" + key
	v, err, _ := ix.sf.Do(sfKey, func() (interface{}, error) {
		val, ok, err := ix.dispatchGet(ctx, ix.ForwardName(ns), key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []string(nil), nil
		}
		return toStringSlice(val), nil
	})
	if err != nil {
		return nil, err
	}
	set, _ := v.([]string)
	return set, nil
}

// dispatchGet runs a store Get through the index_get pipeline, so actions
// registered on it (instrumentation, tracing) observe every index-internal
// read without the call recursing into Cache's own get hooks.
func (ix *Index) dispatchGet(ctx context.Context, ns types.Namespace, key string) (interface{}, bool, error) {
	p := ix.reg.Get(pipeline.IndexGet)
	ev := &pipeline.Event{Namespace: ns, Scratch: map[string]interface{}{"key": key}}
	if err := p.Dispatch(ctx, pipeline.Before, ev); err != nil {
		return nil, false, err
	}
	val, ok, err := ix.store.Get(ctx, ns, key)
	if err != nil {
		return nil, false, err
	}
	ev.Scratch["value"], ev.Scratch["found"] = val, ok
	if err := p.Dispatch(ctx, pipeline.After, ev); err != nil {
		return nil, false, err
	}
	return val, ok, nil
}

// dispatchSet runs a store Set through the index_set pipeline.
func (ix *Index) dispatchSet(ctx context.Context, ns types.Namespace, key string, value interface{}) error {
	p := ix.reg.Get(pipeline.IndexSet)
	ev := &pipeline.Event{Namespace: ns, Scratch: map[string]interface{}{"key": key, "value": value}}
	if err := p.Dispatch(ctx, pipeline.Before, ev); err != nil {
		return err
	}
	if err := ix.store.Set(ctx, ns, key, value); err != nil {
		return err
	}
	return p.Dispatch(ctx, pipeline.After, ev)
}

// dispatchDelete runs a store Delete through the index_delete pipeline.
func (ix *Index) dispatchDelete(ctx context.Context, ns types.Namespace, key string) error {
	p := ix.reg.Get(pipeline.IndexDelete)
	ev := &pipeline.Event{Namespace: ns, Scratch: map[string]interface{}{"key": key}}
	if err := p.Dispatch(ctx, pipeline.Before, ev); err != nil {
		return err
	}
	if err := ix.store.Delete(ctx, ns, key); err != nil {
		return err
	}
	return p.Dispatch(ctx, pipeline.After, ev)
}

func toStringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// CheckUnique enforces the unique-index invariant at set-time: a unique
// index may not gain a second distinct PK at the same key. Re-setting the
// same PK under the same key (an upsert, or the PK index's own set) must
// not be treated as a violation.
func (ix *Index) CheckUnique(ctx context.Context, ns types.Namespace, entity map[string]interface{}) error {
	if !ix.def.Unique {
		return nil
	}
	pk, ok := types.Document(entity).PKWith(ix.pkField)
	if !ok {
		return fmt.Errorf("%w: missing primary key field %q", types.ErrInvalidDocument, ix.pkField)
	}
	key, err := ix.EncodeKey(entity)
	if err != nil {
		return err
	}
	existing, err := ix.forwardSet(ctx, ns, key)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}
	if len(existing) == 1 && existing[0] == pk {
		return nil
	}
	return fmt.Errorf("%w: index on %v already has key for a different primary key", types.ErrUniqueViolation, ix.fields)
}

// Insert adds entity's PK to the forward set for its projected key and
// records the reverse pointer, serialized under the per-index lock.
func (ix *Index) Insert(ctx context.Context, ns types.Namespace, entity map[string]interface{}) error {
	pk, ok := types.Document(entity).PKWith(ix.pkField)
	if !ok {
		return fmt.Errorf("%w: missing primary key field %q", types.ErrInvalidDocument, ix.pkField)
	}
	key, err := ix.EncodeKey(entity)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	set, err := ix.forwardSet(ctx, ns, key)
	if err != nil {
		return err
	}
	if !containsString(set, pk) {
		set = append(set, pk)
	}
	if err := ix.dispatchSet(ctx, ix.ForwardName(ns), key, set); err != nil {
		return err
	}
	return ix.dispatchSet(ctx, ix.ReverseName(ns), pk, key)
}

// Remove drops entity's PK from its forward set, deleting the forward
// entry only once the set is empty, and clears the reverse pointer.
func (ix *Index) Remove(ctx context.Context, ns types.Namespace, entity map[string]interface{}) error {
	pk, ok := types.Document(entity).PKWith(ix.pkField)
	if !ok {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	revName := ix.ReverseName(ns)
	v, ok, err := ix.dispatchGet(ctx, revName, pk)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	key, _ := v.(string)
	if err := ix.dispatchDelete(ctx, revName, pk); err != nil {
		return err
	}

	fwdName := ix.ForwardName(ns)
	set, err := ix.forwardSet(ctx, ns, key)
	if err != nil {
		return err
	}
	set = removeString(set, pk)
	if len(set) == 0 {
		return ix.dispatchDelete(ctx, fwdName, key)
	}
	return ix.dispatchSet(ctx, fwdName, key, set)
}

// Rekey moves a PK from its old projection to a new one, unioning the PK
// into whatever set already exists at the new key rather than overwriting
// it. A no-op when the encoded key is unchanged.
func (ix *Index) Rekey(ctx context.Context, ns types.Namespace, oldEntity, newEntity map[string]interface{}) error {
	oldKey, err := ix.EncodeKey(oldEntity)
	if err != nil {
		return err
	}
	newKey, err := ix.EncodeKey(newEntity)
	if err != nil {
		return err
	}
	if oldKey == newKey {
		return nil
	}
	if err := ix.Remove(ctx, ns, oldEntity); err != nil {
		return err
	}
	return ix.Insert(ctx, ns, newEntity)
}

// PruneStale removes pk from the forward set stored at an already-encoded
// key, deleting the entry once empty, and clears pk's reverse pointer. Used
// by index repair to drop PKs whose backing entity no longer exists —
// unlike Remove, it does not require the full entity, only the dangling
// key and PK already discovered by a repair scan.
func (ix *Index) PruneStale(ctx context.Context, ns types.Namespace, key, pk string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	fwdName := ix.ForwardName(ns)
	set, err := ix.forwardSet(ctx, ns, key)
	if err != nil {
		return err
	}
	set = removeString(set, pk)
	if len(set) == 0 {
		if err := ix.dispatchDelete(ctx, fwdName, key); err != nil {
			return err
		}
	} else if err := ix.dispatchSet(ctx, fwdName, key, set); err != nil {
		return err
	}
	if err := ix.dispatchDelete(ctx, ix.ReverseName(ns), pk); err != nil && !errors.Is(err, types.ErrNotFound) {
		return err
	}
	return nil
}

// Keys returns every encoded forward-map key currently stored for this
// index in namespace ns, used by the planner's scan fallback. Routed
// through index_get like every other read so a watcher on that pipeline
// sees the full-namespace scan, not just the per-key reads.
func (ix *Index) Keys(ctx context.Context, ns types.Namespace) ([]string, error) {
	fwdName := ix.ForwardName(ns)
	p := ix.reg.Get(pipeline.IndexGet)
	ev := &pipeline.Event{Namespace: fwdName, Scratch: map[string]interface{}{"scan": true}}
	if err := p.Dispatch(ctx, pipeline.Before, ev); err != nil {
		return nil, err
	}
	keys, err := ix.store.Keys(ctx, fwdName)
	if err != nil {
		return nil, err
	}
	ev.Scratch["keys"] = keys
	if err := p.Dispatch(ctx, pipeline.After, ev); err != nil {
		return nil, err
	}
	return keys, nil
}

// PKsFor returns the PK set stored at an already-encoded forward key.
func (ix *Index) PKsFor(ctx context.Context, ns types.Namespace, key string) ([]string, error) {
	return ix.forwardSet(ctx, ns, key)
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(ss []string, s string) []string {
	out := ss[:0]
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// pipelineKey names the scratch-map slot an index stashes its before-hook
// state under, namespaced by index identity so multiple indexes on the same
// pipeline don't collide.
func pipelineKey(ix *Index) string {
	return "index:" + strings.Join(ix.fields, "_") + ":value"
}

// AttachHooks registers this index's before/after actions on the given
// pipeline registry, scoped to the namespaces it applies to. An empty
// namespace scopes to every namespace (a global index).
func (ix *Index) AttachHooks(reg *pipeline.Registry) {
	ns := ix.def.Target
	scratchKey := pipelineKey(ix)

	reg.Get(pipeline.Set).Register(pipeline.Before, ns, pipeline.ActionFunc{
		IDValue:       "index-set-before:" + scratchKey,
		PriorityValue: 0,
		Fn: func(ctx context.Context, ev *pipeline.Event) error {
			ev.Scratch[scratchKey] = ev.After
			return ix.CheckUnique(ctx, ev.Namespace, ev.After)
		},
	})
	reg.Get(pipeline.Set).Register(pipeline.After, ns, pipeline.ActionFunc{
		IDValue:       "index-set-after:" + scratchKey,
		PriorityValue: 0,
		Fn: func(ctx context.Context, ev *pipeline.Event) error {
			return ix.Insert(ctx, ev.Namespace, ev.After)
		},
	})

	reg.Get(pipeline.Delete).Register(pipeline.After, ns, pipeline.ActionFunc{
		IDValue:       "index-delete-after:" + scratchKey,
		PriorityValue: 0,
		Fn: func(ctx context.Context, ev *pipeline.Event) error {
			if ev.Before == nil {
				return nil
			}
			return ix.Remove(ctx, ev.Namespace, ev.Before)
		},
	})

	reg.Get(pipeline.Update).Register(pipeline.After, ns, pipeline.ActionFunc{
		IDValue:       "index-update-after:" + scratchKey,
		PriorityValue: 0,
		Fn: func(ctx context.Context, ev *pipeline.Event) error {
			if ev.Before == nil {
				return ix.Insert(ctx, ev.Namespace, ev.After)
			}
			return ix.Rekey(ctx, ev.Namespace, ev.Before, ev.After)
		},
	})
}
