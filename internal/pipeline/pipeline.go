// Package pipeline implements the named before/after middleware chains that
// wrap every cache operation. Index maintenance is itself a set of actions
// registered on the pipelines, not special-cased code in the cache facade.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kvindex/ihashmap/internal/types"
)

// Stage identifies where in an operation's lifecycle an action runs.
type Stage string

const (
	Before Stage = "before"
	After  Stage = "after"
)

// Name identifies one of the fixed cache operations a pipeline wraps.
type Name string

const (
	Set         Name = "set"
	Get         Name = "get"
	Update      Name = "update"
	Delete      Name = "delete"
	IndexGet    Name = "index_get"
	IndexSet    Name = "index_set"
	IndexDelete Name = "index_delete"
)

// Event carries the state an action chain observes and may mutate for a
// single invocation of a cache operation.
type Event struct {
	// CorrelationID ties every log line and span emitted while handling
	// one invocation together; it has no meaning beyond trace/log
	// correlation and plays no part in any identity or lookup.
	CorrelationID string

	Namespace types.Namespace
	Before    types.Document // document state prior to the operation, if any
	After     types.Document // document state the operation is about to commit, or the result
	Query     map[string]interface{}

	// Scratch is a per-invocation mutable bag actions can use to pass state
	// to later actions in the same chain (e.g. the old index key an
	// after-action needs once the document has already been overwritten).
	Scratch map[string]interface{}
}

// Action processes one stage of one pipeline. Actions are called in
// priority order (lower first) for pipelines whose namespace filter matches.
// Returning an error aborts the remaining chain and the whole operation.
type Action interface {
	ID() string
	Priority() int
	Run(ctx context.Context, ev *Event) error
}

// ActionFunc adapts a plain function to the Action interface with a fixed
// id/priority, for simple registrations that don't need their own type.
type ActionFunc struct {
	IDValue       string
	PriorityValue int
	Fn            func(ctx context.Context, ev *Event) error
}

func (f ActionFunc) ID() string                                { return f.IDValue }
func (f ActionFunc) Priority() int                              { return f.PriorityValue }
func (f ActionFunc) Run(ctx context.Context, ev *Event) error { return f.Fn(ctx, ev) }

// entry pairs a registered action with the namespace filter it was
// registered under. An empty filter matches every namespace.
type entry struct {
	action    Action
	namespace types.Namespace // "" means all namespaces
}

// Pipeline holds the before/after action chains for a single operation
// name. A pipeline may inherit a parent's actions: the parent's matching
// actions run first, in their own priority order, followed by this
// pipeline's own actions in theirs.
type Pipeline struct {
	name   Name
	parent *Pipeline

	mu     sync.RWMutex
	before []entry
	after  []entry
}

// New creates a pipeline for the given operation name, optionally inheriting
// from parent (pass nil for a root pipeline).
func New(name Name, parent *Pipeline) *Pipeline {
	return &Pipeline{name: name, parent: parent}
}

// Name returns the pipeline's operation name.
func (p *Pipeline) Name() Name { return p.name }

// Register adds an action to this pipeline at the given stage, scoped to
// namespace (empty string matches every namespace).
func (p *Pipeline) Register(stage Stage, namespace types.Namespace, a Action) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := entry{action: a, namespace: namespace}
	switch stage {
	case Before:
		p.before = append(p.before, e)
	case After:
		p.after = append(p.after, e)
	}
}

// Unregister removes an action by id from both stages. Returns true if
// anything was removed.
func (p *Pipeline) Unregister(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := false
	p.before, removed = removeByID(p.before, id, removed)
	p.after, removed = removeByID(p.after, id, removed)
	return removed
}

func removeByID(entries []entry, id string, removed bool) ([]entry, bool) {
	out := entries[:0]
	for _, e := range entries {
		if e.action.ID() == id {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out, removed
}

// Dispatch executes the chain for one stage (before or after) against
// ev.Namespace. An error from any action aborts the remainder of that
// chain and is returned. Dispatch does not invoke the underlying store
// operation itself — callers run it between a Before and an After Dispatch.
func (p *Pipeline) Dispatch(ctx context.Context, stage Stage, ev *Event) error {
	if ev.CorrelationID == "" {
		ev.CorrelationID = uuid.NewString()
	}
	chain := p.matchingChain(stage, ev.Namespace)
	for _, a := range chain {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline %s/%s: %w", p.name, stage, err)
		}
		if err := a.Run(ctx, ev); err != nil {
			return fmt.Errorf("pipeline %s/%s: action %q: %w", p.name, stage, a.ID(), err)
		}
	}
	return nil
}

// matchingChain collects this pipeline's ancestor chain (parent first) then
// this pipeline's own matching entries, each sorted by priority.
func (p *Pipeline) matchingChain(stage Stage, ns types.Namespace) []Action {
	var chain []Action
	if p.parent != nil {
		chain = append(chain, p.parent.matchingChain(stage, ns)...)
	}

	p.mu.RLock()
	var entries []entry
	switch stage {
	case Before:
		entries = p.before
	case After:
		entries = p.after
	}
	matched := make([]entry, 0, len(entries))
	for _, e := range entries {
		if e.namespace == "" || e.namespace == ns {
			matched = append(matched, e)
		}
	}
	p.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].action.Priority() < matched[j].action.Priority()
	})
	for _, e := range matched {
		chain = append(chain, e.action)
	}
	return chain
}

// Registry holds one Pipeline per operation Name, wired with the fixed
// parent relationships: index_get/index_set/index_delete do not inherit
// from their data-level counterparts, since index maintenance must run
// regardless of what data-level hooks a caller installed.
type Registry struct {
	pipelines map[Name]*Pipeline
}

// NewRegistry builds the seven fixed pipelines.
func NewRegistry() *Registry {
	r := &Registry{pipelines: make(map[Name]*Pipeline)}
	for _, n := range []Name{Set, Get, Update, Delete, IndexGet, IndexSet, IndexDelete} {
		r.pipelines[n] = New(n, nil)
	}
	return r
}

// Get returns the named pipeline, or nil if name is not one of the fixed
// operation names.
func (r *Registry) Get(name Name) *Pipeline {
	return r.pipelines[name]
}
