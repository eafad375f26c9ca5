package index

import (
	"context"
	"errors"
	"testing"

	"github.com/kvindex/ihashmap/internal/pipeline"
	"github.com/kvindex/ihashmap/internal/store/memstore"
	"github.com/kvindex/ihashmap/internal/types"
)

func newTestIndex(fields []string, unique bool) (*Index, *memstore.Store) {
	s := memstore.New()
	ix := New(Definition{Target: "users", Fields: fields, Unique: unique}, s, pipeline.NewRegistry(), "")
	return ix, s
}

func TestInsertAndPKsFor(t *testing.T) {
	ix, _ := newTestIndex([]string{"status"}, false)
	ctx := context.Background()

	entity := map[string]interface{}{"_id": "u1", "status": "open"}
	if err := ix.Insert(ctx, "users", entity); err != nil {
		t.Fatal(err)
	}

	key, err := ix.EncodeKey(entity)
	if err != nil {
		t.Fatal(err)
	}
	pks, err := ix.PKsFor(ctx, "users", key)
	if err != nil {
		t.Fatal(err)
	}
	if len(pks) != 1 || pks[0] != "u1" {
		t.Fatalf("PKsFor = %v, want [u1]", pks)
	}
}

// TestInsertUnionsMultiplePKs verifies that Insert (the set.after path)
// unions a second, distinct PK under a key already holding one PK into the
// existing forward set instead of overwriting it.
func TestInsertUnionsMultiplePKs(t *testing.T) {
	ix, _ := newTestIndex([]string{"status"}, false)
	ctx := context.Background()

	if err := ix.Insert(ctx, "users", map[string]interface{}{"_id": "u1", "status": "open"}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Insert(ctx, "users", map[string]interface{}{"_id": "u2", "status": "open"}); err != nil {
		t.Fatal(err)
	}

	key, _ := ix.EncodeKey(map[string]interface{}{"status": "open"})
	pks, err := ix.PKsFor(ctx, "users", key)
	if err != nil {
		t.Fatal(err)
	}
	if len(pks) != 2 {
		t.Fatalf("PKsFor = %v, want both u1 and u2 present", pks)
	}
}

// TestRemoveDropsOnlyAffectedPK verifies the corrected delete.after
// semantics: removing one PK from a forward set shared by several PKs
// leaves the others in place, and only deletes the forward entry once it
// becomes empty.
func TestRemoveDropsOnlyAffectedPK(t *testing.T) {
	ix, s := newTestIndex([]string{"status"}, false)
	ctx := context.Background()

	e1 := map[string]interface{}{"_id": "u1", "status": "open"}
	e2 := map[string]interface{}{"_id": "u2", "status": "open"}
	if err := ix.Insert(ctx, "users", e1); err != nil {
		t.Fatal(err)
	}
	if err := ix.Insert(ctx, "users", e2); err != nil {
		t.Fatal(err)
	}

	if err := ix.Remove(ctx, "users", e1); err != nil {
		t.Fatal(err)
	}

	key, _ := ix.EncodeKey(map[string]interface{}{"status": "open"})
	pks, err := ix.PKsFor(ctx, "users", key)
	if err != nil {
		t.Fatal(err)
	}
	if len(pks) != 1 || pks[0] != "u2" {
		t.Fatalf("PKsFor after removing u1 = %v, want [u2]", pks)
	}

	// The forward entry for u2 must still exist in the underlying store.
	if _, ok, _ := s.Get(ctx, ix.ForwardName("users"), key); !ok {
		t.Fatal("expected the forward entry to remain while u2's PK is still live")
	}

	if err := ix.Remove(ctx, "users", e2); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, ix.ForwardName("users"), key); ok {
		t.Fatal("expected the forward entry to be deleted once its PK set is empty")
	}
}

func TestCheckUniqueRejectsSecondPK(t *testing.T) {
	ix, _ := newTestIndex([]string{"email"}, true)
	ctx := context.Background()

	e1 := map[string]interface{}{"_id": "u1", "email": "a@example.com"}
	if err := ix.Insert(ctx, "users", e1); err != nil {
		t.Fatal(err)
	}

	e2 := map[string]interface{}{"_id": "u2", "email": "a@example.com"}
	if err := ix.CheckUnique(ctx, "users", e2); !errors.Is(err, types.ErrUniqueViolation) {
		t.Fatalf("CheckUnique error = %v, want ErrUniqueViolation", err)
	}
}

// TestCheckUniqueAllowsReupsertingSamePK verifies that re-setting an
// already-present PK whose existing forward set is exactly {pk} never
// raises ErrUniqueViolation, including for the PK index itself.
func TestCheckUniqueAllowsReupsertingSamePK(t *testing.T) {
	ix, _ := newTestIndex([]string{"email"}, true)
	ctx := context.Background()

	e1 := map[string]interface{}{"_id": "u1", "email": "a@example.com"}
	if err := ix.Insert(ctx, "users", e1); err != nil {
		t.Fatal(err)
	}
	if err := ix.CheckUnique(ctx, "users", e1); err != nil {
		t.Fatalf("CheckUnique rejected a re-upsert of the same PK: %v", err)
	}
}

func TestRekeyMovesAndUnions(t *testing.T) {
	ix, _ := newTestIndex([]string{"status"}, false)
	ctx := context.Background()

	old := map[string]interface{}{"_id": "u1", "status": "open"}
	if err := ix.Insert(ctx, "users", old); err != nil {
		t.Fatal(err)
	}
	// Another PK already sits at "closed".
	if err := ix.Insert(ctx, "users", map[string]interface{}{"_id": "u2", "status": "closed"}); err != nil {
		t.Fatal(err)
	}

	updated := map[string]interface{}{"_id": "u1", "status": "closed"}
	if err := ix.Rekey(ctx, "users", old, updated); err != nil {
		t.Fatal(err)
	}

	closedKey, _ := ix.EncodeKey(map[string]interface{}{"status": "closed"})
	pks, err := ix.PKsFor(ctx, "users", closedKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(pks) != 2 {
		t.Fatalf("PKsFor(closed) = %v, want both u1 and u2 present after rekey", pks)
	}

	openKey, _ := ix.EncodeKey(map[string]interface{}{"status": "open"})
	pks, err = ix.PKsFor(ctx, "users", openKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(pks) != 0 {
		t.Fatalf("PKsFor(open) = %v, want empty after rekey away", pks)
	}
}

func TestRekeyNoopWhenKeyUnchanged(t *testing.T) {
	ix, _ := newTestIndex([]string{"status"}, false)
	ctx := context.Background()

	e := map[string]interface{}{"_id": "u1", "status": "open"}
	if err := ix.Insert(ctx, "users", e); err != nil {
		t.Fatal(err)
	}
	if err := ix.Rekey(ctx, "users", e, e); err != nil {
		t.Fatal(err)
	}

	key, _ := ix.EncodeKey(e)
	pks, err := ix.PKsFor(ctx, "users", key)
	if err != nil {
		t.Fatal(err)
	}
	if len(pks) != 1 {
		t.Fatalf("PKsFor = %v, want exactly 1 after a no-op rekey", pks)
	}
}

func TestPruneStaleDropsDanglingPK(t *testing.T) {
	ix, s := newTestIndex([]string{"status"}, false)
	ctx := context.Background()

	e := map[string]interface{}{"_id": "u1", "status": "open"}
	if err := ix.Insert(ctx, "users", e); err != nil {
		t.Fatal(err)
	}
	key, _ := ix.EncodeKey(e)

	if err := ix.PruneStale(ctx, "users", key, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, ix.ForwardName("users"), key); ok {
		t.Fatal("expected the forward entry to be gone after pruning its only PK")
	}
}

func TestAppliesTo(t *testing.T) {
	scoped := New(Definition{Target: "users"}, memstore.New(), pipeline.NewRegistry(), "")
	if !scoped.AppliesTo("users") {
		t.Fatal("expected a scoped index to apply to its target namespace")
	}
	if scoped.AppliesTo("orders") {
		t.Fatal("expected a scoped index not to apply to another namespace")
	}

	global := New(Definition{}, memstore.New(), pipeline.NewRegistry(), "")
	if !global.AppliesTo("orders") {
		t.Fatal("expected a global index (empty Target) to apply to every namespace")
	}
}

func TestResolvedFieldsDedupesAndSortsWithPKPlaceholder(t *testing.T) {
	ix := New(Definition{Fields: []string{"b", PKPlaceholder, "a", "b"}}, memstore.New(), pipeline.NewRegistry(), "")
	want := []string{"_id", "a", "b"}
	got := ix.Fields()
	if len(got) != len(want) {
		t.Fatalf("Fields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Fields() = %v, want %v", got, want)
		}
	}
}
