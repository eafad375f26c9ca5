package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvindex/ihashmap/internal/index"
	"github.com/kvindex/ihashmap/internal/query"
	"github.com/kvindex/ihashmap/internal/store/memstore"
	"github.com/kvindex/ihashmap/internal/types"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New(memstore.New())
	ctx := context.Background()

	doc := types.Document{"_id": "u1", "name": "ana"}
	require.NoError(t, c.Set(ctx, "users", doc))

	got, err := c.Get(ctx, "users", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "ana", got["name"])
}

func TestSetRejectsMissingPK(t *testing.T) {
	c := New(memstore.New())
	err := c.Set(context.Background(), "users", types.Document{"name": "ana"})
	assert.ErrorIs(t, err, types.ErrInvalidDocument)
}

func TestGetMissingReturnsDefault(t *testing.T) {
	c := New(memstore.New())
	def := types.Document{"name": "fallback"}
	got, err := c.Get(context.Background(), "users", "missing", def)
	require.NoError(t, err)
	assert.Equal(t, "fallback", got["name"])
}

func TestUpdateShallowMerges(t *testing.T) {
	c := New(memstore.New())
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "users", types.Document{"_id": "u1", "name": "ana", "age": 30}))

	require.NoError(t, c.Update(ctx, "users", types.Document{"_id": "u1", "age": 31}, nil))
	got, err := c.Get(ctx, "users", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "ana", got["name"])
	assert.Equal(t, 31, got["age"])
}

func TestDeleteRemovesDocument(t *testing.T) {
	c := New(memstore.New())
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "users", types.Document{"_id": "u1", "name": "ana"}))

	require.NoError(t, c.Delete(ctx, "users", "u1"))
	got, err := c.Get(ctx, "users", "u1", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// TestPKIndexAllowsReupsertingSamePK covers the corrected
// PK-index invariant: re-setting the same PK (an upsert) must never trip
// ErrUniqueViolation even though the PK index's own set.before hook runs
// CheckUnique against the already-indexed forward set.
func TestPKIndexAllowsReupsertingSamePK(t *testing.T) {
	c := New(memstore.New())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "users", types.Document{"_id": "u1", "name": "ana"}))
	err := c.Set(ctx, "users", types.Document{"_id": "u1", "name": "ana2"})
	assert.NoError(t, err, "re-upserting the same PK should succeed")
}

func TestAllListsEveryDocument(t *testing.T) {
	c := New(memstore.New())
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "users", types.Document{"_id": "u1"}))
	require.NoError(t, c.Set(ctx, "users", types.Document{"_id": "u2"}))

	docs, err := c.All(ctx, "users")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestSearchUsesRegisteredIndex(t *testing.T) {
	c := New(memstore.New())
	c.RegisterIndex(index.Definition{Target: "users", Fields: []string{"status"}})
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "users", types.Document{"_id": "u1", "status": "open"}))
	require.NoError(t, c.Set(ctx, "users", types.Document{"_id": "u2", "status": "closed"}))

	results, err := c.Search(ctx, "users", query.Query{"status": query.Literal("open")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "u1", results[0]["_id"])
}

func TestUpdateRekeysRegisteredIndex(t *testing.T) {
	c := New(memstore.New())
	c.RegisterIndex(index.Definition{Target: "users", Fields: []string{"status"}})
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "users", types.Document{"_id": "u1", "status": "open"}))
	require.NoError(t, c.Update(ctx, "users", types.Document{"_id": "u1", "status": "closed"}, nil))

	open, err := c.Search(ctx, "users", query.Query{"status": query.Literal("open")})
	require.NoError(t, err)
	assert.Empty(t, open)

	closed, err := c.Search(ctx, "users", query.Query{"status": query.Literal("closed")})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "u1", closed[0]["_id"])
}

func TestDeleteMaintainsIndex(t *testing.T) {
	c := New(memstore.New())
	c.RegisterIndex(index.Definition{Target: "users", Fields: []string{"status"}})
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "users", types.Document{"_id": "u1", "status": "open"}))
	require.NoError(t, c.Set(ctx, "users", types.Document{"_id": "u2", "status": "open"}))
	require.NoError(t, c.Delete(ctx, "users", "u1"))

	results, err := c.Search(ctx, "users", query.Query{"status": query.Literal("open")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "u2", results[0]["_id"])
}
