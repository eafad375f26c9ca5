package ihashmap

import (
	"context"
	"testing"

	"github.com/kvindex/ihashmap/internal/query"
)

func TestOpenMemorySetGet(t *testing.T) {
	c := OpenMemory()
	ctx := context.Background()

	if err := c.Set(ctx, "users", Document{"_id": "u1", "name": "ana"}); err != nil {
		t.Fatal(err)
	}
	doc, err := c.Get(ctx, "users", "u1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if doc["name"] != "ana" {
		t.Fatalf("Get = %v", doc)
	}
}

func TestRegisterIndexAndSearch(t *testing.T) {
	c := OpenMemory()
	ctx := context.Background()
	c.RegisterIndex(IndexDefinition{Target: "users", Fields: []string{"status"}})

	_ = c.Set(ctx, "users", Document{"_id": "u1", "status": "open"})
	_ = c.Set(ctx, "users", Document{"_id": "u2", "status": "closed"})

	results, err := c.Search(ctx, "users", Query{"status": query.Literal("open")})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0]["_id"] != "u1" {
		t.Fatalf("Search = %v, want just u1", results)
	}
}

func TestDumpLoadViaFacade(t *testing.T) {
	c := OpenMemory()
	ctx := context.Background()
	_ = c.Set(ctx, "users", Document{"_id": "u1", "name": "ana"})

	path := t.TempDir() + "/snap.yaml"
	if err := c.Dump(ctx, "users", path, FailFast); err != nil {
		t.Fatal(err)
	}

	dst := OpenMemory()
	ns, n, err := dst.Load(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if ns != "users" || n != 1 {
		t.Fatalf("Load() = %q, %d", ns, n)
	}
}
