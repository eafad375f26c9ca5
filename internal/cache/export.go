package cache

import (
	"context"
	"fmt"

	"github.com/kvindex/ihashmap/internal/export"
	"github.com/kvindex/ihashmap/internal/types"
)

// Dump writes every live document in ns to path as a YAML snapshot with a
// manifest. With policy FailFast, the first read error aborts the dump;
// with SkipErrors, failed keys are recorded in the manifest and skipped.
func (c *Cache) Dump(ctx context.Context, ns types.Namespace, path string, policy export.ErrorPolicy) error {
	manifest := export.NewManifest(ns, policy)

	keys, err := c.store.Keys(ctx, ns)
	if err != nil {
		return fmt.Errorf("cache: dump %s: %w", ns, err)
	}

	docs := make([]types.Document, 0, len(keys))
	for _, k := range keys {
		v, ok, err := c.store.Get(ctx, ns, k)
		if err != nil {
			if policy == export.FailFast {
				return fmt.Errorf("cache: dump %s: read %s: %w", ns, k, err)
			}
			manifest.Complete = false
			manifest.Skipped = append(manifest.Skipped, k)
			continue
		}
		if !ok {
			continue
		}
		if m, ok := v.(map[string]interface{}); ok {
			docs = append(docs, types.Document(m))
		}
	}
	manifest.Count = len(docs)

	return export.WriteSnapshot(path, &export.Snapshot{Manifest: *manifest, Documents: docs})
}

// Load reads a snapshot written by Dump and re-inserts every document into
// the namespace it was exported from (the manifest's namespace, not
// necessarily the caller's current namespace of interest), running each
// document through Set so index maintenance fires exactly as it would for
// a live write.
func (c *Cache) Load(ctx context.Context, path string) (types.Namespace, int, error) {
	snap, err := export.ReadSnapshot(path)
	if err != nil {
		return "", 0, err
	}
	for _, doc := range snap.Documents {
		if err := c.Set(ctx, snap.Manifest.Namespace, doc); err != nil {
			return snap.Manifest.Namespace, 0, fmt.Errorf("cache: load %s: %w", path, err)
		}
	}
	return snap.Manifest.Namespace, len(snap.Documents), nil
}
