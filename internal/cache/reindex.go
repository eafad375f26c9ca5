package cache

import (
	"context"
	"fmt"

	"github.com/kvindex/ihashmap/internal/types"
)

// ReindexReport summarizes what a Reindex pass found and fixed.
type ReindexReport struct {
	Namespace      types.Namespace
	EntitiesWalked int
	KeysInserted   int
	StaleDropped   int
}

// Reindex walks every live entity in ns and recomputes the forward/reverse
// entries for every index applicable to ns, then drops any forward-map
// entry whose PKs no longer have a live backing entity. This repairs index
// state left lagging by a hook failure after the data write already
// committed — the pipeline's after-phase can abort partway through, and
// nothing else in the engine heals that automatically.
func (c *Cache) Reindex(ctx context.Context, ns types.Namespace) (*ReindexReport, error) {
	report := &ReindexReport{Namespace: ns}
	indexes := c.indexes.For(ns)

	keys, err := c.store.Keys(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("cache: reindex %s: %w", ns, err)
	}

	live := make(map[string]map[string]interface{}, len(keys))
	for _, k := range keys {
		v, ok, err := c.store.Get(ctx, ns, k)
		if err != nil {
			return nil, fmt.Errorf("cache: reindex %s: read %s: %w", ns, k, err)
		}
		if !ok {
			continue
		}
		if m, ok := v.(map[string]interface{}); ok {
			live[k] = m
			report.EntitiesWalked++
		}
	}

	for _, ix := range indexes {
		for _, entity := range live {
			if err := ix.Insert(ctx, ns, entity); err != nil {
				return nil, fmt.Errorf("cache: reindex %s: %w", ns, err)
			}
			report.KeysInserted++
		}

		fwdKeys, err := ix.Keys(ctx, ns)
		if err != nil {
			return nil, fmt.Errorf("cache: reindex %s: %w", ns, err)
		}
		for _, fk := range fwdKeys {
			pks, err := ix.PKsFor(ctx, ns, fk)
			if err != nil {
				return nil, err
			}
			for _, pk := range pks {
				if _, ok := live[pk]; ok {
					continue
				}
				if err := ix.PruneStale(ctx, ns, fk, pk); err != nil {
					return nil, fmt.Errorf("cache: reindex %s: %w", ns, err)
				}
				report.StaleDropped++
			}
		}
	}

	return report, nil
}
