// Package planner implements index selection and result combination for
// Cache.Search: choosing which registered indexes can answer a query,
// probing their forward maps, merging per-index projections, and falling
// back to a full scan plus residual filtering for whatever an index
// couldn't answer.
package planner

import (
	"context"
	"sort"

	"github.com/kvindex/ihashmap/internal/codec"
	"github.com/kvindex/ihashmap/internal/index"
	"github.com/kvindex/ihashmap/internal/query"
	"github.com/kvindex/ihashmap/internal/types"
)

// Getter is the minimal store surface the planner needs to fetch full
// entities for the PKs it has selected.
type Getter interface {
	Get(ctx context.Context, ns types.Namespace, key string) (interface{}, bool, error)
	Keys(ctx context.Context, ns types.Namespace) ([]string, error)
}

// Search runs the full plan-select-probe-merge-filter pipeline described by
// the combine algorithm and returns matching entities ordered by PK.
func Search(ctx context.Context, store Getter, indexes []*index.Index, ns types.Namespace, q query.Query) ([]types.Document, error) {
	hitIndexes, combinedKeys := selectIndexes(indexes, q)

	merged := make(map[string]map[string]interface{})

	if len(hitIndexes) > 0 {
		for _, ix := range hitIndexes {
			if err := probe(ctx, ix, ns, q, merged); err != nil {
				return nil, err
			}
		}

		indexedQuery := make(query.Query, len(combinedKeys))
		for f := range combinedKeys {
			if v, ok := q[f]; ok {
				indexedQuery[f] = v
			}
		}
		for pk, proj := range merged {
			if !indexedQuery.Matches(proj) {
				delete(merged, pk)
			}
		}
	} else {
		keys, err := store.Keys(ctx, ns)
		if err != nil {
			return nil, err
		}
		for _, pk := range keys {
			merged[pk] = nil
		}
	}

	restQuery := make(query.Query)
	for f, v := range q {
		if _, ok := combinedKeys[f]; !ok {
			restQuery[f] = v
		}
	}

	pks := make([]string, 0, len(merged))
	for pk := range merged {
		pks = append(pks, pk)
	}
	sort.Strings(pks)

	results := make([]types.Document, 0, len(pks))
	for _, pk := range pks {
		v, ok, err := store.Get(ctx, ns, pk)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		doc, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		if len(restQuery) > 0 && !restQuery.Matches(doc) {
			continue
		}
		results = append(results, types.Document(doc))
	}
	return results, nil
}

// selectIndexes greedily picks indexes that each contribute at least one
// still-unclaimed query field, preferring indexes that cover the most
// fields first so fewer indexes are needed to cover the whole query.
func selectIndexes(indexes []*index.Index, q query.Query) (hit []*index.Index, combinedKeys map[string]struct{}) {
	remaining := make(map[string]struct{}, len(q))
	for f := range q {
		remaining[f] = struct{}{}
	}

	type candidate struct {
		ix      *index.Index
		matched []string
	}
	candidates := make([]candidate, 0, len(indexes))
	for _, ix := range indexes {
		var matched []string
		for _, f := range ix.Fields() {
			if _, ok := q[f]; ok {
				matched = append(matched, f)
			}
		}
		if len(matched) > 0 {
			candidates = append(candidates, candidate{ix: ix, matched: matched})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].matched) > len(candidates[j].matched)
	})

	combinedKeys = make(map[string]struct{})
	for _, c := range candidates {
		if len(remaining) == 0 {
			break
		}
		overlaps := false
		for _, f := range c.matched {
			if _, ok := remaining[f]; ok {
				overlaps = true
				break
			}
		}
		if !overlaps {
			continue
		}
		hit = append(hit, c.ix)
		for _, f := range c.matched {
			delete(remaining, f)
			combinedKeys[f] = struct{}{}
		}
	}
	return hit, combinedKeys
}

// probe reads ix's forward map for the portion of q it can answer and
// merges the resulting (pk, projected-fields) pairs into merged. When the
// index's fields are fully pinned by literal query terms it does a direct
// key lookup; otherwise it falls back to scanning every stored key for
// this index and filtering by the query terms that involve a predicate or
// a partial field set.
func probe(ctx context.Context, ix *index.Index, ns types.Namespace, q query.Query, merged map[string]map[string]interface{}) error {
	fields := ix.Fields()
	sub := make(map[string]interface{}, len(fields))
	subQuery := make(query.Query, len(fields))
	complete := true
	hasPredicate := false
	for _, f := range fields {
		v, ok := q[f]
		if !ok {
			complete = false
			continue
		}
		subQuery[f] = v
		if v.IsPredicate() {
			hasPredicate = true
		} else {
			sub[f] = v.LiteralValue()
		}
	}

	if complete && !hasPredicate {
		key, err := ix.EncodeKey(sub)
		if err != nil {
			return err
		}
		pks, err := ix.PKsFor(ctx, ns, key)
		if err != nil {
			return err
		}
		for _, pk := range pks {
			mergeInto(merged, pk, sub)
		}
		return nil
	}

	keys, err := ix.Keys(ctx, ns)
	if err != nil {
		return err
	}
	for _, encKey := range keys {
		record, err := decodeRecord(encKey)
		if err != nil {
			continue
		}
		if !subQuery.Matches(record) {
			continue
		}
		pks, err := ix.PKsFor(ctx, ns, encKey)
		if err != nil {
			return err
		}
		for _, pk := range pks {
			mergeInto(merged, pk, record)
		}
	}
	return nil
}

func mergeInto(merged map[string]map[string]interface{}, pk string, fields map[string]interface{}) {
	doc, ok := merged[pk]
	if !ok {
		doc = make(map[string]interface{})
		merged[pk] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
}

func decodeRecord(encKey string) (map[string]interface{}, error) {
	return codec.DecodeIndexKey(encKey)
}
