package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"github.com/kvindex/ihashmap/internal/index"
	"github.com/kvindex/ihashmap/internal/types"
)

// IndexDecl is one [[index]] table in the declarative index file.
type IndexDecl struct {
	Fields          []string `toml:"fields"`
	TargetNamespace string   `toml:"target_namespace"`
	Unique          bool     `toml:"unique"`
}

// IndexFile is the parsed contents of a TOML declarative index file: a
// deployment's way of declaring secondary indexes without recompiling.
type IndexFile struct {
	Index []IndexDecl `toml:"index"`
}

// LoadIndexFile parses path as a TOML IndexFile.
func LoadIndexFile(path string) (*IndexFile, error) {
	var f IndexFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: parse index file %s: %w", path, err)
	}
	return &f, nil
}

// Definitions converts the parsed declarations into index.Definition
// values ready to pass to Cache.RegisterIndex.
func (f *IndexFile) Definitions() []index.Definition {
	out := make([]index.Definition, 0, len(f.Index))
	for _, d := range f.Index {
		out = append(out, index.Definition{
			Target: types.Namespace(d.TargetNamespace),
			Fields: d.Fields,
			Unique: d.Unique,
		})
	}
	return out
}

// Registerer is satisfied by cache.Cache; kept narrow here so this package
// doesn't need to import cache (which would create an import cycle, since
// cache may in turn want config for bootstrapping).
type Registerer interface {
	RegisterIndex(index.Definition) *index.Index
}

// WatchIndexFile watches path for writes and, on each reload, registers
// every definition not already registered by an earlier reload (keyed by
// target namespace and field list). Index declarations are additive only —
// a watched reload never removes an index that disappears from the file,
// matching the engine's no-deregistration invariant. The returned stop
// function closes the underlying watcher; call it to stop watching.
func WatchIndexFile(path string, target Registerer) (stop func() error, err error) {
	register := func(d index.Definition) { target.RegisterIndex(d) }
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	seen := make(map[string]struct{})
	reload := func() {
		f, err := LoadIndexFile(path)
		if err != nil {
			return
		}
		for _, d := range f.Definitions() {
			key := string(d.Target) + "|" + strings.Join(d.Fields, ",")
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			register(d)
		}
	}
	reload()

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					reload()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return w.Close, nil
}
