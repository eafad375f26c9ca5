// Package export implements namespace backup/restore: a YAML snapshot of
// every document in a namespace plus a manifest recording when and how
// completely it was taken.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kvindex/ihashmap/internal/types"
)

// ErrorPolicy controls how Dump behaves when it cannot read an entity it
// already enumerated a key for.
type ErrorPolicy string

const (
	// FailFast aborts the dump on the first read error.
	FailFast ErrorPolicy = "fail_fast"
	// SkipErrors records the failure in the manifest and continues.
	SkipErrors ErrorPolicy = "skip_errors"
)

// Manifest describes one namespace snapshot.
type Manifest struct {
	Namespace   types.Namespace `yaml:"namespace"`
	ExportedAt  time.Time       `yaml:"exported_at"`
	ErrorPolicy string          `yaml:"error_policy"`
	Count       int             `yaml:"count"`
	Complete    bool            `yaml:"complete"`
	Skipped     []string        `yaml:"skipped,omitempty"`
}

// NewManifest creates a manifest for an export about to run, with
// Complete optimistically true; Dump flips it false if anything is skipped.
func NewManifest(ns types.Namespace, policy ErrorPolicy) *Manifest {
	return &Manifest{
		Namespace:   ns,
		ExportedAt:  time.Now(),
		ErrorPolicy: string(policy),
		Complete:    true,
	}
}

// Snapshot is the on-disk shape: a manifest plus the documents it describes.
type Snapshot struct {
	Manifest  Manifest         `yaml:"manifest"`
	Documents []types.Document `yaml:"documents"`
}

// WriteSnapshot writes snap to path atomically: write to a temp file in the
// same directory, then rename over the destination.
func WriteSnapshot(path string, snap *Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("export: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("export: write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("export: replace %s: %w", path, err)
	}
	return os.Chmod(path, 0o600)
}

// ReadSnapshot reads and parses a snapshot previously written by WriteSnapshot.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) // #nosec G304 - caller-controlled path
	if err != nil {
		return nil, fmt.Errorf("export: read %s: %w", path, err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("export: parse %s: %w", path, err)
	}
	return &snap, nil
}
