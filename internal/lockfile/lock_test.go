package lockfile

import (
	"path/filepath"
	"testing"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	lk, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := lk.Release(); err != nil {
		t.Fatal(err)
	}

	// Reacquiring after Release must succeed.
	lk2, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := lk2.Release(); err != nil {
		t.Fatal(err)
	}
}

func TestAcquireConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	lk, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	defer lk.Release()

	_, err = Acquire(path)
	if !IsLocked(err) {
		t.Fatalf("second Acquire error = %v, want ErrLockBusy", err)
	}
}
