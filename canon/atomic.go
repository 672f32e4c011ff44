package canon

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteFile writes data to path via write-temp → fsync → rename →
// fsync-directory, the pattern used throughout this module for every
// durable write except TrustLog's serialized primary-segment append (which
// uses the exclusive lock plus fsync-on-write instead; see trustlog.Log).
// Grounded on five82-spindle's keydb catalog refresh
// (os.WriteFile(tempPath, ...) + os.Rename) and mercator-hq's
// write-temp-then-rename config writers, generalized to add the fsync
// calls §4.4/§6 require ("all writes use write-temp → fsync → rename").
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("canon: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("canon: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("canon: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("canon: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("canon: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("canon: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("canon: rename temp file: %w", err)
	}
	cleanup = false

	if err := syncDir(dir); err != nil {
		return fmt.Errorf("canon: fsync dir: %w", err)
	}
	return nil
}

// syncDir fsyncs the directory entry so the rename above survives a crash,
// per the append protocol's "fsync the directory" steps (§4.4 steps 5, 6).
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
