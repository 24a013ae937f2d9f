// Package store persists the configured boot target between runs.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/kairos-io/nextboot/internal/constants"
	"github.com/twpayne/go-vfs/v4"
)

// File keeps the bytes in a single file. Writes go to a temporary sibling
// that is renamed over Path, so a reader sees either the old or the new content.
type File struct {
	FS   vfs.FS
	Path string
}

// Load returns the stored bytes, or an error wrapping constants.ErrNoTarget
// when nothing was stored yet.
func (f *File) Load() ([]byte, error) {
	data, err := f.FS.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist, configure one with set-target", constants.ErrNoTarget, f.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Path, err)
	}
	return data, nil
}

// Store replaces the stored bytes with data.
func (f *File) Store(data []byte) error {
	if err := vfs.MkdirAll(f.FS, filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(f.Path), err)
	}
	tmp := filepath.Join(filepath.Dir(f.Path), "."+filepath.Base(f.Path)+".tmp")
	if err := f.FS.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := f.FS.Rename(tmp, f.Path); err != nil {
		_ = f.FS.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", f.Path, err)
	}
	return nil
}
