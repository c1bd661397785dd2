package statestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SnapshotBackend persists the serialized state document. Load returns nil
// when no snapshot exists yet; Store must be all-or-nothing, so a crash mid-
// write cannot corrupt the previous snapshot.
type SnapshotBackend interface {
	Load(ctx context.Context) ([]byte, error)
	Store(ctx context.Context, doc []byte) error
}

// FileBackend keeps the snapshot in a single JSON file, replaced atomically
// via write-to-temp-then-rename.
type FileBackend struct {
	Path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

func (b *FileBackend) Load(ctx context.Context) ([]byte, error) {
	raw, err := os.ReadFile(b.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (b *FileBackend) Store(ctx context.Context, doc []byte) error {
	dir := filepath.Dir(b.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(b.Path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.Path)
}
