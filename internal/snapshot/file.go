package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// FileStore keeps the snapshot in a JSON file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

// Load returns an empty snapshot when the file does not exist yet.
func (f *FileStore) Load(_ context.Context) (Snapshot, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, &LoadError{Where: f.Path, Err: err}
	}
	s, err := Decode(b)
	if err != nil {
		return nil, &LoadError{Where: f.Path, Err: err}
	}
	return s, nil
}

// Save writes to a temp file next to Path and renames it into place, so a
// failed write never leaves a truncated snapshot behind.
func (f *FileStore) Save(_ context.Context, s Snapshot) error {
	b, err := Encode(s)
	if err != nil {
		return &PersistError{Where: f.Path, Err: err}
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistError{Where: f.Path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return &PersistError{Where: f.Path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return &PersistError{Where: f.Path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &PersistError{Where: f.Path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &PersistError{Where: f.Path, Err: err}
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return &PersistError{Where: f.Path, Err: err}
	}
	return nil
}
