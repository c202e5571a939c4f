package storage

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/qepting91/linkfinder/internal/domain"
)

// ErrNoSnapshot is returned by ReadJSON when the file does not exist.
var ErrNoSnapshot = errors.New("snapshot does not exist")

// WriteJSONAtomic encodes v to a temp file beside path and renames it into
// place, so readers never observe a half-written snapshot.
func WriteJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.CacheIOError{Op: "write", Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return &domain.CacheIOError{Op: "write", Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return &domain.CacheIOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.CacheIOError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &domain.CacheIOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// ReadJSON decodes path into v. A missing file yields ErrNoSnapshot wrapped
// in a CacheIOError.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &domain.CacheIOError{Op: "read", Path: path, Err: ErrNoSnapshot}
	}
	if err != nil {
		return &domain.CacheIOError{Op: "read", Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &domain.CacheIOError{Op: "decode", Path: path, Err: err}
	}
	return nil
}
