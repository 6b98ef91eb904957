package blobstore

import (
	"context"
	"path/filepath"

	"github.com/hupe1980/hogwild/internal/mmap"
)

// LocalStore implements Store on the local file system. Files are memory
// mapped with a sequential access hint, which suits repeated full passes.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at root. With an empty root,
// names are used as given (absolute or relative to the working directory).
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Open implements Store.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	path := name
	if s.root != "" {
		path = filepath.Join(s.root, name)
	}
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	_ = m.Advise(mmap.AccessSequential)
	return &bytesBlob{data: m.Bytes(), release: m.Close}, nil
}
