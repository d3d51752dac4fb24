package blobsvc

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core"
)

const schemeLocal = "local"

// LocalStore keeps documents in a directory (DEV and tests).
type LocalStore struct {
	dir string
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, core.NewDependencyError("blob store", errors.Wrap(err, dir))
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Put(_ context.Context, name string, r io.Reader) (string, error) {
	key := newKey(name)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", core.NewDependencyError("blob store", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", core.NewDependencyError("blob store", errors.Wrap(err, "writing document"))
	}
	if err = tmp.Close(); err != nil {
		return "", core.NewDependencyError("blob store", err)
	}
	if err = os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return "", core.NewDependencyError("blob store", err)
	}
	return schemeLocal + "://" + key, nil
}

func (s *LocalStore) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	key, ok := keyOf(schemeLocal, handle)
	if !ok {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, core.NewDependencyError("blob store", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(_ context.Context, handle string) error {
	key, ok := keyOf(schemeLocal, handle)
	if !ok {
		return ErrNotFound
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return core.NewDependencyError("blob store", err)
	}
	return nil
}
