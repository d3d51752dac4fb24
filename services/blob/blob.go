// Package blobsvc stores uploaded documents and hands back opaque handles to them.
package blobsvc

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/daftari/core"
)

var ErrNotFound = core.NewNotFoundError("document not found")

// Store keeps documents. A handle is "<scheme>://<key>" and only means something to the store that issued it.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	Delete(ctx context.Context, handle string) error
}

// NewStore picks the backend configured in conf.Blob.
func NewStore(ctx context.Context, conf *core.Config) (Store, error) {
	if conf.Blob.Backend == core.BlobB2 {
		return NewB2Store(ctx, conf.Blob.B2Account, conf.Blob.B2Key, conf.Blob.B2Bucket)
	}
	return NewLocalStore(conf.Blob.Dir)
}

// newKey keeps the extension and a readable base name of an upload, prefixed to stay unique.
func newKey(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	clean := strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	if clean == "." || clean == ".." || clean == "" {
		clean = "document"
	}
	return uuid.New().String() + "-" + clean
}

// keyOf returns the key of a handle issued under scheme.
func keyOf(scheme, handle string) (string, bool) {
	key := strings.TrimPrefix(handle, scheme+"://")
	if key == handle || key == "" || strings.ContainsAny(key, "/\\") {
		return "", false
	}
	return key, true
}
