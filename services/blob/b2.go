package blobsvc

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core"
)

const schemeB2 = "b2"

// B2Store keeps documents in a Backblaze B2 bucket.
type B2Store struct {
	client *b2.Client
	bucket *b2.Bucket
}

var _ Store = (*B2Store)(nil)

func NewB2Store(ctx context.Context, accountID, appKey, bucketName string) (*B2Store, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, core.NewDependencyError("b2", errors.Wrap(err, "creating client"))
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, core.NewDependencyError("b2", errors.Wrapf(err, "getting bucket %s", bucketName))
	}
	return &B2Store{client: client, bucket: bucket}, nil
}

func (s *B2Store) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	key := newKey(name)
	w := s.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", core.NewDependencyError("b2", errors.Wrap(err, "writing object"))
	}
	if err := w.Close(); err != nil {
		return "", core.NewDependencyError("b2", errors.Wrap(err, "closing writer"))
	}
	return schemeB2 + "://" + key, nil
}

func (s *B2Store) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	key, ok := keyOf(schemeB2, handle)
	if !ok {
		return nil, ErrNotFound
	}
	obj := s.bucket.Object(key)
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, core.NewDependencyError("b2", err)
	}
	return obj.NewReader(ctx), nil
}

func (s *B2Store) Delete(ctx context.Context, handle string) error {
	key, ok := keyOf(schemeB2, handle)
	if !ok {
		return ErrNotFound
	}
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		if b2.IsNotExist(err) {
			return ErrNotFound
		}
		return core.NewDependencyError("b2", err)
	}
	return nil
}
