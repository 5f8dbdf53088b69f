package blobstore

import (
	"context"
	"path"
	"strings"
)

// PrefixedStore scopes a BlobStore to names under a prefix.
type PrefixedStore struct {
	inner  BlobStore
	prefix string
}

// Prefixed returns a view of inner where every name is stored as prefix/name.
func Prefixed(inner BlobStore, prefix string) *PrefixedStore {
	return &PrefixedStore{inner: inner, prefix: strings.Trim(prefix, "/")}
}

// PrefixedFactory returns a Factory scoping inner to one prefix per name.
func PrefixedFactory(inner BlobStore, root string) Factory {
	return func(name string) (BlobStore, error) {
		return Prefixed(inner, path.Join(root, name)), nil
	}
}

func (s *PrefixedStore) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Open opens a blob for reading.
func (s *PrefixedStore) Open(ctx context.Context, name string) (Blob, error) {
	return s.inner.Open(ctx, s.key(name))
}

// Put writes a blob atomically.
func (s *PrefixedStore) Put(ctx context.Context, name string, data []byte) error {
	return s.inner.Put(ctx, s.key(name), data)
}

// Delete removes a blob.
func (s *PrefixedStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, s.key(name))
}

// List returns the names under the prefix, relative to it.
func (s *PrefixedStore) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := s.inner.List(ctx, s.key(prefix))
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if s.prefix != "" {
			n = strings.TrimPrefix(n, s.prefix+"/")
		}
		out = append(out, n)
	}
	return out, nil
}
