package blobstore

import (
	"context"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// FSBackend is the local-filesystem BlobBackend, rooted at a base
// directory on an afero.Fs. Production callers pass afero.NewOsFs();
// tests pass afero.NewMemMapFs() to exercise the same code path without
// touching disk.
type FSBackend struct {
	fs   afero.Fs
	root string
}

// NewFSBackend roots a BlobBackend at root on fs, creating root if it
// does not already exist.
func NewFSBackend(fs afero.Fs, root string) (*FSBackend, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FSBackend{fs: fs, root: root}, nil
}

// path maps a logical "/"-separated key onto a filesystem path under
// root, keeping the same segment structure so shard directories show up
// as real directories (useful when inspecting the store by hand).
func (b *FSBackend) path(key string) string {
	return path.Join(b.root, key)
}

func (b *FSBackend) Put(_ context.Context, key string, value []byte) error {
	p := b.path(key)
	if err := b.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(b.fs, p, value, 0o644)
}

func (b *FSBackend) Get(_ context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(b.fs, b.path(key))
	if err != nil {
		if isNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (b *FSBackend) Delete(_ context.Context, key string) error {
	err := b.fs.Remove(b.path(key))
	if err != nil && !isNotExist(err) {
		return err
	}
	return nil
}

func (b *FSBackend) Exists(_ context.Context, key string) (bool, error) {
	_, err := b.fs.Stat(b.path(key))
	if err == nil {
		return true, nil
	}
	if isNotExist(err) {
		return false, nil
	}
	return false, err
}

func (b *FSBackend) List(_ context.Context, prefix string) Iterator {
	root := b.root
	var keys []string
	err := afero.Walk(b.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if isNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		if strings.HasPrefix(rel, prefix) {
			keys = append(keys, rel)
		}
		return nil
	})
	if err != nil {
		return errIterator{err: err}
	}
	return newSliceIterator(keys)
}

func isNotExist(err error) bool {
	return err != nil && os.IsNotExist(err)
}
