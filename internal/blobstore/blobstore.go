// Package blobstore defines the Backend capability the storage engine is
// built on and ships two concrete implementations: a local-filesystem
// backend over afero, and an S3-compatible object-storage backend over
// aws-sdk-go-v2. A third, in-memory backend is kept for tests and local
// development.
//
// Neither backend validates or caches; both preserve byte fidelity and
// use "/" as the key-space separator.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when key has no stored value. Engine
// code distinguishes this from other backend errors via errors.Is.
var ErrNotFound = errors.New("blobstore: key not found")

// Backend is the capability the storage engine consumes. Every method
// takes a context so callers can cancel at the I/O boundary.
type Backend interface {
	// Put writes value under key, creating or overwriting it.
	Put(ctx context.Context, key string, value []byte) error

	// Get reads the value stored under key. Returns ErrNotFound if the
	// key is absent — this is a normal result, not a backend failure.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Idempotent: deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key has a stored value, without reading it.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns a lazy iterator over every key with the given prefix.
	// Iteration order is not guaranteed.
	List(ctx context.Context, prefix string) Iterator
}

// Iterator is a lazy sequence of keys produced by List. Callers must
// drain it (call Next until it returns false) or it may leak the
// goroutine/handle backing it, for implementations that page remotely.
type Iterator interface {
	// Next advances the iterator and reports whether a key is available.
	// Once Next returns false, Err reports whether the iterator stopped
	// because it was exhausted (nil) or because of a failure.
	Next() (string, bool)
	Err() error
}

// sliceIterator is the trivial Iterator backing the in-memory backend,
// where the full key list is cheap to materialize up front.
type sliceIterator struct {
	keys []string
	pos  int
}

func newSliceIterator(keys []string) *sliceIterator {
	return &sliceIterator{keys: keys}
}

func (it *sliceIterator) Next() (string, bool) {
	if it.pos >= len(it.keys) {
		return "", false
	}
	k := it.keys[it.pos]
	it.pos++
	return k, true
}

func (it *sliceIterator) Err() error { return nil }

// errIterator is an Iterator that immediately reports a failure, used
// when a backend can't even begin listing (e.g. directory stat failure).
type errIterator struct{ err error }

func (it errIterator) Next() (string, bool) { return "", false }
func (it errIterator) Err() error           { return it.err }

// Collect drains an Iterator into a slice, for callers (query planner
// scans, traversal) that need the full key set rather than streaming.
func Collect(it Iterator) ([]string, error) {
	var keys []string
	for {
		k, ok := it.Next()
		if !ok {
			break
		}
		keys = append(keys, k)
	}
	return keys, it.Err()
}
