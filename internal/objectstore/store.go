// Package objectstore provides a provider-agnostic object storage
// abstraction: an S3-compatible backend (DigitalOcean Spaces) and a
// local-filesystem fallback, selected the same way the teacher's
// cloud.OpenBucket chooses between GCS/S3/file backends (see
// DESIGN.md). A nil Store means local-only mode uniformly across every
// caller (SPEC_FULL.md Design Notes).
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Get when the key does not exist, by both
// backends; Head reports a missing key as (false, nil) instead.
var ErrNotExist = errors.New("objectstore: key does not exist")

// Store is the minimal contract the cache tiers and the Orchestrator's
// upload step need. Implementations must make Put idempotent: calling it
// twice with the same key and bytes is not an error (SPEC_FULL.md §5).
type Store interface {
	// Put uploads data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// Get downloads the object at key. Returns ErrNotExist if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Head reports whether an object exists at key without downloading
	// it — used as a pre-Put optimization (SPEC_FULL.md §5: "head_object
	// before put is an optimisation, not a correctness requirement").
	Head(ctx context.Context, key string) (bool, error)

	// List returns every key with the given prefix, in no particular
	// order. Implementations must page internally (Design Notes:
	// "explicit iterator objects with a next() contract" generalizes to
	// "List pages internally and returns the full slice" for our scale
	// of objects per prefix, which is at most a few thousand).
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object at key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error
}

// PutReader is an optional capability for backends that can stream an
// upload without buffering the whole payload; both backends in this
// package implement it in addition to Store.
type PutReader interface {
	PutStream(ctx context.Context, key string, r io.Reader, size int64) error
}
