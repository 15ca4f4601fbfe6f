// Package blobstore defines the BlobStore contract (§4.2): the narrow set
// of flat, name-keyed operations any backing object store must support for
// the adapter to mount it as a hierarchical file system.
package blobstore

import (
	"context"
	"io"
	"time"
)

// BlobItemInfo is the metadata the adapter needs for one blob key, whether
// returned from a listing or from GetProperties (§3).
type BlobItemInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	IsPrefix     bool // synthetic directory marker, no underlying object
}

// Store is the flat, name-keyed operation surface a backing object store
// exposes. Every method takes a blob key, never a native path - path
// translation happens in the pathmap package, above this layer.
//
// Implementations must return a *RemoteError for any failure that maps to
// an ErrorKind other than KindInternal, so adapter/errors.go's error-mapping stays
// a single table (§7) instead of being duplicated per backend.
type Store interface {
	// Probe checks connectivity and container/bucket existence at mount time.
	Probe(ctx context.Context) error

	// ListByHierarchy lists the immediate children of prefix only (one
	// level), the callback-facing "directory enumeration" operation.
	ListByHierarchy(ctx context.Context, prefix string) ([]BlobItemInfo, error)

	// ListAll lists every key under prefix, recursively. Used for
	// recursive directory delete and move-of-directory.
	ListAll(ctx context.Context, prefix string) ([]BlobItemInfo, error)

	// GetProperties fetches metadata for exactly one key.
	GetProperties(ctx context.Context, key string) (BlobItemInfo, error)

	// Download reads [offset, offset+len(dst)) of key's content into dst,
	// returning the number of bytes actually read.
	Download(ctx context.Context, key string, offset int64, dst []byte) (int, error)

	// Upload writes the full content of key from r. size is advisory for
	// backends that need a content-length up front; -1 means unknown.
	// When overwrite is false, the write must fail with an ErrorKind of
	// KindAlreadyExists if key already has an object, and must not
	// otherwise observably change that object - implementations honor
	// this with a conditional write where the backend supports one,
	// rather than a separate existence check the caller would have to
	// race against (§4.2, §6).
	Upload(ctx context.Context, key string, r io.Reader, size int64, overwrite bool) error

	// Copy duplicates srcKey's content to dstKey without a local round
	// trip, used by rename/move.
	Copy(ctx context.Context, srcKey, dstKey string) error

	// Delete removes exactly one key. Deleting a key that does not exist
	// is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key currently has an object.
	Exists(ctx context.Context, key string) (bool, error)
}
