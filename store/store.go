// Package store defines the flat object-store boundary that the filesystem
// layer builds on. Implementations adapt one concrete provider (minio,
// sqlite, postgres, consul KV, in-memory) to this surface; retry and
// credential policy live entirely inside the implementation.
package store

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Bucket string
	Key    string

	Size        int64
	ContentType string
	ETag        string

	CreateTime time.Time
	ModifyTime time.Time
}

// BucketInfo describes one bucket visible to the current credentials.
type BucketInfo struct {
	Name       string
	CreateTime time.Time
}

// ObjectEntry is one item of a listing stream. Exactly one of Info and Err
// is set; a listing terminates after its first error entry.
type ObjectEntry struct {
	Info ObjectInfo
	Err  error
}

// ListOptions bounds a listing to a key prefix. CurrentDirOnly asks the
// store to group results by the next '/' after the prefix, so one listing
// call emulates a single directory level: nested objects surface as a
// single directory entry instead of leaking through as flat keys.
type ListOptions struct {
	Prefix         string
	CurrentDirOnly bool
}

// BucketOptions carries bucket-creation settings. Empty fields fall back to
// provider defaults.
type BucketOptions struct {
	Location     string
	StorageClass string
}

// ObjectRef addresses one object for copy operations.
type ObjectRef struct {
	Bucket string
	Key    string
}

// Copier is a chunk-advance handle for a provider-side copy. Advance moves
// the copy forward by one provider-chosen increment; Done reports whether
// the target object is complete.
type Copier interface {
	Done() bool
	Advance(ctx context.Context) error
}

// Client is a single authenticated session against one object-store
// provider. Implementations must be safe for concurrent use.
//
// Absence is reported through data.ErrNotExist, conflicts through
// data.ErrExist and data.ErrDirectoryNotEmpty; anything else is a provider
// failure wrapped by the implementation.
type Client interface {
	// StatObject returns metadata for the exact key, data.ErrNotExist when
	// no such object is stored.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// ListObjects streams objects under the options' prefix in key order.
	// The channel closes when the listing is exhausted or after the first
	// error entry. Listing a missing bucket yields data.ErrNotExist.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) <-chan ObjectEntry

	// ListBuckets enumerates the buckets visible to this session.
	ListBuckets(ctx context.Context) ([]BucketInfo, error)

	// StatBucket returns metadata for one bucket, data.ErrNotExist when the
	// bucket is missing.
	StatBucket(ctx context.Context, bucket string) (*BucketInfo, error)

	// PutObject stores the payload under the key, replacing any previous
	// object.
	PutObject(ctx context.Context, bucket, key string, payload []byte, contentType string) error

	// CreateBucket creates the bucket, data.ErrExist if it already exists.
	CreateBucket(ctx context.Context, bucket string, opts BucketOptions) error

	// DeleteObject removes the exact key, data.ErrNotExist when absent.
	DeleteObject(ctx context.Context, bucket, key string) error

	// DeleteBucket removes an empty bucket; data.ErrNotExist when absent,
	// data.ErrDirectoryNotEmpty when objects remain.
	DeleteBucket(ctx context.Context, bucket string) error

	// OpenReader opens a ranged read starting at offset.
	OpenReader(ctx context.Context, bucket, key string, offset int64) (io.ReadCloser, error)

	// OpenWriter opens a sequential writer; the object becomes visible when
	// the writer is closed.
	OpenWriter(ctx context.Context, bucket, key string, contentType string) (io.WriteCloser, error)

	// Copy starts a provider-side copy and returns its chunk-advance handle.
	Copy(ctx context.Context, src, dst ObjectRef) (Copier, error)

	// Close releases the session.
	Close(ctx context.Context) error
}
