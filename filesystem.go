// Package gsfs adapts a flat, eventually-consistent object store to a
// hierarchical-path filesystem abstraction. Buckets become roots,
// '/'-separated object keys become nested paths, and directories are
// synthesized from key prefixes: either a zero-byte trailing-slash marker
// object or, implicitly, any longer key sharing the prefix.
package gsfs

import (
	"fmt"
	"strings"

	"github.com/seqeralabs/nxf-gsfs/data"
	"github.com/seqeralabs/nxf-gsfs/log"
	"github.com/seqeralabs/nxf-gsfs/store"
)

// directoryContentType marks zero-byte directory placeholder objects.
const directoryContentType = "application/x-directory"

// FileSystem is the per-bucket handle. It owns no goroutines; every
// operation is one synchronous round of store calls. Handles are created
// through a Registry and never explicitly closed (Close is a no-op).
type FileSystem struct {
	bucket string
	client store.Client
	opts   *Options
	log    *log.Logger
}

func newFileSystem(bucket string, client store.Client, opts *Options) *FileSystem {
	return &FileSystem{
		bucket: bucket,
		client: client,
		opts:   opts,
		log:    opts.Logger.Named(bucket),
	}
}

// Bucket returns the bucket this filesystem is rooted at, or the global-root
// sentinel for the all-buckets filesystem.
func (fs *FileSystem) Bucket() string {
	return fs.bucket
}

// IsGlobalRoot reports whether this is the all-buckets filesystem.
func (fs *FileSystem) IsGlobalRoot() bool {
	return fs.bucket == data.GlobalRootBucket
}

// Store exposes the underlying store session.
func (fs *FileSystem) Store() store.Client {
	return fs.client
}

// Root returns the bucket-root path of this filesystem.
func (fs *FileSystem) Root() *Path {
	key, _ := data.NewObjectKey(fs.bucket, "")
	if fs.IsGlobalRoot() {
		key = data.ObjectKey{Bucket: data.GlobalRootBucket, Dir: true}
	}
	return &Path{fs: fs, key: key}
}

// NewPath builds a path inside this filesystem from one or more raw
// segments. Leading-slash input is interpreted as bucket-qualified and must
// name this filesystem's bucket.
func (fs *FileSystem) NewPath(first string, more ...string) (*Path, error) {
	if !strings.HasPrefix(first, "/") {
		if fs.IsGlobalRoot() {
			return nil, fmt.Errorf("%w: the root filesystem holds no objects", data.ErrInvalidPath)
		}
		key, err := data.ParsePath("/"+fs.bucket+"/"+first, more...)
		if err != nil {
			return nil, err
		}
		return &Path{fs: fs, key: key}, nil
	}

	key, err := data.ParsePath(first, more...)
	if err != nil {
		return nil, err
	}
	if key.Bucket != fs.bucket {
		return nil, fmt.Errorf("%w: path %q does not belong to bucket %q", data.ErrPathMismatch, key, fs.bucket)
	}
	return &Path{fs: fs, key: key}, nil
}

// Close is a no-op: the store session is shared and owned by the Registry.
func (fs *FileSystem) Close() error {
	return nil
}

// checkPath verifies that the path was created by this filesystem instance.
// Two paths naming the same object through different handles are distinct.
func (fs *FileSystem) checkPath(p *Path) error {
	if p == nil || p.fs != fs {
		return fmt.Errorf("%w: path not owned by this filesystem", data.ErrPathMismatch)
	}
	return nil
}
