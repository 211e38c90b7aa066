package gsfs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seqeralabs/nxf-gsfs/data"
	"github.com/seqeralabs/nxf-gsfs/store"
)

// Filter accepts or rejects one directory entry. Rejected entries are
// skipped silently, never buffered.
type Filter func(*Path) bool

// DirStream is a lazy, forward-only child iteration over one emulated
// directory level. It is not restartable: once exhausted or closed it stays
// that way. Use it scanner-style:
//
//	stream, err := fs.List(ctx, dir, nil)
//	for stream.Next() {
//	    child := stream.Path()
//	}
//	err = stream.Err()
//
// Each produced path carries the attribute snapshot taken from the listing
// item, so the first stat of a child costs no extra round trip.
type DirStream struct {
	origin  *Path
	filter  Filter
	entries <-chan store.ObjectEntry
	cancel  context.CancelFunc

	// pending holds the entry pre-fetched at construction time.
	pending *store.ObjectEntry

	current *Path
	err     error
	closed  bool
}

// List opens a child stream under a directory path. The listing is bounded
// to the path's prefix and grouped by the next '/', so nested keys surface
// as single directory entries. Listing a missing bucket fails with
// ErrNotExist before any iteration begins.
//
// Listings are eventually consistent: a just-created object may be absent
// from the stream even though a direct stat already sees it.
func (fs *FileSystem) List(ctx context.Context, dir *Path, filter Filter) (*DirStream, error) {
	if err := fs.checkPath(dir); err != nil {
		return nil, err
	}

	if dir.key.IsGlobalRoot() {
		return fs.listBuckets(ctx, dir, filter)
	}

	// A bare path that resolves to a regular object is not listable.
	if !dir.key.Dir && !dir.key.IsBucketRoot() {
		if _, err := fs.client.StatObject(ctx, dir.key.Bucket, dir.key.Key); err == nil {
			return nil, fmt.Errorf("%w: %s", data.ErrNotDirectory, dir)
		}
	}

	prefix := dir.key.Key
	if prefix != "" {
		prefix += "/"
	}

	ctx, cancel := context.WithCancel(ctx)
	entries := fs.client.ListObjects(ctx, dir.key.Bucket, store.ListOptions{
		Prefix:         prefix,
		CurrentDirOnly: true,
	})

	// Pull the first entry eagerly so a missing bucket surfaces here, not
	// on the first Next call.
	stream := &DirStream{origin: dir, filter: filter, entries: entries, cancel: cancel}
	if entry, ok := <-entries; ok {
		if entry.Err != nil {
			cancel()
			return nil, entry.Err
		}
		stream.pending = &entry
	}

	fs.log.Debug("listing %s", dir)
	return stream, nil
}

// listBuckets serves the global root: children are the buckets visible to
// the current credentials.
func (fs *FileSystem) listBuckets(ctx context.Context, dir *Path, filter Filter) (*DirStream, error) {
	buckets, err := fs.client.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing buckets: %v", data.ErrStore, err)
	}

	out := make(chan store.ObjectEntry, len(buckets))
	for _, b := range buckets {
		out <- store.ObjectEntry{Info: store.ObjectInfo{
			Bucket:     b.Name,
			CreateTime: b.CreateTime,
		}}
	}
	close(out)

	return &DirStream{origin: dir, filter: filter, entries: out, cancel: func() {}}, nil
}

// Next advances to the next accepted entry, reporting false at the end of
// the stream or on error.
func (ds *DirStream) Next() bool {
	if ds.closed || ds.err != nil {
		return false
	}

	for {
		var entry store.ObjectEntry
		if ds.pending != nil {
			entry, ds.pending = *ds.pending, nil
		} else {
			var ok bool
			entry, ok = <-ds.entries
			if !ok {
				return false
			}
		}

		if entry.Err != nil {
			ds.err = entry.Err
			return false
		}

		child := ds.origin.fs.pathFromInfo(entry.Info)
		if child.key.Bucket == ds.origin.key.Bucket && child.key.Key == ds.origin.key.Key {
			// The directory's own marker object lists under its prefix;
			// a directory never contains itself.
			continue
		}
		if ds.filter != nil && !ds.filter(child) {
			continue
		}

		ds.current = child
		return true
	}
}

// Path returns the entry produced by the last successful Next.
func (ds *DirStream) Path() *Path {
	return ds.current
}

// Err returns the first error the stream hit, if any.
func (ds *DirStream) Err() error {
	return ds.err
}

// Close abandons the stream. Further Next calls report false.
func (ds *DirStream) Close() error {
	if ds.closed {
		return nil
	}
	ds.closed = true
	ds.cancel()
	return nil
}

// pathFromInfo maps one listing item to a child path with its attribute
// snapshot attached. Bucket-listing items carry no key and map to bucket
// roots.
func (fs *FileSystem) pathFromInfo(info store.ObjectInfo) *Path {
	if info.Key == "" {
		key := data.ObjectKey{Bucket: strings.ToLower(info.Bucket), Dir: true}
		p := &Path{fs: fs, key: key}
		created := info.CreateTime
		var createdPtr *time.Time
		if !created.IsZero() {
			createdPtr = &created
		}
		return p.attach(data.NewBucketAttributes(key.String(), createdPtr))
	}

	key := data.ObjectKey{
		Bucket: info.Bucket,
		Key:    strings.TrimSuffix(info.Key, "/"),
		Dir:    strings.HasSuffix(info.Key, "/") || info.ContentType == directoryContentType,
	}

	p := &Path{fs: fs, key: key}
	if key.Dir {
		return p.attach(data.NewDirectoryAttributes(key.String()))
	}
	return p.attach(data.NewFileAttributes(key.String(), info.Size, info.CreateTime, info.ModifyTime))
}
