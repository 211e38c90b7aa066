package gsfs

import (
	"context"
	"io"
	"sync"

	"github.com/seqeralabs/nxf-gsfs/data"
)

// ReadChannel is a seekable read channel over one object. The size is
// frozen at open time from the object's metadata and does not reflect
// concurrent writers. Seeking re-issues the underlying ranged read from the
// new offset on the next Read.
type ReadChannel struct {
	mu sync.Mutex

	fs   *FileSystem
	path *Path
	ctx  context.Context

	size   int64
	offset int64
	rc     io.ReadCloser
	closed bool
}

func (fs *FileSystem) newReadChannel(ctx context.Context, p *Path) (*ReadChannel, error) {
	info, err := fs.client.StatObject(ctx, p.key.Bucket, p.key.Key)
	if err != nil {
		return nil, err
	}

	return &ReadChannel{
		fs:   fs,
		path: p,
		ctx:  ctx,
		size: info.Size,
	}, nil
}

// Size returns the object size captured when the channel was opened.
func (rc *ReadChannel) Size() int64 {
	return rc.size
}

// Read reads from the current offset, advancing it by the bytes read.
func (rc *ReadChannel) Read(p []byte) (int, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		return 0, data.ErrClosed
	}
	if rc.offset >= rc.size {
		return 0, io.EOF
	}

	if rc.rc == nil {
		reader, err := rc.fs.client.OpenReader(rc.ctx, rc.path.key.Bucket, rc.path.key.Key, rc.offset)
		if err != nil {
			return 0, err
		}
		rc.rc = reader
	}

	n, err := rc.rc.Read(p)
	rc.offset += int64(n)
	return n, err
}

// Seek repositions the channel. SeekEnd is relative to the frozen size.
func (rc *ReadChannel) Seek(offset int64, whence int) (int64, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		return 0, data.ErrClosed
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = rc.offset + offset
	case io.SeekEnd:
		target = rc.size + offset
	default:
		return 0, data.ErrInvalid
	}

	if target < 0 {
		return 0, data.ErrInvalid
	}
	if target == rc.offset {
		return target, nil
	}

	// Drop the in-flight ranged read; the next Read reopens at the new
	// offset.
	if rc.rc != nil {
		if err := rc.rc.Close(); err != nil {
			return 0, err
		}
		rc.rc = nil
	}

	rc.offset = target
	return target, nil
}

// Close releases the underlying ranged read, if one is open.
func (rc *ReadChannel) Close() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		return data.ErrClosed
	}
	rc.closed = true

	if rc.rc != nil {
		return rc.rc.Close()
	}
	return nil
}
