package gsfs

import (
	"context"
	"io"
	"mime"
	"path"
	"sync"

	"github.com/google/uuid"

	"github.com/seqeralabs/nxf-gsfs/data"
)

// WriteChannel is a sequential, write-once channel. The position only ever
// moves forward, repositioning is unsupported, and the remote object is
// finalized by Close. Effective size is whatever was written so far.
type WriteChannel struct {
	mu sync.Mutex

	session string
	fs      *FileSystem
	path    *Path

	wc     io.WriteCloser
	offset int64
	closed bool
}

func (fs *FileSystem) newWriteChannel(ctx context.Context, p *Path) (*WriteChannel, error) {
	contentType := mime.TypeByExtension(path.Ext(p.key.Key))

	wc, err := fs.client.OpenWriter(ctx, p.key.Bucket, p.key.Key, contentType)
	if err != nil {
		return nil, err
	}

	channel := &WriteChannel{
		session: uuid.Must(uuid.NewV7()).String(),
		fs:      fs,
		path:    p,
		wc:      wc,
	}

	fs.log.Debug("write session %s opened for %s", channel.session, p)
	return channel, nil
}

// Size returns how many bytes were written so far.
func (wc *WriteChannel) Size() int64 {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.offset
}

// Write appends at the current position.
func (wc *WriteChannel) Write(p []byte) (int, error) {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	if wc.closed {
		return 0, data.ErrClosed
	}

	n, err := wc.wc.Write(p)
	wc.offset += int64(n)
	return n, err
}

// Seek is unsupported: a write channel is strictly sequential.
func (wc *WriteChannel) Seek(offset int64, whence int) (int64, error) {
	return 0, data.ErrUnsupported
}

// Close finalizes the remote object. The object only becomes visible once
// Close returns without error.
func (wc *WriteChannel) Close() error {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	if wc.closed {
		return data.ErrClosed
	}
	wc.closed = true

	if err := wc.wc.Close(); err != nil {
		return err
	}

	wc.fs.log.Debug("write session %s finalized %s (%d bytes)", wc.session, wc.path, wc.offset)
	return nil
}
