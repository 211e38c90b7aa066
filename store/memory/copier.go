package memory

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/seqeralabs/nxf-gsfs/data"
	"github.com/seqeralabs/nxf-gsfs/store"
)

// Copy starts a chunked server-side copy. Each Advance moves one chunk of
// the source payload; the target object materializes on the final chunk so
// observers never see a partial copy.
func (s *Store) Copy(ctx context.Context, src, dst store.ObjectRef) (store.Copier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.bucket(src.Bucket)
	if err != nil {
		return nil, err
	}

	obj, ok := b.objects.Get(src.Key)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", data.ErrNotExist, src.Bucket, src.Key)
	}
	if _, err := s.bucket(dst.Bucket); err != nil {
		return nil, err
	}

	return &memCopier{
		token:       uuid.Must(uuid.NewV7()).String(),
		store:       s,
		dst:         dst,
		payload:     bytes.Clone(obj.payload),
		contentType: obj.contentType,
		chunkSize:   s.copyChunkSize,
	}, nil
}

type memCopier struct {
	token       string
	store       *Store
	dst         store.ObjectRef
	payload     []byte
	contentType string
	chunkSize   int

	written int
	done    bool
}

func (c *memCopier) Done() bool {
	return c.done
}

func (c *memCopier) Advance(ctx context.Context) error {
	if c.done {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.written += c.chunkSize
	if c.written >= len(c.payload) {
		c.done = true

		c.store.mu.Lock()
		defer c.store.mu.Unlock()
		return c.store.putLocked(c.dst.Bucket, c.dst.Key, c.payload, c.contentType)
	}
	return nil
}
