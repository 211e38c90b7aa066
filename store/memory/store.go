// Package memory provides an in-memory store.Client used as the canonical
// test double. Keys are held in an ordered b-tree so prefix listings behave
// like a real provider, including current-directory grouping.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/btree"

	"github.com/seqeralabs/nxf-gsfs/data"
	"github.com/seqeralabs/nxf-gsfs/store"
)

type memObject struct {
	payload     []byte
	contentType string
	createTime  time.Time
	modifyTime  time.Time
}

type memBucket struct {
	objects    *btree.Map[string, *memObject]
	createTime time.Time
	location   string
	class      string
}

// Store is an in-memory object store. The zero value is not usable; use New.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]*memBucket

	// copyChunkSize bounds how many bytes one Copier.Advance transfers.
	copyChunkSize int
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		buckets:       make(map[string]*memBucket),
		copyChunkSize: 1 << 20,
	}
}

// SetCopyChunkSize overrides how many bytes each copy chunk transfers.
// Small values force multi-chunk copies in tests.
func (s *Store) SetCopyChunkSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.copyChunkSize = n
	}
}

func (s *Store) bucket(name string) (*memBucket, error) {
	b, ok := s.buckets[name]
	if !ok {
		return nil, fmt.Errorf("%w: bucket %q", data.ErrNotExist, name)
	}
	return b, nil
}

func (s *Store) StatObject(ctx context.Context, bucket, key string) (*store.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}

	obj, ok := b.objects.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", data.ErrNotExist, bucket, key)
	}

	info := toObjectInfo(bucket, key, obj)
	return &info, nil
}

func (s *Store) ListObjects(ctx context.Context, bucket string, opts store.ListOptions) <-chan store.ObjectEntry {
	out := make(chan store.ObjectEntry)

	go func() {
		defer close(out)

		// Snapshot under lock so iteration never races with writers.
		s.mu.RLock()
		b, err := s.bucket(bucket)
		if err != nil {
			s.mu.RUnlock()
			out <- store.ObjectEntry{Err: err}
			return
		}

		var infos []store.ObjectInfo
		seenDirs := make(map[string]struct{})
		b.objects.Ascend(opts.Prefix, func(key string, obj *memObject) bool {
			if !strings.HasPrefix(key, opts.Prefix) {
				return false
			}
			if opts.CurrentDirOnly {
				rest := strings.TrimPrefix(key, opts.Prefix)
				if head, _, nested := strings.Cut(rest, "/"); nested && head != "" {
					// Nested key: surface its common prefix once as a
					// synthetic directory entry.
					common := opts.Prefix + head + "/"
					if _, seen := seenDirs[common]; !seen {
						seenDirs[common] = struct{}{}
						infos = append(infos, store.ObjectInfo{Bucket: bucket, Key: common})
					}
					return true
				}
			}
			infos = append(infos, toObjectInfo(bucket, key, obj))
			return true
		})
		s.mu.RUnlock()

		for _, info := range infos {
			select {
			case out <- store.ObjectEntry{Info: info}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (s *Store) ListBuckets(ctx context.Context) ([]store.BucketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]store.BucketInfo, 0, len(s.buckets))
	for name, b := range s.buckets {
		infos = append(infos, store.BucketInfo{Name: name, CreateTime: b.createTime})
	}
	return infos, nil
}

func (s *Store) StatBucket(ctx context.Context, bucket string) (*store.BucketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}
	return &store.BucketInfo{Name: bucket, CreateTime: b.createTime}, nil
}

func (s *Store) PutObject(ctx context.Context, bucket, key string, payload []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.putLocked(bucket, key, payload, contentType)
}

func (s *Store) putLocked(bucket, key string, payload []byte, contentType string) error {
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}

	now := time.Now()
	obj := &memObject{
		payload:     bytes.Clone(payload),
		contentType: contentType,
		createTime:  now,
		modifyTime:  now,
	}
	if prev, ok := b.objects.Get(key); ok {
		obj.createTime = prev.createTime
	}
	b.objects.Set(key, obj)
	return nil
}

func (s *Store) CreateBucket(ctx context.Context, bucket string, opts store.BucketOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[bucket]; ok {
		return fmt.Errorf("%w: bucket %q", data.ErrExist, bucket)
	}

	s.buckets[bucket] = &memBucket{
		objects:    btree.NewMap[string, *memObject](0),
		createTime: time.Now(),
		location:   opts.Location,
		class:      opts.StorageClass,
	}
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}

	if _, ok := b.objects.Delete(key); !ok {
		return fmt.Errorf("%w: %s/%s", data.ErrNotExist, bucket, key)
	}
	return nil
}

func (s *Store) DeleteBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}

	if b.objects.Len() > 0 {
		return fmt.Errorf("%w: bucket %q", data.ErrDirectoryNotEmpty, bucket)
	}

	delete(s.buckets, bucket)
	return nil
}

func (s *Store) OpenReader(ctx context.Context, bucket, key string, offset int64) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}

	obj, ok := b.objects.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", data.ErrNotExist, bucket, key)
	}
	if offset > int64(len(obj.payload)) {
		offset = int64(len(obj.payload))
	}

	return io.NopCloser(bytes.NewReader(obj.payload[offset:])), nil
}

func (s *Store) OpenWriter(ctx context.Context, bucket, key string, contentType string) (io.WriteCloser, error) {
	s.mu.RLock()
	_, err := s.bucket(bucket)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	return &memWriter{
		store:       s,
		bucket:      bucket,
		key:         key,
		contentType: contentType,
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name := range s.buckets {
		delete(s.buckets, name)
	}
	return nil
}

// memWriter buffers until Close, matching the visibility rule of real
// providers: the object appears only once the upload finishes.
type memWriter struct {
	store       *Store
	bucket      string
	key         string
	contentType string
	buf         bytes.Buffer
	closed      bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, data.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	if w.closed {
		return data.ErrClosed
	}
	w.closed = true

	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	return w.store.putLocked(w.bucket, w.key, w.buf.Bytes(), w.contentType)
}

func toObjectInfo(bucket, key string, obj *memObject) store.ObjectInfo {
	return store.ObjectInfo{
		Bucket:      bucket,
		Key:         key,
		Size:        int64(len(obj.payload)),
		ContentType: obj.contentType,
		CreateTime:  obj.createTime,
		ModifyTime:  obj.modifyTime,
	}
}
