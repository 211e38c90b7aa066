// Package minio adapts any S3-interoperable endpoint (including GCS
// interop) to the store.Client boundary using minio-go.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/seqeralabs/nxf-gsfs/data"
	"github.com/seqeralabs/nxf-gsfs/log"
	"github.com/seqeralabs/nxf-gsfs/store"
)

// Options configures the session. Retry and transport tuning stay inside
// minio-go; this layer adds none of its own.
type Options struct {
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string

	Logger *log.Logger
}

type Store struct {
	client *minio.Client
	log    *log.Logger
}

// New opens a session against the endpoint.
func New(endpoint string, opts Options) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	return &Store{client: client, log: logger.Named("minio")}, nil
}

// mapError translates provider error codes into the shared taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: %v", data.ErrNotExist, err)
	case "BucketNotEmpty":
		return fmt.Errorf("%w: %v", data.ErrDirectoryNotEmpty, err)
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
		return fmt.Errorf("%w: %v", data.ErrExist, err)
	}
	return fmt.Errorf("%w: %v", data.ErrStore, err)
}

func (s *Store) StatObject(ctx context.Context, bucket, key string) (*store.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err)
	}

	mapped := toObjectInfo(bucket, info)
	return &mapped, nil
}

func (s *Store) ListObjects(ctx context.Context, bucket string, opts store.ListOptions) <-chan store.ObjectEntry {
	out := make(chan store.ObjectEntry)

	go func() {
		defer close(out)

		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			out <- store.ObjectEntry{Err: mapError(err)}
			return
		}
		if !exists {
			out <- store.ObjectEntry{Err: fmt.Errorf("%w: bucket %q", data.ErrNotExist, bucket)}
			return
		}

		objects := s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
			Prefix: opts.Prefix,
			// Non-recursive listing groups nested keys by the next '/',
			// which is exactly the current-directory mode.
			Recursive: !opts.CurrentDirOnly,
		})

		for obj := range objects {
			if obj.Err != nil {
				out <- store.ObjectEntry{Err: mapError(obj.Err)}
				return
			}
			select {
			case out <- store.ObjectEntry{Info: toObjectInfo(bucket, obj)}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (s *Store) ListBuckets(ctx context.Context) ([]store.BucketInfo, error) {
	buckets, err := s.client.ListBuckets(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	infos := make([]store.BucketInfo, 0, len(buckets))
	for _, b := range buckets {
		infos = append(infos, store.BucketInfo{Name: b.Name, CreateTime: b.CreationDate})
	}
	return infos, nil
}

func (s *Store) StatBucket(ctx context.Context, bucket string) (*store.BucketInfo, error) {
	// The S3 surface has no single-bucket stat carrying metadata, so scan
	// the bucket listing for its creation date.
	buckets, err := s.ListBuckets(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range buckets {
		if b.Name == bucket {
			return &b, nil
		}
	}
	return nil, fmt.Errorf("%w: bucket %q", data.ErrNotExist, bucket)
}

func (s *Store) PutObject(ctx context.Context, bucket, key string, payload []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return mapError(err)
}

func (s *Store) CreateBucket(ctx context.Context, bucket string, opts store.BucketOptions) error {
	// The storage class is a per-object property on the S3 surface, so
	// BucketOptions.StorageClass has no effect here.
	err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: opts.Location})
	return mapError(err)
}

func (s *Store) DeleteObject(ctx context.Context, bucket, key string) error {
	// RemoveObject succeeds silently on missing keys; stat first so absence
	// is reported.
	if _, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		return mapError(err)
	}
	return mapError(s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}))
}

func (s *Store) DeleteBucket(ctx context.Context, bucket string) error {
	return mapError(s.client.RemoveBucket(ctx, bucket))
}

func (s *Store) OpenReader(ctx context.Context, bucket, key string, offset int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if offset > 0 {
		if err := opts.SetRange(offset, 0); err != nil {
			return nil, fmt.Errorf("%w: %v", data.ErrInvalid, err)
		}
	}

	obj, err := s.client.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return nil, mapError(err)
	}

	// GetObject defers the request; probe so absence surfaces at open time.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapError(err)
	}
	return obj, nil
}

func (s *Store) OpenWriter(ctx context.Context, bucket, key string, contentType string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)

	go func() {
		_, err := s.client.PutObject(ctx, bucket, key, pr, -1, minio.PutObjectOptions{
			ContentType: contentType,
		})
		// Unblock the writing side if the upload dies mid-stream.
		pr.CloseWithError(err)
		done <- mapError(err)
	}()

	s.log.Debug("streaming upload started for %s/%s", bucket, key)
	return &pipeWriter{pw: pw, done: done}, nil
}

// pipeWriter finalizes the streamed upload on Close.
type pipeWriter struct {
	pw     *io.PipeWriter
	done   chan error
	closed bool
}

func (w *pipeWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, data.ErrClosed
	}
	return w.pw.Write(p)
}

func (w *pipeWriter) Close() error {
	if w.closed {
		return data.ErrClosed
	}
	w.closed = true

	if err := w.pw.Close(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return err
	}
	return <-w.done
}

func (s *Store) Copy(ctx context.Context, src, dst store.ObjectRef) (store.Copier, error) {
	if _, err := s.client.StatObject(ctx, src.Bucket, src.Key, minio.StatObjectOptions{}); err != nil {
		return nil, mapError(err)
	}
	return &serverCopier{store: s, src: src, dst: dst}, nil
}

// serverCopier advances in one provider-side chunk: the S3 surface performs
// the whole transfer inside a single copy call.
type serverCopier struct {
	store *Store
	src   store.ObjectRef
	dst   store.ObjectRef
	done  bool
}

func (c *serverCopier) Done() bool {
	return c.done
}

func (c *serverCopier) Advance(ctx context.Context) error {
	if c.done {
		return nil
	}

	_, err := c.store.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: c.dst.Bucket, Object: c.dst.Key},
		minio.CopySrcOptions{Bucket: c.src.Bucket, Object: c.src.Key},
	)
	if err != nil {
		return mapError(err)
	}

	c.done = true
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

func toObjectInfo(bucket string, info minio.ObjectInfo) store.ObjectInfo {
	return store.ObjectInfo{
		Bucket:      bucket,
		Key:         info.Key,
		Size:        info.Size,
		ContentType: info.ContentType,
		ETag:        info.ETag,
		CreateTime:  info.LastModified,
		ModifyTime:  info.LastModified,
	}
}
