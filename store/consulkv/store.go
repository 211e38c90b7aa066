// Package consulkv provides a store.Client over the Consul key/value
// store. It is intended for small configuration-sized objects shared
// across a cluster, not for bulk data.
//
// Layout under the configured key prefix:
//
//	<prefix>/buckets/<bucket>            bucket record (JSON)
//	<prefix>/meta/<bucket>/<key>         object metadata (JSON)
//	<prefix>/data/<bucket>/<key>         object payload (raw bytes)
package consulkv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/seqeralabs/nxf-gsfs/data"
	"github.com/seqeralabs/nxf-gsfs/store"
)

const DefaultPrefix = "gsfs"

type Options struct {
	// Address of the Consul agent, e.g. "127.0.0.1:8500".
	// Empty uses the api client defaults.
	Address string
	// Token for ACL-enabled clusters.
	Token string
	// Prefix under which all keys are stored. Defaults to DefaultPrefix.
	Prefix string
}

type Store struct {
	kv     *api.KV
	prefix string
}

type bucketRecord struct {
	Location     string    `json:"location,omitempty"`
	StorageClass string    `json:"storage_class,omitempty"`
	CreateTime   time.Time `json:"create_time"`
}

type objectRecord struct {
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	CreateTime  time.Time `json:"create_time"`
	ModifyTime  time.Time `json:"modify_time"`
}

func New(opts Options) (*Store, error) {
	config := api.DefaultConfig()
	if opts.Address != "" {
		config.Address = opts.Address
	}
	if opts.Token != "" {
		config.Token = opts.Token
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Store{
		kv:     client.KV(),
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (s *Store) bucketKey(bucket string) string {
	return s.prefix + "/buckets/" + bucket
}

func (s *Store) metaKey(bucket, key string) string {
	return s.prefix + "/meta/" + bucket + "/" + key
}

func (s *Store) dataKey(bucket, key string) string {
	return s.prefix + "/data/" + bucket + "/" + key
}

func (s *Store) getBucket(ctx context.Context, bucket string) (*bucketRecord, error) {
	pair, _, err := s.kv.Get(s.bucketKey(bucket), (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("%w: bucket %q", data.ErrNotExist, bucket)
	}

	var record bucketRecord
	if err := json.Unmarshal(pair.Value, &record); err != nil {
		return nil, fmt.Errorf("%w: corrupt bucket record %q: %v", data.ErrStore, bucket, err)
	}
	return &record, nil
}

func (s *Store) getObject(ctx context.Context, bucket, key string) (*objectRecord, error) {
	pair, _, err := s.kv.Get(s.metaKey(bucket, key), (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("%w: %s/%s", data.ErrNotExist, bucket, key)
	}

	var record objectRecord
	if err := json.Unmarshal(pair.Value, &record); err != nil {
		return nil, fmt.Errorf("%w: corrupt object record %s/%s: %v", data.ErrStore, bucket, key, err)
	}
	return &record, nil
}

func (s *Store) StatObject(ctx context.Context, bucket, key string) (*store.ObjectInfo, error) {
	if _, err := s.getBucket(ctx, bucket); err != nil {
		return nil, err
	}

	record, err := s.getObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	return &store.ObjectInfo{
		Bucket:      bucket,
		Key:         key,
		Size:        record.Size,
		ContentType: record.ContentType,
		CreateTime:  record.CreateTime,
		ModifyTime:  record.ModifyTime,
	}, nil
}

func (s *Store) ListObjects(ctx context.Context, bucket string, opts store.ListOptions) <-chan store.ObjectEntry {
	out := make(chan store.ObjectEntry)

	go func() {
		defer close(out)

		if _, err := s.getBucket(ctx, bucket); err != nil {
			out <- store.ObjectEntry{Err: err}
			return
		}

		base := s.prefix + "/meta/" + bucket + "/"
		pairs, _, err := s.kv.List(base+opts.Prefix, (&api.QueryOptions{}).WithContext(ctx))
		if err != nil {
			out <- store.ObjectEntry{Err: fmt.Errorf("%w: %v", data.ErrStore, err)}
			return
		}

		seenDirs := make(map[string]struct{})
		for _, pair := range pairs {
			key := strings.TrimPrefix(pair.Key, base)

			var record objectRecord
			if err := json.Unmarshal(pair.Value, &record); err != nil {
				out <- store.ObjectEntry{Err: fmt.Errorf("%w: corrupt object record %s/%s: %v", data.ErrStore, bucket, key, err)}
				return
			}

			info := store.ObjectInfo{
				Bucket:      bucket,
				Key:         key,
				Size:        record.Size,
				ContentType: record.ContentType,
				CreateTime:  record.CreateTime,
				ModifyTime:  record.ModifyTime,
			}
			if opts.CurrentDirOnly {
				rest := strings.TrimPrefix(key, opts.Prefix)
				if head, _, nested := strings.Cut(rest, "/"); nested && head != "" {
					common := opts.Prefix + head + "/"
					if _, seen := seenDirs[common]; seen {
						continue
					}
					seenDirs[common] = struct{}{}
					info = store.ObjectInfo{Bucket: bucket, Key: common}
				}
			}

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
	base := s.prefix + "/buckets/"
	pairs, _, err := s.kv.List(base, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrStore, err)
	}

	var infos []store.BucketInfo
	for _, pair := range pairs {
		var record bucketRecord
		if err := json.Unmarshal(pair.Value, &record); err != nil {
			continue
		}
		infos = append(infos, store.BucketInfo{
			Name:       strings.TrimPrefix(pair.Key, base),
			CreateTime: record.CreateTime,
		})
	}
	return infos, nil
}

func (s *Store) StatBucket(ctx context.Context, bucket string) (*store.BucketInfo, error) {
	record, err := s.getBucket(ctx, bucket)
	if err != nil {
		return nil, err
	}
	return &store.BucketInfo{Name: bucket, CreateTime: record.CreateTime}, nil
}

func (s *Store) PutObject(ctx context.Context, bucket, key string, payload []byte, contentType string) error {
	if _, err := s.getBucket(ctx, bucket); err != nil {
		return err
	}

	now := time.Now()
	record := objectRecord{
		Size:        int64(len(payload)),
		ContentType: contentType,
		CreateTime:  now,
		ModifyTime:  now,
	}
	if existing, err := s.getObject(ctx, bucket, key); err == nil {
		record.CreateTime = existing.CreateTime
	}

	opts := (&api.WriteOptions{}).WithContext(ctx)
	if _, err := s.kv.Put(&api.KVPair{Key: s.dataKey(bucket, key), Value: payload}, opts); err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}

	meta, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	if _, err := s.kv.Put(&api.KVPair{Key: s.metaKey(bucket, key), Value: meta}, opts); err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	return nil
}

func (s *Store) CreateBucket(ctx context.Context, bucket string, opts store.BucketOptions) error {
	if _, err := s.getBucket(ctx, bucket); err == nil {
		return fmt.Errorf("%w: bucket %q", data.ErrExist, bucket)
	}

	record := bucketRecord{
		Location:     opts.Location,
		StorageClass: opts.StorageClass,
		CreateTime:   time.Now(),
	}
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}

	pair := &api.KVPair{Key: s.bucketKey(bucket), Value: value, ModifyIndex: 0}
	ok, _, err := s.kv.CAS(pair, (&api.WriteOptions{}).WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	if !ok {
		return fmt.Errorf("%w: bucket %q", data.ErrExist, bucket)
	}
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, bucket, key string) error {
	if _, err := s.getBucket(ctx, bucket); err != nil {
		return err
	}
	if _, err := s.getObject(ctx, bucket, key); err != nil {
		return err
	}

	opts := (&api.WriteOptions{}).WithContext(ctx)
	if _, err := s.kv.Delete(s.metaKey(bucket, key), opts); err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	if _, err := s.kv.Delete(s.dataKey(bucket, key), opts); err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	return nil
}

func (s *Store) DeleteBucket(ctx context.Context, bucket string) error {
	if _, err := s.getBucket(ctx, bucket); err != nil {
		return err
	}

	keys, _, err := s.kv.Keys(s.prefix+"/meta/"+bucket+"/", "", (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	if len(keys) > 0 {
		return fmt.Errorf("%w: bucket %q", data.ErrDirectoryNotEmpty, bucket)
	}

	if _, err := s.kv.Delete(s.bucketKey(bucket), (&api.WriteOptions{}).WithContext(ctx)); err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	return nil
}

func (s *Store) OpenReader(ctx context.Context, bucket, key string, offset int64) (io.ReadCloser, error) {
	if _, err := s.getObject(ctx, bucket, key); err != nil {
		return nil, err
	}

	pair, _, err := s.kv.Get(s.dataKey(bucket, key), (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrStore, err)
	}

	var payload []byte
	if pair != nil {
		payload = pair.Value
	}
	if offset > int64(len(payload)) {
		offset = int64(len(payload))
	}
	return io.NopCloser(strings.NewReader(string(payload[offset:]))), nil
}

func (s *Store) OpenWriter(ctx context.Context, bucket, key string, contentType string) (io.WriteCloser, error) {
	if _, err := s.getBucket(ctx, bucket); err != nil {
		return nil, err
	}

	return &kvWriter{
		ctx:         ctx,
		store:       s,
		bucket:      bucket,
		key:         key,
		contentType: contentType,
	}, nil
}

type kvWriter struct {
	ctx         context.Context
	store       *Store
	bucket      string
	key         string
	contentType string
	payload     []byte
	closed      bool
}

func (w *kvWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, data.ErrClosed
	}
	w.payload = append(w.payload, p...)
	return len(p), nil
}

func (w *kvWriter) Close() error {
	if w.closed {
		return data.ErrClosed
	}
	w.closed = true
	return w.store.PutObject(w.ctx, w.bucket, w.key, w.payload, w.contentType)
}

func (s *Store) Copy(ctx context.Context, src, dst store.ObjectRef) (store.Copier, error) {
	if _, err := s.StatObject(ctx, src.Bucket, src.Key); err != nil {
		return nil, err
	}
	if _, err := s.getBucket(ctx, dst.Bucket); err != nil {
		return nil, err
	}
	return &kvCopier{store: s, src: src, dst: dst}, nil
}

type kvCopier struct {
	store *Store
	src   store.ObjectRef
	dst   store.ObjectRef
	done  bool
}

func (c *kvCopier) Done() bool {
	return c.done
}

func (c *kvCopier) Advance(ctx context.Context) error {
	if c.done {
		return nil
	}

	rc, err := c.store.OpenReader(ctx, c.src.Bucket, c.src.Key, 0)
	if err != nil {
		return err
	}
	payload, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}

	record, err := c.store.getObject(ctx, c.src.Bucket, c.src.Key)
	if err != nil {
		return err
	}
	if err := c.store.PutObject(ctx, c.dst.Bucket, c.dst.Key, payload, record.ContentType); err != nil {
		return err
	}

	c.done = true
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}
