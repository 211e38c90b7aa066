// Package sqlite provides an embedded store.Client over a local SQLite
// database, useful for single-node tooling and offline tests that need a
// persistent namespace.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/seqeralabs/nxf-gsfs/data"
	"github.com/seqeralabs/nxf-gsfs/store"
)

type Store struct {
	db *sql.DB
}

// New opens (or creates) the database. Use ":memory:" for a throwaway
// namespace.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// One connection keeps ":memory:" databases coherent across the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS buckets (
			name          TEXT PRIMARY KEY,
			location      TEXT NOT NULL DEFAULT '',
			storage_class TEXT NOT NULL DEFAULT '',
			create_time   INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS objects (
			bucket       TEXT NOT NULL,
			key          TEXT NOT NULL,
			payload      BLOB NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			create_time  INTEGER NOT NULL,
			modify_time  INTEGER NOT NULL,
			PRIMARY KEY (bucket, key)
		)`)
	return err
}

func (s *Store) bucketExists(ctx context.Context, bucket string) error {
	var name string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM buckets WHERE name = ?", bucket).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: bucket %q", data.ErrNotExist, bucket)
	}
	return err
}

func (s *Store) StatObject(ctx context.Context, bucket, key string) (*store.ObjectInfo, error) {
	if err := s.bucketExists(ctx, bucket); err != nil {
		return nil, err
	}

	var (
		size             int64
		contentType      string
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT length(payload), content_type, create_time, modify_time
		FROM objects WHERE bucket = ? AND key = ?`, bucket, key).
		Scan(&size, &contentType, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", data.ErrNotExist, bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrStore, err)
	}

	return &store.ObjectInfo{
		Bucket:      bucket,
		Key:         key,
		Size:        size,
		ContentType: contentType,
		CreateTime:  time.UnixMilli(created),
		ModifyTime:  time.UnixMilli(updated),
	}, nil
}

func (s *Store) ListObjects(ctx context.Context, bucket string, opts store.ListOptions) <-chan store.ObjectEntry {
	out := make(chan store.ObjectEntry)

	go func() {
		defer close(out)

		if err := s.bucketExists(ctx, bucket); err != nil {
			out <- store.ObjectEntry{Err: err}
			return
		}

		rows, err := s.db.QueryContext(ctx, `
			SELECT key, length(payload), content_type, create_time, modify_time
			FROM objects WHERE bucket = ? AND key >= ? ORDER BY key`, bucket, opts.Prefix)
		if err != nil {
			out <- store.ObjectEntry{Err: fmt.Errorf("%w: %v", data.ErrStore, err)}
			return
		}
		defer rows.Close()

		seenDirs := make(map[string]struct{})
		for rows.Next() {
			var (
				key, contentType string
				size             int64
				created, updated int64
			)
			if err := rows.Scan(&key, &size, &contentType, &created, &updated); err != nil {
				out <- store.ObjectEntry{Err: fmt.Errorf("%w: %v", data.ErrStore, err)}
				return
			}
			if !strings.HasPrefix(key, opts.Prefix) {
				// Keys sort after the prefix range, nothing further matches.
				return
			}

			info := store.ObjectInfo{
				Bucket:      bucket,
				Key:         key,
				Size:        size,
				ContentType: contentType,
				CreateTime:  time.UnixMilli(created),
				ModifyTime:  time.UnixMilli(updated),
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
		if err := rows.Err(); err != nil {
			out <- store.ObjectEntry{Err: fmt.Errorf("%w: %v", data.ErrStore, err)}
		}
	}()

	return out
}

func (s *Store) ListBuckets(ctx context.Context) ([]store.BucketInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, create_time FROM buckets ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	defer rows.Close()

	var infos []store.BucketInfo
	for rows.Next() {
		var (
			name    string
			created int64
		)
		if err := rows.Scan(&name, &created); err != nil {
			return nil, fmt.Errorf("%w: %v", data.ErrStore, err)
		}
		infos = append(infos, store.BucketInfo{Name: name, CreateTime: time.UnixMilli(created)})
	}
	return infos, rows.Err()
}

func (s *Store) StatBucket(ctx context.Context, bucket string) (*store.BucketInfo, error) {
	var created int64
	err := s.db.QueryRowContext(ctx, "SELECT create_time FROM buckets WHERE name = ?", bucket).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: bucket %q", data.ErrNotExist, bucket)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	return &store.BucketInfo{Name: bucket, CreateTime: time.UnixMilli(created)}, nil
}

func (s *Store) PutObject(ctx context.Context, bucket, key string, payload []byte, contentType string) error {
	if err := s.bucketExists(ctx, bucket); err != nil {
		return err
	}
	if payload == nil {
		payload = []byte{}
	}

	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (bucket, key, payload, content_type, create_time, modify_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (bucket, key) DO UPDATE SET
			payload = excluded.payload,
			content_type = excluded.content_type,
			modify_time = excluded.modify_time`,
		bucket, key, payload, contentType, now, now)
	if err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	return nil
}

func (s *Store) CreateBucket(ctx context.Context, bucket string, opts store.BucketOptions) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO buckets (name, location, storage_class, create_time)
		VALUES (?, ?, ?, ?)`,
		bucket, opts.Location, opts.StorageClass, time.Now().UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%w: bucket %q", data.ErrExist, bucket)
		}
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := s.bucketExists(ctx, bucket); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM objects WHERE bucket = ? AND key = ?", bucket, key)
	if err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", data.ErrNotExist, bucket, key)
	}
	return nil
}

func (s *Store) DeleteBucket(ctx context.Context, bucket string) error {
	if err := s.bucketExists(ctx, bucket); err != nil {
		return err
	}

	var remaining int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM objects WHERE bucket = ?", bucket).Scan(&remaining); err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	if remaining > 0 {
		return fmt.Errorf("%w: bucket %q", data.ErrDirectoryNotEmpty, bucket)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM buckets WHERE name = ?", bucket); err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}
	return nil
}

func (s *Store) OpenReader(ctx context.Context, bucket, key string, offset int64) (io.ReadCloser, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM objects WHERE bucket = ? AND key = ?", bucket, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", data.ErrNotExist, bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrStore, err)
	}

	if offset > int64(len(payload)) {
		offset = int64(len(payload))
	}
	return io.NopCloser(strings.NewReader(string(payload[offset:]))), nil
}

func (s *Store) OpenWriter(ctx context.Context, bucket, key string, contentType string) (io.WriteCloser, error) {
	if err := s.bucketExists(ctx, bucket); err != nil {
		return nil, err
	}

	return &rowWriter{
		ctx:         ctx,
		store:       s,
		bucket:      bucket,
		key:         key,
		contentType: contentType,
	}, nil
}

// rowWriter buffers the payload and upserts the row on Close, so the object
// only becomes visible once the write finishes.
type rowWriter struct {
	ctx         context.Context
	store       *Store
	bucket      string
	key         string
	contentType string
	payload     []byte
	closed      bool
}

func (w *rowWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, data.ErrClosed
	}
	w.payload = append(w.payload, p...)
	return len(p), nil
}

func (w *rowWriter) Close() error {
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
	if err := s.bucketExists(ctx, dst.Bucket); err != nil {
		return nil, err
	}
	return &rowCopier{store: s, src: src, dst: dst}, nil
}

// rowCopier completes in one advance: the copy is a single INSERT..SELECT.
type rowCopier struct {
	store *Store
	src   store.ObjectRef
	dst   store.ObjectRef
	done  bool
}

func (c *rowCopier) Done() bool {
	return c.done
}

func (c *rowCopier) Advance(ctx context.Context) error {
	if c.done {
		return nil
	}

	now := time.Now().UnixMilli()
	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO objects (bucket, key, payload, content_type, create_time, modify_time)
		SELECT ?, ?, payload, content_type, ?, ?
		FROM objects WHERE bucket = ? AND key = ?
		ON CONFLICT (bucket, key) DO UPDATE SET
			payload = excluded.payload,
			content_type = excluded.content_type,
			modify_time = excluded.modify_time`,
		c.dst.Bucket, c.dst.Key, now, now, c.src.Bucket, c.src.Key)
	if err != nil {
		return fmt.Errorf("%w: %v", data.ErrStore, err)
	}

	c.done = true
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}
