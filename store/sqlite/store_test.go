package sqlite

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/seqeralabs/nxf-gsfs/data"
	"github.com/seqeralabs/nxf-gsfs/store"
)

func newTestStore(t *testing.T, bucket string) *Store {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })

	if err := s.CreateBucket(context.Background(), bucket, store.BucketOptions{}); err != nil {
		t.Fatalf("CreateBucket failed: %v", err)
	}
	return s
}

func TestObjectLifecycle(t *testing.T) {
	s := newTestStore(t, "alpha")
	ctx := context.Background()

	if err := s.PutObject(ctx, "alpha", "docs/readme.md", []byte("hello"), "text/markdown"); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}

	info, err := s.StatObject(ctx, "alpha", "docs/readme.md")
	if err != nil {
		t.Fatalf("StatObject failed: %v", err)
	}
	if info.Size != 5 || info.ContentType != "text/markdown" {
		t.Errorf("Unexpected info: %+v", info)
	}

	rc, err := s.OpenReader(ctx, "alpha", "docs/readme.md", 2)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, []byte("llo")) {
		t.Errorf("Expected \"llo\", got %q", got)
	}

	if err := s.DeleteObject(ctx, "alpha", "docs/readme.md"); err != nil {
		t.Fatalf("DeleteObject failed: %v", err)
	}
	if _, err := s.StatObject(ctx, "alpha", "docs/readme.md"); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
	if err := s.DeleteObject(ctx, "alpha", "docs/readme.md"); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected ErrNotExist on double delete, got %v", err)
	}
}

func TestBucketLifecycle(t *testing.T) {
	s := newTestStore(t, "alpha")
	ctx := context.Background()

	if err := s.CreateBucket(ctx, "alpha", store.BucketOptions{}); !errors.Is(err, data.ErrExist) {
		t.Errorf("Expected ErrExist, got %v", err)
	}
	if _, err := s.StatObject(ctx, "ghost", "key"); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected ErrNotExist for a missing bucket, got %v", err)
	}

	if err := s.PutObject(ctx, "alpha", "keep.txt", []byte("x"), ""); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	if err := s.DeleteBucket(ctx, "alpha"); !errors.Is(err, data.ErrDirectoryNotEmpty) {
		t.Errorf("Expected ErrDirectoryNotEmpty, got %v", err)
	}

	if err := s.DeleteObject(ctx, "alpha", "keep.txt"); err != nil {
		t.Fatalf("DeleteObject failed: %v", err)
	}
	if err := s.DeleteBucket(ctx, "alpha"); err != nil {
		t.Fatalf("DeleteBucket failed: %v", err)
	}

	buckets, err := s.ListBuckets(ctx)
	if err != nil {
		t.Fatalf("ListBuckets failed: %v", err)
	}
	if len(buckets) != 0 {
		t.Errorf("Expected no buckets, got %v", buckets)
	}
}

func TestListGrouping(t *testing.T) {
	s := newTestStore(t, "alpha")
	ctx := context.Background()

	for _, key := range []string{"top.txt", "docs/readme.md", "docs/deep/notes.md"} {
		if err := s.PutObject(ctx, "alpha", key, []byte("x"), ""); err != nil {
			t.Fatalf("PutObject %s failed: %v", key, err)
		}
	}

	collect := func(opts store.ListOptions) []string {
		var keys []string
		for entry := range s.ListObjects(ctx, "alpha", opts) {
			if entry.Err != nil {
				t.Fatalf("Listing failed: %v", entry.Err)
			}
			keys = append(keys, entry.Info.Key)
		}
		sort.Strings(keys)
		return keys
	}

	keys := collect(store.ListOptions{CurrentDirOnly: true})
	want := []string{"docs/", "top.txt"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, keys)
	}

	keys = collect(store.ListOptions{Prefix: "docs/", CurrentDirOnly: true})
	want = []string{"docs/deep/", "docs/readme.md"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, keys)
	}

	entry := <-s.ListObjects(ctx, "ghost", store.ListOptions{})
	if !errors.Is(entry.Err, data.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", entry.Err)
	}
}

func TestServerSideCopy(t *testing.T) {
	s := newTestStore(t, "alpha")
	ctx := context.Background()

	payload := []byte("copy through sql")
	if err := s.PutObject(ctx, "alpha", "src.bin", payload, "application/octet-stream"); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}

	copier, err := s.Copy(ctx,
		store.ObjectRef{Bucket: "alpha", Key: "src.bin"},
		store.ObjectRef{Bucket: "alpha", Key: "dst.bin"},
	)
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	for !copier.Done() {
		if err := copier.Advance(ctx); err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
	}

	info, err := s.StatObject(ctx, "alpha", "dst.bin")
	if err != nil {
		t.Fatalf("StatObject failed: %v", err)
	}
	if info.Size != int64(len(payload)) || info.ContentType != "application/octet-stream" {
		t.Errorf("Unexpected copy result: %+v", info)
	}

	if _, err := s.Copy(ctx,
		store.ObjectRef{Bucket: "alpha", Key: "missing"},
		store.ObjectRef{Bucket: "alpha", Key: "dst"},
	); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected ErrNotExist for a missing source, got %v", err)
	}
}

// TestPersistence verifies that a file-backed namespace survives reopening.
func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.CreateBucket(ctx, "alpha", store.BucketOptions{}); err != nil {
		t.Fatalf("CreateBucket failed: %v", err)
	}
	if err := s.PutObject(ctx, "alpha", "durable.txt", []byte("still here"), ""); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = New(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer s.Close(ctx)

	info, err := s.StatObject(ctx, "alpha", "durable.txt")
	if err != nil {
		t.Fatalf("StatObject after reopen failed: %v", err)
	}
	if info.Size != 10 {
		t.Errorf("Expected size 10, got %d", info.Size)
	}
}
