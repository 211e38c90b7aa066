package gsfs

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seqeralabs/nxf-gsfs/data"
	"github.com/seqeralabs/nxf-gsfs/store/memory"
)

// newTestBucket creates a filesystem over a fresh in-memory store with its
// bucket already provisioned.
func newTestBucket(t *testing.T, bucket string) (*FileSystem, *memory.Store) {
	t.Helper()

	client := memory.New()
	registry := NewRegistry(client)
	fs, err := registry.Get(bucket)
	if err != nil {
		t.Fatalf("Get filesystem failed: %v", err)
	}
	if err := fs.CreateDirectory(context.Background(), fs.Root()); err != nil {
		t.Fatalf("CreateBucket failed: %v", err)
	}
	return fs, client
}

func mustPath(t *testing.T, fs *FileSystem, name string) *Path {
	t.Helper()

	p, err := fs.NewPath(name)
	if err != nil {
		t.Fatalf("NewPath %q failed: %v", name, err)
	}
	return p
}

func TestReadAttributes(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	// Write a file and stat it.
	file := mustPath(t, fs, "docs/readme.md")
	if err := fs.WriteFile(ctx, file, []byte("hi")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	attrs, err := fs.ReadAttributes(ctx, file)
	if err != nil {
		t.Fatalf("ReadAttributes failed: %v", err)
	}
	if !attrs.IsRegular() {
		t.Errorf("Expected a regular file, got %v", attrs.Kind)
	}
	if attrs.Size != 2 {
		t.Errorf("Expected size 2, got %d", attrs.Size)
	}
	if attrs.CreateTime == nil || attrs.ModifyTime == nil {
		t.Error("File attributes must carry both timestamps")
	}

	// The parent is an implicit directory: no marker, only the longer key.
	dir := mustPath(t, fs, "docs/")
	attrs, err = fs.ReadAttributes(ctx, dir)
	if err != nil {
		t.Fatalf("ReadAttributes on implicit directory failed: %v", err)
	}
	if attrs.Kind != data.KindDirectory {
		t.Errorf("Expected a directory, got %v", attrs.Kind)
	}

	// A path without the directory hint still resolves to the directory.
	bare := mustPath(t, fs, "docs")
	attrs, err = fs.ReadAttributes(ctx, bare)
	if err != nil {
		t.Fatalf("ReadAttributes on bare directory path failed: %v", err)
	}
	if attrs.Kind != data.KindDirectory {
		t.Errorf("Expected a directory, got %v", attrs.Kind)
	}

	// Bucket root.
	attrs, err = fs.ReadAttributes(ctx, fs.Root())
	if err != nil {
		t.Fatalf("ReadAttributes on bucket root failed: %v", err)
	}
	if attrs.Kind != data.KindBucket {
		t.Errorf("Expected a bucket, got %v", attrs.Kind)
	}

	// Missing path.
	if _, err := fs.ReadAttributes(ctx, mustPath(t, fs, "nope")); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
}

// TestReadAttributesConsumesSnapshot verifies the single-use attribute cache:
// the snapshot attached by a listing serves exactly one stat.
func TestReadAttributesConsumesSnapshot(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	file := mustPath(t, fs, "file.txt")
	if err := fs.WriteFile(ctx, file, []byte("payload")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	stream, err := fs.List(ctx, fs.Root(), nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	defer stream.Close()

	if !stream.Next() {
		t.Fatalf("Expected one entry, got none: %v", stream.Err())
	}
	listed := stream.Path()

	// First stat consumes the snapshot without touching the store; prove it
	// by deleting the object underneath first.
	if err := fs.Delete(ctx, file); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	attrs, err := fs.ReadAttributes(ctx, listed)
	if err != nil {
		t.Fatalf("First stat should use the attached snapshot: %v", err)
	}
	if attrs.Size != 7 {
		t.Errorf("Expected snapshot size 7, got %d", attrs.Size)
	}

	// Second stat goes remote and sees the deletion.
	if _, err := fs.ReadAttributes(ctx, listed); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected ErrNotExist on the second stat, got %v", err)
	}
}

func TestCreateDirectory(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	dir := mustPath(t, fs, "staging/")
	if fs.Exists(ctx, dir) {
		t.Fatal("Directory must not exist before creation")
	}

	if err := fs.CreateDirectory(ctx, dir); err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}

	// The marker makes the empty directory visible.
	if !fs.Exists(ctx, dir) {
		t.Error("Directory must exist after creating its marker")
	}

	attrs, err := fs.ReadAttributes(ctx, dir)
	if err != nil {
		t.Fatalf("ReadAttributes failed: %v", err)
	}
	if attrs.Kind != data.KindDirectory || attrs.Size != 0 {
		t.Errorf("Expected an empty directory, got %+v", attrs)
	}
}

func TestDelete(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	dir := mustPath(t, fs, "work/")
	file := mustPath(t, fs, "work/task.log")

	if err := fs.CreateDirectory(ctx, dir); err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}
	if err := fs.WriteFile(ctx, file, []byte("done")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// A directory with children refuses deletion.
	if err := fs.Delete(ctx, dir); !errors.Is(err, data.ErrDirectoryNotEmpty) {
		t.Errorf("Expected ErrDirectoryNotEmpty, got %v", err)
	}

	// Children first, then the directory itself.
	if err := fs.Delete(ctx, file); err != nil {
		t.Fatalf("Delete file failed: %v", err)
	}
	if err := fs.Delete(ctx, dir); err != nil {
		t.Fatalf("Delete directory failed: %v", err)
	}
	if fs.Exists(ctx, dir) {
		t.Error("Directory must not exist after deletion")
	}

	// Deleting a missing path fails.
	if err := fs.Delete(ctx, file); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
}

func TestDeleteBucket(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	file := mustPath(t, fs, "keep.txt")
	if err := fs.WriteFile(ctx, file, []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := fs.Delete(ctx, fs.Root()); !errors.Is(err, data.ErrDirectoryNotEmpty) {
		t.Errorf("Expected ErrDirectoryNotEmpty for a non-empty bucket, got %v", err)
	}

	if err := fs.Delete(ctx, file); err != nil {
		t.Fatalf("Delete file failed: %v", err)
	}
	if err := fs.Delete(ctx, fs.Root()); err != nil {
		t.Fatalf("Delete bucket failed: %v", err)
	}
}

func TestCopy(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	source := mustPath(t, fs, "source.txt")
	target := mustPath(t, fs, "backup/target.txt")
	payload := []byte("copy me")

	if err := fs.WriteFile(ctx, source, payload); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := fs.Copy(ctx, source, target, false); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	got, err := fs.ReadFile(ctx, target)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Expected %q, got %q", payload, got)
	}

	// The source survives a copy.
	if !fs.Exists(ctx, source) {
		t.Error("Source must still exist after copy")
	}

	// Copying a path onto itself is a no-op.
	if err := fs.Copy(ctx, source, source, false); err != nil {
		t.Errorf("Self-copy must succeed, got %v", err)
	}

	// Replace semantics.
	if err := fs.WriteFile(ctx, target, []byte("old")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.Copy(ctx, source, target, true); err != nil {
		t.Fatalf("Replacing copy failed: %v", err)
	}
	got, _ = fs.ReadFile(ctx, target)
	if !bytes.Equal(got, payload) {
		t.Errorf("Expected replaced content %q, got %q", payload, got)
	}
}

// TestCopyChunked drives the chunked copy protocol with a chunk size smaller
// than the payload, and verifies the stall budget cuts off runaway copies.
func TestCopyChunked(t *testing.T) {
	fs, client := newTestBucket(t, "alpha")
	ctx := context.Background()

	client.SetCopyChunkSize(2)

	source := mustPath(t, fs, "big.bin")
	target := mustPath(t, fs, "big.copy")
	payload := []byte("0123456789")

	if err := fs.WriteFile(ctx, source, payload); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.Copy(ctx, source, target, false); err != nil {
		t.Fatalf("Chunked copy failed: %v", err)
	}

	got, err := fs.ReadFile(ctx, target)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Expected %q, got %q", payload, got)
	}

	// A budget below the needed chunk count stalls out.
	registry := NewRegistry(client, WithCopyChunkBudget(2))
	tight, err := registry.Get("alpha")
	if err != nil {
		t.Fatalf("Get filesystem failed: %v", err)
	}

	stalled := mustPath(t, tight, "big.stalled")
	src := mustPath(t, tight, "big.bin")
	if err := tight.Copy(ctx, src, stalled, false); !errors.Is(err, data.ErrCopyStalled) {
		t.Errorf("Expected ErrCopyStalled, got %v", err)
	}
}

func TestMove(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	source := mustPath(t, fs, "old/name.txt")
	target := mustPath(t, fs, "new/name.txt")
	payload := []byte("relocate")

	if err := fs.WriteFile(ctx, source, payload); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.Move(ctx, source, target, false); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	if fs.Exists(ctx, source) {
		t.Error("Source must not exist after move")
	}

	got, err := fs.ReadFile(ctx, target)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Expected %q, got %q", payload, got)
	}
}

func TestExistsSwallowsErrors(t *testing.T) {
	fs, client := newTestBucket(t, "alpha")
	ctx := context.Background()

	if fs.Exists(ctx, mustPath(t, fs, "missing.txt")) {
		t.Error("Missing path must report false")
	}

	// Even a failing store reports false, never an error.
	if err := client.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if fs.Exists(ctx, mustPath(t, fs, "missing.txt")) {
		t.Error("A failing store must still report false")
	}
}

func TestSetTimes(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	file := mustPath(t, fs, "file.txt")
	if err := fs.WriteFile(ctx, file, []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	before, err := fs.ReadAttributes(ctx, file)
	if err != nil {
		t.Fatalf("ReadAttributes failed: %v", err)
	}

	// Accepted and ignored.
	past := time.Now().Add(-time.Hour)
	if err := fs.SetTimes(ctx, file, &past, &past, &past); err != nil {
		t.Fatalf("SetTimes failed: %v", err)
	}

	after, err := fs.ReadAttributes(ctx, file)
	if err != nil {
		t.Fatalf("ReadAttributes failed: %v", err)
	}
	if !before.Equal(after) {
		t.Errorf("SetTimes must not change anything: %+v vs %+v", before, after)
	}
}

func TestCheckPathRejectsForeignHandles(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	other, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	foreign := mustPath(t, other, "file.txt")
	if _, err := fs.ReadAttributes(ctx, foreign); !errors.Is(err, data.ErrPathMismatch) {
		t.Errorf("Expected ErrPathMismatch, got %v", err)
	}
	if err := fs.Delete(ctx, nil); !errors.Is(err, data.ErrPathMismatch) {
		t.Errorf("Expected ErrPathMismatch for nil path, got %v", err)
	}
}
