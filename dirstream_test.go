package gsfs

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/seqeralabs/nxf-gsfs/data"
	"github.com/seqeralabs/nxf-gsfs/store/memory"
)

func collectNames(t *testing.T, stream *DirStream) []string {
	t.Helper()
	defer stream.Close()

	var names []string
	for stream.Next() {
		names = append(names, stream.Path().String())
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	sort.Strings(names)
	return names
}

func TestListCurrentDirectory(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	// A flat file, a marker-backed directory and an implicit directory.
	for _, name := range []string{"top.txt", "docs/readme.md", "docs/deep/notes.md", "logs/run.log"} {
		if err := fs.WriteFile(ctx, mustPath(t, fs, name), []byte(name)); err != nil {
			t.Fatalf("WriteFile %s failed: %v", name, err)
		}
	}
	if err := fs.CreateDirectory(ctx, mustPath(t, fs, "empty/")); err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}

	// One level only: nested keys group into single directory entries.
	names := collectNames(t, mustList(t, fs, fs.Root(), nil))
	want := []string{"/alpha/docs", "/alpha/empty", "/alpha/logs", "/alpha/top.txt"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, names)
	}

	// The subdirectory level, excluding the directory itself.
	names = collectNames(t, mustList(t, fs, mustPath(t, fs, "docs/"), nil))
	want = []string{"/alpha/docs/deep", "/alpha/docs/readme.md"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, names)
	}

	// An empty marker-backed directory lists nothing.
	names = collectNames(t, mustList(t, fs, mustPath(t, fs, "empty/"), nil))
	if len(names) != 0 {
		t.Errorf("Expected no entries, got %v", names)
	}
}

func mustList(t *testing.T, fs *FileSystem, dir *Path, filter Filter) *DirStream {
	t.Helper()

	stream, err := fs.List(context.Background(), dir, filter)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	return stream
}

func TestListFilter(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	for _, name := range []string{"a.log", "b.txt", "c.log"} {
		if err := fs.WriteFile(ctx, mustPath(t, fs, name), []byte("x")); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	onlyLogs := func(p *Path) bool {
		return strings.HasSuffix(p.String(), ".log")
	}
	names := collectNames(t, mustList(t, fs, fs.Root(), onlyLogs))
	want := []string{"/alpha/a.log", "/alpha/c.log"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, names)
	}
}

// TestListMissingBucket verifies that a missing bucket fails at List time,
// before any iteration begins.
func TestListMissingBucket(t *testing.T) {
	registry := NewRegistry(memory.New())
	fs, err := registry.Get("ghost")
	if err != nil {
		t.Fatalf("Get filesystem failed: %v", err)
	}

	if _, err := fs.List(context.Background(), fs.Root(), nil); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
}

// TestListMarkerDirectory verifies that a marker-backed directory holding
// one file lists exactly that file, with its size from the listing item.
func TestListMarkerDirectory(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	dir := mustPath(t, fs, "dir/")
	if err := fs.CreateDirectory(ctx, dir); err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}
	if err := fs.WriteFile(ctx, mustPath(t, fs, "dir/file.txt"), []byte("hi")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	stream := mustList(t, fs, dir, nil)
	defer stream.Close()

	if !stream.Next() {
		t.Fatalf("Expected one entry, got none: %v", stream.Err())
	}
	child := stream.Path()
	if child.String() != "/alpha/dir/file.txt" {
		t.Errorf("Expected /alpha/dir/file.txt, got %q", child)
	}
	attrs, err := fs.ReadAttributes(ctx, child)
	if err != nil {
		t.Fatalf("ReadAttributes failed: %v", err)
	}
	if attrs.Size != 2 {
		t.Errorf("Expected size 2, got %d", attrs.Size)
	}

	if stream.Next() {
		t.Errorf("Expected exactly one entry, also got %q", stream.Path())
	}
}

// TestListRegularObject verifies that a path resolving to a regular object
// refuses to list.
func TestListRegularObject(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	if err := fs.WriteFile(ctx, mustPath(t, fs, "plain.txt"), []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := fs.List(ctx, mustPath(t, fs, "plain.txt"), nil); !errors.Is(err, data.ErrNotDirectory) {
		t.Errorf("Expected ErrNotDirectory, got %v", err)
	}
}

// TestListAttachedAttributes verifies that listing items carry their
// attribute snapshots, so statting a fresh entry needs no extra round trip.
func TestListAttachedAttributes(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	if err := fs.WriteFile(ctx, mustPath(t, fs, "file.txt"), []byte("12345")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.WriteFile(ctx, mustPath(t, fs, "sub/nested.txt"), []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	stream := mustList(t, fs, fs.Root(), nil)
	defer stream.Close()

	for stream.Next() {
		child := stream.Path()
		attrs, err := fs.ReadAttributes(ctx, child)
		if err != nil {
			t.Fatalf("ReadAttributes on %s failed: %v", child, err)
		}

		switch child.String() {
		case "/alpha/file.txt":
			if !attrs.IsRegular() || attrs.Size != 5 {
				t.Errorf("Expected a 5-byte file, got %+v", attrs)
			}
		case "/alpha/sub":
			if attrs.Kind != data.KindDirectory {
				t.Errorf("Expected a directory, got %+v", attrs)
			}
			if !child.IsDirectory() {
				t.Error("Grouped entries must carry the directory hint")
			}
		default:
			t.Errorf("Unexpected entry %s", child)
		}
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
}

// TestListGlobalRoot verifies that the all-buckets filesystem lists bucket
// roots as its children.
func TestListGlobalRoot(t *testing.T) {
	client := memory.New()
	registry := NewRegistry(client)
	ctx := context.Background()

	for _, bucket := range []string{"alpha", "beta"} {
		fs, err := registry.Get(bucket)
		if err != nil {
			t.Fatalf("Get filesystem failed: %v", err)
		}
		if err := fs.CreateDirectory(ctx, fs.Root()); err != nil {
			t.Fatalf("CreateBucket failed: %v", err)
		}
	}

	root, err := registry.Get(data.GlobalRootBucket)
	if err != nil {
		t.Fatalf("Get root filesystem failed: %v", err)
	}
	if !root.IsGlobalRoot() {
		t.Fatal("Expected the global-root filesystem")
	}

	names := collectNames(t, mustList(t, root, root.Root(), nil))
	want := []string{"/alpha", "/beta"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, names)
	}

	// Bucket entries stat as buckets from their attached snapshots.
	stream := mustList(t, root, root.Root(), nil)
	defer stream.Close()
	for stream.Next() {
		attrs, err := root.ReadAttributes(ctx, stream.Path())
		if err != nil {
			t.Fatalf("ReadAttributes failed: %v", err)
		}
		if attrs.Kind != data.KindBucket {
			t.Errorf("Expected a bucket, got %+v", attrs)
		}
	}
}

func TestStreamNotRestartable(t *testing.T) {
	fs, _ := newTestBucket(t, "alpha")
	ctx := context.Background()

	if err := fs.WriteFile(ctx, mustPath(t, fs, "only.txt"), []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	stream := mustList(t, fs, fs.Root(), nil)
	if !stream.Next() {
		t.Fatal("Expected one entry")
	}
	for stream.Next() {
	}

	// Exhausted streams stay exhausted; closed streams report false.
	if stream.Next() {
		t.Error("An exhausted stream must not restart")
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if stream.Next() {
		t.Error("A closed stream must not produce entries")
	}
}
