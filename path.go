package gsfs

import (
	"fmt"
	"sync/atomic"

	"github.com/seqeralabs/nxf-gsfs/data"
)

// Path is an immutable hierarchical path over the flat bucket/key namespace.
// Absolute paths carry their owning filesystem; relative paths carry none
// and cannot reach a remote object until resolved against an absolute path.
//
// A path materialized from a directory listing additionally carries a
// single-use attribute snapshot: the first stat consumes it instead of
// issuing a remote call, and it never survives a second read.
type Path struct {
	fs  *FileSystem
	key data.ObjectKey

	attrs atomic.Pointer[data.FileAttributes]
}

// NewRelativePath builds a bucket-less path from a raw segment string.
func NewRelativePath(name string) (*Path, error) {
	key, err := data.ParsePath(name)
	if err != nil {
		return nil, err
	}
	if key.IsAbsolute() {
		return nil, fmt.Errorf("%w: %q is not relative", data.ErrInvalidPath, name)
	}
	return &Path{key: key}, nil
}

// Key exposes the decomposed bucket/key coordinates.
func (p *Path) Key() data.ObjectKey {
	return p.key
}

// FileSystem returns the owning filesystem, nil for relative paths.
func (p *Path) FileSystem() *FileSystem {
	return p.fs
}

// IsAbsolute reports whether the path carries a bucket.
func (p *Path) IsAbsolute() bool {
	return p.key.IsAbsolute()
}

// IsDirectory reports the directory hint of the path itself. A path without
// the hint may still name a synthetic directory remotely.
func (p *Path) IsDirectory() bool {
	return p.key.Dir
}

// Root returns the bucket-root path, nil for relative paths.
func (p *Path) Root() *Path {
	if !p.IsAbsolute() {
		return nil
	}
	return &Path{fs: p.fs, key: data.ObjectKey{Bucket: p.key.Bucket, Dir: true}}
}

// Filename returns the last segment as a relative single-segment path, or
// nil when the path has no segments at all.
func (p *Path) Filename() *Path {
	segments := p.key.Segments()
	if len(segments) == 0 {
		return nil
	}
	return &Path{key: data.ObjectKey{Key: segments[len(segments)-1]}}
}

// Parent returns the directory one segment up, nil at the bucket root and
// for single-segment relative paths.
func (p *Path) Parent() *Path {
	parent, ok := p.key.Parent()
	if !ok {
		if p.IsAbsolute() && !p.key.IsBucketRoot() {
			// Single-segment absolute path: parent is the bucket root.
			return p.Root()
		}
		return nil
	}

	if !p.IsAbsolute() {
		return &Path{key: parent}
	}
	if parent.Key == "" {
		return p.Root()
	}
	return &Path{fs: p.fs, key: parent}
}

// Resolve appends the other path's segments to this path. An absolute other
// is returned unchanged regardless of the receiver. The result is a
// directory iff the trailing input carries the directory hint.
func (p *Path) Resolve(other *Path) (*Path, error) {
	if other == nil {
		return nil, fmt.Errorf("%w: nil path", data.ErrInvalid)
	}
	if other.IsAbsolute() {
		return other, nil
	}
	if other.key.Key == "" {
		return p, nil
	}

	joined := other.key.Key
	if p.key.Key != "" {
		joined = p.key.Key + "/" + joined
	}

	return &Path{
		fs: p.fs,
		key: data.ObjectKey{
			Bucket: p.key.Bucket,
			Key:    joined,
			Dir:    other.key.Dir,
		},
	}, nil
}

// ResolveName resolves a raw segment string against this path.
func (p *Path) ResolveName(name string) (*Path, error) {
	other, err := NewRelativePath(name)
	if err != nil {
		return nil, err
	}
	return p.Resolve(other)
}

// Relativize returns the relative path r such that p.Resolve(r) names the
// same object as other.
func (p *Path) Relativize(other *Path) (*Path, error) {
	if p.key.Bucket != other.key.Bucket {
		return nil, fmt.Errorf("%w: %q and %q have different roots", data.ErrInvalidPath, p, other)
	}

	base := p.key.Segments()
	target := other.key.Segments()
	if len(target) < len(base) {
		return nil, fmt.Errorf("%w: %q is not under %q", data.ErrInvalidPath, other, p)
	}
	for i, seg := range base {
		if target[i] != seg {
			return nil, fmt.Errorf("%w: %q is not under %q", data.ErrInvalidPath, other, p)
		}
	}

	rest := target[len(base):]
	key := ""
	for i, seg := range rest {
		if i > 0 {
			key += "/"
		}
		key += seg
	}
	return &Path{key: data.ObjectKey{Key: key, Dir: other.key.Dir || key == ""}}, nil
}

// Components materializes the path elements root-to-leaf, the bucket first
// for absolute paths. The slice is an eager snapshot, restartable at will.
func (p *Path) Components() []string {
	segments := p.key.Segments()
	if !p.IsAbsolute() || p.key.IsGlobalRoot() {
		return segments
	}
	return append([]string{p.key.Bucket}, segments...)
}

// String renders "/bucket/seg..." without any trailing slash.
func (p *Path) String() string {
	return p.key.String()
}

// URIString renders the canonical identifier, "gs://bucket/key" for
// absolute paths and "gs:key" for relative ones. Directory paths keep
// their trailing slash marker here only.
func (p *Path) URIString() string {
	return p.key.URIString()
}

// Equal reports equality over filesystem identity, resolved key and
// directory flag. Paths to the same object through different filesystem
// handles are unequal.
func (p *Path) Equal(other *Path) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.fs == other.fs && p.key.Equal(other.key)
}

// attach stores a listing-derived attribute snapshot on the path.
func (p *Path) attach(attrs *data.FileAttributes) *Path {
	p.attrs.Store(attrs)
	return p
}

// consumeAttributes takes the cached snapshot, clearing it so a second stat
// of the same handle goes remote instead of reading stale data.
func (p *Path) consumeAttributes() *data.FileAttributes {
	return p.attrs.Swap(nil)
}
