package data

import "time"

// FileKind identifies what a path resolves to in the emulated namespace.
type FileKind int

const (
	// KindFile is a regular object.
	KindFile FileKind = iota
	// KindDirectory is a synthetic directory, either backed by a zero-byte
	// trailing-slash marker object or implied by longer keys under its prefix.
	KindDirectory
	// KindBucket is the root of a single bucket.
	KindBucket
	// KindRoot is the global all-buckets root.
	KindRoot
)

func (k FileKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindBucket:
		return "bucket"
	case KindRoot:
		return "root"
	default:
		return "unknown"
	}
}

// FileAttributes is a point-in-time attribute snapshot of one namespace
// entry. Synthetic directories and bucket roots carry no timestamps; the
// store never tracks access time at all.
type FileAttributes struct {
	Kind FileKind

	// FileKey is the stable identity of the entry: its canonical path string.
	FileKey string

	// Size in bytes, always 0 for directories, buckets and the root.
	Size int64

	CreateTime *time.Time
	ModifyTime *time.Time
}

// NewFileAttributes builds a snapshot for a regular object.
func NewFileAttributes(fileKey string, size int64, created, modified time.Time) *FileAttributes {
	return &FileAttributes{
		Kind:       KindFile,
		FileKey:    fileKey,
		Size:       size,
		CreateTime: &created,
		ModifyTime: &modified,
	}
}

// NewDirectoryAttributes builds a snapshot for a synthetic directory.
// Modification time is always absent: the store does not track it for
// directories that only exist as key prefixes.
func NewDirectoryAttributes(fileKey string) *FileAttributes {
	return &FileAttributes{
		Kind:    KindDirectory,
		FileKey: fileKey,
	}
}

// NewBucketAttributes builds a snapshot for a bucket root. Creation time may
// be absent when the store does not report it.
func NewBucketAttributes(fileKey string, created *time.Time) *FileAttributes {
	return &FileAttributes{
		Kind:       KindBucket,
		FileKey:    fileKey,
		CreateTime: created,
	}
}

// NewRootAttributes builds the snapshot of the global all-buckets root.
func NewRootAttributes() *FileAttributes {
	return &FileAttributes{
		Kind:    KindRoot,
		FileKey: GlobalRootBucket,
	}
}

// IsDir reports whether the entry behaves as a directory.
func (a *FileAttributes) IsDir() bool {
	return a.Kind != KindFile
}

// IsRegular reports whether the entry is a regular object.
func (a *FileAttributes) IsRegular() bool {
	return a.Kind == KindFile
}

// Equal compares two snapshots including their identity key.
func (a *FileAttributes) Equal(other *FileAttributes) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Kind == other.Kind &&
		a.FileKey == other.FileKey &&
		a.Size == other.Size &&
		timePtrEqual(a.CreateTime, other.CreateTime) &&
		timePtrEqual(a.ModifyTime, other.ModifyTime)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
