package data

import (
	"fmt"
	"strings"
)

// Scheme is the URI scheme used for canonical path identifiers.
const Scheme = "gs"

// GlobalRootBucket is the sentinel bucket name of the global-root namespace.
// A key carrying it addresses "all buckets" rather than any single bucket.
const GlobalRootBucket = "/"

// ObjectKey decomposes a hierarchical path string into the flat coordinates
// of the underlying store: a bucket, a '/'-separated object key and a
// directory hint. It is immutable after construction.
type ObjectKey struct {
	// Bucket is the lower-cased bucket name, empty for relative keys.
	Bucket string

	// Key holds the '/'-joined segments without leading or trailing slash.
	Key string

	// Dir marks keys that denote a synthetic directory. An empty key is
	// always a directory (the bucket root).
	Dir bool
}

// NewObjectKey validates and normalizes the raw bucket/key pair.
// A bucket name containing '/' is rejected unless it is the global-root
// sentinel itself.
func NewObjectKey(bucket, key string) (ObjectKey, error) {
	if bucket != GlobalRootBucket && strings.Contains(bucket, "/") {
		return ObjectKey{}, fmt.Errorf("%w: bucket name %q must not contain '/'", ErrInvalidPath, bucket)
	}

	dir := key == "" || strings.HasSuffix(key, "/")
	segments := splitSegments(key)

	return ObjectKey{
		Bucket: strings.ToLower(bucket),
		Key:    strings.Join(segments, "/"),
		Dir:    dir || len(segments) == 0,
	}, nil
}

// ParsePath parses an absolute ("/bucket/seg/...") or relative ("seg/...")
// path string. Empty segments produced by doubled slashes collapse.
func ParsePath(first string, more ...string) (ObjectKey, error) {
	path := first
	for _, m := range more {
		if m == "" {
			continue
		}
		if path == "" || strings.HasSuffix(path, "/") {
			path += m
		} else {
			path += "/" + m
		}
	}

	if path == "" {
		return ObjectKey{}, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	if path == GlobalRootBucket {
		return ObjectKey{Bucket: GlobalRootBucket, Dir: true}, nil
	}

	if !strings.HasPrefix(path, "/") {
		// Relative key, no bucket component.
		return NewObjectKey("", path)
	}

	rest := strings.TrimPrefix(path, "/")
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return ObjectKey{}, fmt.Errorf("%w: missing bucket in %q", ErrInvalidPath, path)
	}

	return NewObjectKey(bucket, key)
}

// ParseURI parses the canonical wire form: "gs://bucket/key" for absolute
// identifiers and "gs:key" for relative ones.
func ParseURI(uri string) (ObjectKey, error) {
	rest, ok := strings.CutPrefix(uri, Scheme+":")
	if !ok {
		return ObjectKey{}, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidPath, uri)
	}

	if authority, found := strings.CutPrefix(rest, "//"); found {
		bucket, key, _ := strings.Cut(authority, "/")
		if bucket == "" {
			return ObjectKey{}, fmt.Errorf("%w: missing bucket in %q", ErrInvalidPath, uri)
		}
		return NewObjectKey(bucket, key)
	}

	if strings.HasPrefix(rest, "/") {
		return ObjectKey{}, fmt.Errorf("%w: relative identifier %q must not start with '/'", ErrInvalidPath, uri)
	}

	return NewObjectKey("", rest)
}

// IsAbsolute reports whether the key carries a bucket.
func (k ObjectKey) IsAbsolute() bool {
	return k.Bucket != ""
}

// IsBucketRoot reports whether the key addresses the root of its bucket.
func (k ObjectKey) IsBucketRoot() bool {
	return k.IsAbsolute() && k.Key == ""
}

// IsGlobalRoot reports whether the key addresses the all-buckets namespace.
func (k ObjectKey) IsGlobalRoot() bool {
	return k.Bucket == GlobalRootBucket
}

// Segments returns the ordered key segments, excluding the bucket.
func (k ObjectKey) Segments() []string {
	return splitSegments(k.Key)
}

// CanonicalKey renders the object key as stored remotely: directory keys
// keep their trailing slash marker, the bucket root renders empty.
func (k ObjectKey) CanonicalKey() string {
	if k.Key == "" {
		return ""
	}
	if k.Dir {
		return k.Key + "/"
	}
	return k.Key
}

// String renders "/bucket/seg..." for absolute keys and "seg..." for
// relative ones. Trailing slashes are never part of the display form.
func (k ObjectKey) String() string {
	if k.IsGlobalRoot() {
		return GlobalRootBucket
	}
	if !k.IsAbsolute() {
		return k.Key
	}
	if k.Key == "" {
		return "/" + k.Bucket
	}
	return "/" + k.Bucket + "/" + k.Key
}

// URIString renders the canonical identifier: "gs://bucket/key" or "gs:key".
func (k ObjectKey) URIString() string {
	if !k.IsAbsolute() {
		return Scheme + ":" + k.Key
	}
	return Scheme + "://" + k.Bucket + "/" + k.CanonicalKey()
}

// Equal reports value equality over bucket, segments and directory flag.
func (k ObjectKey) Equal(other ObjectKey) bool {
	return k.Bucket == other.Bucket && k.Key == other.Key && k.Dir == other.Dir
}

// Parent returns the key one segment shorter, as a directory. The second
// return is false at the bucket root and for single-segment relative keys.
func (k ObjectKey) Parent() (ObjectKey, bool) {
	segments := k.Segments()
	if len(segments) == 0 {
		return ObjectKey{}, false
	}
	if !k.IsAbsolute() && len(segments) == 1 {
		return ObjectKey{}, false
	}

	return ObjectKey{
		Bucket: k.Bucket,
		Key:    strings.Join(segments[:len(segments)-1], "/"),
		Dir:    true,
	}, true
}

func splitSegments(key string) []string {
	var segments []string
	for _, seg := range strings.Split(key, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
