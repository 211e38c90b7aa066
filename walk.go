package gsfs

import (
	"context"
	"errors"

	"github.com/seqeralabs/nxf-gsfs/data"
)

// WalkFunc is invoked once per visited path with its attribute snapshot.
// Returning SkipDir for a directory skips its subtree.
type WalkFunc func(p *Path, attrs *data.FileAttributes) error

// SkipDir is the WalkFunc result that prunes the current directory.
var SkipDir = errors.New("gsfs: skip this directory")

// Walk visits root and everything below it, depth first, directories before
// their children. Because listings are only eventually consistent, a walk
// started right after writes may miss the newest entries.
func (fs *FileSystem) Walk(ctx context.Context, root *Path, fn WalkFunc) error {
	attrs, err := fs.ReadAttributes(ctx, root)
	if err != nil {
		return err
	}

	if err := fn(root, attrs); err != nil {
		if err == SkipDir && attrs.IsDir() {
			return nil
		}
		return err
	}
	if !attrs.IsDir() {
		return nil
	}

	return fs.walkChildren(ctx, root, fn)
}

func (fs *FileSystem) walkChildren(ctx context.Context, dir *Path, fn WalkFunc) error {
	stream, err := fs.List(ctx, dir, nil)
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Next() {
		child := stream.Path()
		attrs, err := child.fs.ReadAttributes(ctx, child)
		if err != nil {
			return err
		}

		if err := fn(child, attrs); err != nil {
			if err == SkipDir && attrs.IsDir() {
				continue
			}
			return err
		}
		if attrs.IsDir() {
			if err := child.fs.walkChildren(ctx, child, fn); err != nil {
				return err
			}
		}
	}
	return stream.Err()
}
