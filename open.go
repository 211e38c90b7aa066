package gsfs

import (
	"context"
	"fmt"

	"github.com/seqeralabs/nxf-gsfs/data"
)

// OpenRead opens a seekable read channel for the object at p.
func (fs *FileSystem) OpenRead(ctx context.Context, p *Path) (*ReadChannel, error) {
	return fs.openRead(ctx, p, data.AccessModeRead)
}

// OpenWrite opens a sequential write channel for the object at p with the
// given creation and truncation flags.
func (fs *FileSystem) OpenWrite(ctx context.Context, p *Path, mode data.AccessMode) (*WriteChannel, error) {
	return fs.openWrite(ctx, p, mode|data.AccessModeWrite)
}

// validateMode rejects flag combinations the store cannot honor. Read and
// write are mutually exclusive; append and synchronous flush have no
// store-side meaning and fail fast.
func (fs *FileSystem) validateMode(mode data.AccessMode) error {
	if mode.IsRead() && mode.IsWrite() {
		return fmt.Errorf("%w: read and write access are mutually exclusive", data.ErrInvalid)
	}
	if mode.HasAppend() {
		return fmt.Errorf("%w: the store has no append semantics", data.ErrUnsupported)
	}
	if mode.HasSync() {
		return fmt.Errorf("%w: the store has no local durability to sync", data.ErrUnsupported)
	}
	return nil
}

func (fs *FileSystem) openRead(ctx context.Context, p *Path, mode data.AccessMode) (*ReadChannel, error) {
	if err := fs.checkPath(p); err != nil {
		return nil, err
	}
	if err := fs.validateMode(mode); err != nil {
		return nil, err
	}
	if p.key.Dir || p.key.IsBucketRoot() || p.key.IsGlobalRoot() {
		return nil, fmt.Errorf("%w: %s", data.ErrIsDirectory, p)
	}

	return fs.newReadChannel(ctx, p)
}

func (fs *FileSystem) openWrite(ctx context.Context, p *Path, mode data.AccessMode) (*WriteChannel, error) {
	if err := fs.checkPath(p); err != nil {
		return nil, err
	}
	if err := fs.validateMode(mode); err != nil {
		return nil, err
	}
	if p.key.Dir || p.key.IsBucketRoot() || p.key.IsGlobalRoot() {
		return nil, fmt.Errorf("%w: %s", data.ErrIsDirectory, p)
	}

	exists := fs.Exists(ctx, p)
	switch {
	case mode.HasCreateNew():
		if exists {
			return nil, fmt.Errorf("%w: %s", data.ErrExist, p)
		}
	case !mode.HasCreate():
		if !exists {
			return nil, fmt.Errorf("%w: %s", data.ErrNotExist, p)
		}
		fallthrough
	default:
		// The store only replaces objects whole: overwriting an existing
		// object needs an explicit truncate intent.
		if exists && !mode.HasTruncate() {
			return nil, fmt.Errorf("%w: overwrite without truncate", data.ErrUnsupported)
		}
	}

	return fs.newWriteChannel(ctx, p)
}
