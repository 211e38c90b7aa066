package gsfs

import (
	"context"
	"fmt"
	"sync"

	"github.com/seqeralabs/nxf-gsfs/data"
	"github.com/seqeralabs/nxf-gsfs/log"
	"github.com/seqeralabs/nxf-gsfs/store"
)

// Registry is the process-wide table of filesystem handles, one per bucket.
// Handles are constructed lazily on first reference and share the registry's
// store session unless overridden per filesystem.
type Registry struct {
	mu          sync.RWMutex
	filesystems map[string]*FileSystem

	client store.Client
	log    *log.Logger
	opts   []Option
}

// NewRegistry creates a registry over one store session. The given options
// become the defaults for every filesystem it constructs.
func NewRegistry(client store.Client, opts ...Option) *Registry {
	defaults := newDefaultOptions()
	for _, opt := range opts {
		// Defaults are best effort; per-filesystem options validate again.
		_ = opt(defaults)
	}

	return &Registry{
		filesystems: make(map[string]*FileSystem),
		client:      client,
		log:         defaults.Logger,
		opts:        opts,
	}
}

// Create constructs the handle for a bucket eagerly. It fails with ErrExist
// when a handle for the bucket is already registered.
func (r *Registry) Create(bucket string, opts ...Option) (*FileSystem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.filesystems[bucket]; exists {
		return nil, fmt.Errorf("%w: filesystem for bucket %q already created", data.ErrExist, bucket)
	}

	fs, err := r.build(bucket, opts)
	if err != nil {
		return nil, err
	}

	r.filesystems[bucket] = fs
	return fs, nil
}

// Get returns the handle for a bucket, constructing it on first reference.
// The global-root sentinel yields the all-buckets filesystem.
func (r *Registry) Get(bucket string) (*FileSystem, error) {
	r.mu.RLock()
	fs, exists := r.filesystems[bucket]
	r.mu.RUnlock()
	if exists {
		return fs, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check: another caller may have registered it between the locks.
	if fs, exists := r.filesystems[bucket]; exists {
		return fs, nil
	}

	fs, err := r.build(bucket, nil)
	if err != nil {
		return nil, err
	}

	r.filesystems[bucket] = fs
	r.log.Debug("registered filesystem for bucket %q", bucket)
	return fs, nil
}

// GetPath parses a path string ("/bucket/seg/...") and routes it to its
// filesystem, constructing the handle if needed. Additional parts append as
// further segments; empty segments from doubled slashes collapse.
func (r *Registry) GetPath(first string, more ...string) (*Path, error) {
	key, err := data.ParsePath(first, more...)
	if err != nil {
		return nil, err
	}
	return r.pathForKey(key)
}

// GetURI parses a canonical "gs://bucket/key" identifier.
func (r *Registry) GetURI(uri string) (*Path, error) {
	key, err := data.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return r.pathForKey(key)
}

func (r *Registry) pathForKey(key data.ObjectKey) (*Path, error) {
	if !key.IsAbsolute() {
		return &Path{key: key}, nil
	}

	fs, err := r.Get(key.Bucket)
	if err != nil {
		return nil, err
	}
	return &Path{fs: fs, key: key}, nil
}

// Close tears down every registered filesystem and the shared store
// session, collecting partial failures into one error.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errs := &data.Errors{}
	for bucket, fs := range r.filesystems {
		errs.Add(fs.Close())
		delete(r.filesystems, bucket)
	}
	if r.client != nil {
		errs.Add(r.client.Close(ctx))
	}
	return errs.Errors()
}

func (r *Registry) build(bucket string, opts []Option) (*FileSystem, error) {
	options := newDefaultOptions()
	for _, opt := range append(append([]Option{}, r.opts...), opts...) {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	client := options.Store
	if client == nil {
		client = r.client
	}
	if client == nil {
		return nil, fmt.Errorf("%w: registry has no store session", data.ErrInvalid)
	}

	return newFileSystem(bucket, client, options), nil
}
