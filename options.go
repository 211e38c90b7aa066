package gsfs

import (
	"github.com/seqeralabs/nxf-gsfs/data"
	"github.com/seqeralabs/nxf-gsfs/log"
	"github.com/seqeralabs/nxf-gsfs/store"
)

// Options holds filesystem-level configuration. Location and StorageClass
// are only consulted at bucket-creation time.
type Options struct {
	Location     string
	StorageClass string

	// CopyChunkBudget caps how many chunk advances one copy may take before
	// it is abandoned with ErrCopyStalled.
	CopyChunkBudget int

	Store  store.Client
	Logger *log.Logger
}

type Option func(*Options) error

func newDefaultOptions() *Options {
	return &Options{
		CopyChunkBudget: 10000,
		Logger:          log.Discard(),
	}
}

// WithLocation sets the location used when this filesystem creates its bucket.
func WithLocation(location string) Option {
	return func(o *Options) error {
		o.Location = location
		return nil
	}
}

// WithStorageClass sets the storage class used when this filesystem creates
// its bucket.
func WithStorageClass(class string) Option {
	return func(o *Options) error {
		o.StorageClass = class
		return nil
	}
}

// WithCopyChunkBudget bounds the chunked copy loop.
func WithCopyChunkBudget(budget int) Option {
	return func(o *Options) error {
		if budget <= 0 {
			return data.ErrInvalid
		}
		o.CopyChunkBudget = budget
		return nil
	}
}

// WithStore overrides the store session for one filesystem.
func WithStore(client store.Client) Option {
	return func(o *Options) error {
		o.Store = client
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		o.Logger = logger
		return nil
	}
}
