package data

import (
	"errors"
	"sync"
)

// Standard filesystem errors that store implementations should use.
var (
	// Path construction errors
	ErrInvalidPath  = errors.New("gsfs: invalid path")
	ErrPathMismatch = errors.New("gsfs: path belongs to a different filesystem")

	// Namespace errors
	ErrNotExist          = errors.New("gsfs: object does not exist")
	ErrExist             = errors.New("gsfs: object already exists")
	ErrIsDirectory       = errors.New("gsfs: is a directory")
	ErrNotDirectory      = errors.New("gsfs: not a directory")
	ErrDirectoryNotEmpty = errors.New("gsfs: directory not empty")

	// Channel errors
	ErrClosed      = errors.New("gsfs: channel already closed")
	ErrUnsupported = errors.New("gsfs: operation not supported")
	ErrInvalid     = errors.New("gsfs: invalid argument")

	// Copy errors
	ErrCopyStalled = errors.New("gsfs: copy did not complete within chunk budget")

	// Generic provider failure wrapper
	ErrStore = errors.New("gsfs: store operation failed")
)

// Errors collects partial failures from multi-step operations.
type Errors struct {
	mu     sync.Mutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Errors() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
