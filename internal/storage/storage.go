package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("storage: unknown driver")

	// ErrClosed is returned when a store is used after Close.
	ErrClosed = errors.New("storage: store is closed")
)

// Store keeps one encoded ledger state document. Load returns nil data and a
// nil error when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Close() error
}

type Options struct {
	Driver    string
	Path      string
	BadgerDir string
}

func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case "", "json":
		return NewFileStore(opts.Path), nil
	case "badger":
		return OpenBadgerStore(opts.BadgerDir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
