// Package datastore defines the transactional configuration store contract
// the operation layer mutates through, plus the engines that back it.
package datastore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrClosed indicates the engine or connection is no longer usable.
	ErrClosed = errors.New("datastore: closed")
	// ErrUnknownStore indicates a store name outside the fixed enumeration.
	ErrUnknownStore = errors.New("datastore: unknown store")
)

// Store identifies one of the server's built-in configuration stores.
type Store int

const (
	Candidate Store = iota
	Running
	Startup
)

var storeNames = [...]string{"candidate", "running", "startup"}

func (s Store) String() string {
	if s < Candidate || s > Startup {
		return fmt.Sprintf("store(%d)", int(s))
	}
	return storeNames[s]
}

// ParseStore maps a store name from a request document onto a Store.
func ParseStore(name string) (Store, error) {
	for i, n := range storeNames {
		if n == name {
			return Store(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStore, name)
}

// Connection is one session's transactional handle into an engine.
// Mutations accumulate in an uncommitted buffer until Commit makes them
// visible; DiscardChanges drops the buffer. A connection is not safe for
// concurrent use; the session layer serializes operations per session.
type Connection interface {
	// SwitchStore rebinds the connection to another store. Any
	// uncommitted changes against the previous store are dropped.
	SwitchStore(ctx context.Context, store Store) error

	// Refresh reconciles the connection's view of the bound store with
	// the engine's committed state.
	Refresh(ctx context.Context) error

	// DeleteModule stages removal of every data node under the named
	// module in the bound store.
	DeleteModule(ctx context.Context, module string) error

	// Commit applies all staged changes as one atomic transaction.
	Commit(ctx context.Context) error

	// DiscardChanges drops all staged changes. Safe to call with an
	// empty buffer.
	DiscardChanges(ctx context.Context)
}

// Engine owns the stored configuration data and hands out connections.
type Engine interface {
	// Connect opens a new connection bound to the given store.
	Connect(ctx context.Context, store Store) (Connection, error)

	// Close releases the engine's resources. Existing connections fail
	// afterwards.
	Close() error
}
