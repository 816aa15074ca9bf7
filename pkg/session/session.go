// Package session carries the per-connection state an operation borrows
// while it runs: the datastore connection and the currently bound store.
// Ownership of the session stays with the connection layer; operations
// only read and update the binding for the duration of one RPC.
package session

import (
	"errors"

	"github.com/google/uuid"

	"github.com/skolbel/netopeer2/pkg/datastore"
)

// ErrNilConnection indicates a session was built without a datastore connection.
var ErrNilConnection = errors.New("session: nil datastore connection")

// Session is one NETCONF session's server-side state.
type Session struct {
	id       string
	username string
	conn     datastore.Connection
	bound    datastore.Store
}

// Option customizes a new session.
type Option func(*Session)

// WithUsername records the authenticated username on the session.
func WithUsername(name string) Option {
	return func(s *Session) { s.username = name }
}

// WithBoundStore sets the initial store binding. The default is running.
func WithBoundStore(store datastore.Store) Option {
	return func(s *Session) { s.bound = store }
}

// New builds a session around an open datastore connection.
func New(conn datastore.Connection, opts ...Option) (*Session, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}
	s := &Session{
		id:    uuid.NewString(),
		conn:  conn,
		bound: datastore.Running,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Username returns the authenticated username, if recorded.
func (s *Session) Username() string { return s.username }

// Conn returns the session's datastore connection.
func (s *Session) Conn() datastore.Connection { return s.conn }

// BoundStore returns the store the connection is currently bound to.
func (s *Session) BoundStore() datastore.Store { return s.bound }

// SetBoundStore updates the binding after a successful store switch.
func (s *Session) SetBoundStore(store datastore.Store) { s.bound = store }
