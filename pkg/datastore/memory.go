package datastore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryEngine keeps all stores in process memory. It is the default
// backend for tests and ephemeral servers.
type MemoryEngine struct {
	mu     sync.RWMutex
	closed bool
	// data is store -> module -> node path -> value.
	data map[Store]map[string]map[string]string
}

// NewMemoryEngine builds an empty in-memory engine with all three built-in
// stores present.
func NewMemoryEngine() *MemoryEngine {
	data := make(map[Store]map[string]map[string]string, 3)
	for _, s := range []Store{Candidate, Running, Startup} {
		data[s] = map[string]map[string]string{}
	}
	return &MemoryEngine{data: data}
}

// SetNode writes one committed node value directly, bypassing any
// transaction. Used to seed stores.
func (e *MemoryEngine) SetNode(store Store, module, path, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	st, ok := e.data[store]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownStore, store)
	}
	mod := st[module]
	if mod == nil {
		mod = map[string]string{}
		st[module] = mod
	}
	mod[path] = value
	return nil
}

// Snapshot returns a deep copy of one store's committed content, keyed by
// module then node path.
func (e *MemoryEngine) Snapshot(store Store) map[string]map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := map[string]map[string]string{}
	for module, nodes := range e.data[store] {
		cp := make(map[string]string, len(nodes))
		for p, v := range nodes {
			cp[p] = v
		}
		out[module] = cp
	}
	return out
}

// Connect opens a connection bound to store.
func (e *MemoryEngine) Connect(_ context.Context, store Store) (Connection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	if _, ok := e.data[store]; !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownStore, store)
	}
	return &memoryConn{engine: e, bound: store}, nil
}

// Close marks the engine unusable.
func (e *MemoryEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

type memoryConn struct {
	engine *MemoryEngine
	bound  Store
	// staged holds module names whose content is pending deletion, in
	// staging order.
	staged []string
	view   map[string]map[string]string
}

func (c *memoryConn) SwitchStore(_ context.Context, store Store) error {
	c.engine.mu.RLock()
	defer c.engine.mu.RUnlock()
	if c.engine.closed {
		return ErrClosed
	}
	if _, ok := c.engine.data[store]; !ok {
		return fmt.Errorf("%w: %v", ErrUnknownStore, store)
	}
	c.bound = store
	c.staged = nil
	c.view = nil
	return nil
}

func (c *memoryConn) Refresh(_ context.Context) error {
	c.engine.mu.RLock()
	defer c.engine.mu.RUnlock()
	if c.engine.closed {
		return ErrClosed
	}
	view := map[string]map[string]string{}
	for module, nodes := range c.engine.data[c.bound] {
		cp := make(map[string]string, len(nodes))
		for p, v := range nodes {
			cp[p] = v
		}
		view[module] = cp
	}
	c.view = view
	return nil
}

func (c *memoryConn) DeleteModule(_ context.Context, module string) error {
	c.engine.mu.RLock()
	defer c.engine.mu.RUnlock()
	if c.engine.closed {
		return ErrClosed
	}
	if module == "" {
		return fmt.Errorf("datastore: delete of empty module name")
	}
	for _, staged := range c.staged {
		if staged == module {
			return nil
		}
	}
	c.staged = append(c.staged, module)
	return nil
}

func (c *memoryConn) Commit(_ context.Context) error {
	c.engine.mu.Lock()
	defer c.engine.mu.Unlock()
	if c.engine.closed {
		return ErrClosed
	}
	store := c.engine.data[c.bound]
	for _, module := range c.staged {
		delete(store, module)
	}
	c.staged = nil
	return nil
}

func (c *memoryConn) DiscardChanges(_ context.Context) {
	c.staged = nil
}
