// Package schema models the server's view of the loaded data model: which
// modules exist and what top-level nodes each of them declares. The
// operation layer only ever reads this data.
package schema

import (
	"fmt"
	"sync"
)

// NodeKind classifies a top-level data node of a module.
type NodeKind string

const (
	KindContainer    NodeKind = "container"
	KindList         NodeKind = "list"
	KindLeaf         NodeKind = "leaf"
	KindLeafList     NodeKind = "leaf-list"
	KindAnyXML       NodeKind = "anyxml"
	KindRPC          NodeKind = "rpc"
	KindNotification NodeKind = "notification"
)

// dataKinds are the node kinds that can carry instance data at the top of
// a module subtree.
var dataKinds = map[NodeKind]bool{
	KindContainer: true,
	KindList:      true,
	KindLeaf:      true,
	KindLeafList:  true,
	KindAnyXML:    true,
}

// ParseNodeKind maps a descriptor string onto a NodeKind.
func ParseNodeKind(s string) (NodeKind, error) {
	switch k := NodeKind(s); k {
	case KindContainer, KindList, KindLeaf, KindLeafList, KindAnyXML, KindRPC, KindNotification:
		return k, nil
	}
	return "", fmt.Errorf("schema: unknown node kind %q", s)
}

// NodeDescriptor describes one top-level node of a module.
type NodeDescriptor struct {
	Name     string
	Kind     NodeKind
	ReadOnly bool
}

// Writable reports whether the node can hold configuration data, as
// opposed to state-only or non-data nodes.
func (d NodeDescriptor) Writable() bool {
	return dataKinds[d.Kind] && !d.ReadOnly
}

// Module is one named partition of the data model.
type Module struct {
	Name      string
	Namespace string
	Nodes     []NodeDescriptor
}

// HasWritableData reports whether any top-level node of the module can
// hold configuration data. Modules without such nodes never need to be
// contacted when configuration is erased.
func (m Module) HasWritableData() bool {
	for _, d := range m.Nodes {
		if d.Writable() {
			return true
		}
	}
	return false
}

// Registry holds the loaded modules in a stable order. It is safe for
// concurrent use; Replace swaps the whole module set atomically, which is
// how the file watcher applies reloads.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
	index   map[string]int
}

// NewRegistry builds a registry from the given modules, preserving their
// order. Duplicate module names keep the first occurrence.
func NewRegistry(modules ...Module) *Registry {
	r := &Registry{}
	r.Replace(modules)
	return r
}

// Replace atomically installs a new module set.
func (r *Registry) Replace(modules []Module) {
	index := make(map[string]int, len(modules))
	kept := make([]Module, 0, len(modules))
	for _, m := range modules {
		if _, dup := index[m.Name]; dup {
			continue
		}
		index[m.Name] = len(kept)
		kept = append(kept, m)
	}
	r.mu.Lock()
	r.modules = kept
	r.index = index
	r.mu.Unlock()
}

// Modules returns a snapshot of the module list in registry order.
func (r *Registry) Modules() []Module {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// Lookup returns the module with the given name.
func (r *Registry) Lookup(name string) (Module, bool) {
	if r == nil {
		return Module{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return Module{}, false
	}
	return r.modules[i], true
}

// Len returns the number of loaded modules.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}
