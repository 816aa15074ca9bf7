package datastore

import (
	"fmt"
	"path/filepath"
)

// New creates an Engine based on the backend name.
//
// Supported backends:
//
//	"memory" - in-process, ephemeral (default)
//	"sqlite" - SQLite database at dataDir/config.db
func New(backend, dataDir string) (Engine, error) {
	switch backend {
	case "memory", "":
		return NewMemoryEngine(), nil
	case "sqlite":
		return NewSQLiteEngine(filepath.Join(dataDir, "config.db"))
	default:
		return nil, fmt.Errorf("datastore: unknown backend %q (supported: memory, sqlite)", backend)
	}
}
