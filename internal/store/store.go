// Package store persists generated knowledge: for every principal topic, the
// connections of each idea explored under it.
package store

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownBackend = errors.New("unknown store backend")

type Store interface {
	// Topics lists the principal topics, sorted.
	Topics(ctx context.Context) ([]string, error)
	// Load returns the stored connections of idea under principal, or nil if there
	// are none.
	Load(ctx context.Context, principal, idea string) (Connections, error)
	// Save stores conns for idea under principal. Empty connections are not saved.
	Save(ctx context.Context, principal, idea string, conns Connections) error
	Close() error
}

// Watcher is implemented by stores that can report changes made behind their back.
type Watcher interface {
	Watch(ctx context.Context, changed func(principal string)) error
}

// Open creates the store named by backend ("fs" or "sqlite") at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "fs":
		return NewFS(path)
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
