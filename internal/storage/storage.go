// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vrflight/routes/pkg/core"
)

// ErrUnknownBackend is returned for an unrecognised storage.type
var ErrUnknownBackend = errors.New("unknown storage type")

// Store is the route data store all backends must satisfy.
// GetRoutes returns the full collection in no particular order.
type Store interface {
	GetRoutes(ctx context.Context) ([]core.RouteRecord, error)
	Close() error
}

// Seeder is an optional interface for stores that can import records.
type Seeder interface {
	Seed(ctx context.Context, records []core.RouteRecord) error
}

// Type names a storage backend
type Type string

const (
	TypeMemory   Type = "memory"
	TypeFile     Type = "file"
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
)

// ParseType validates a storage.type config value.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeMemory, TypeFile, TypeSQLite, TypePostgres:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}
