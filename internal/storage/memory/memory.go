// internal/storage/memory/memory.go
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/vrflight/routes/pkg/core"
)

// Backend keeps route records in memory, in insertion order
type Backend struct {
	mu      sync.RWMutex
	records []core.RouteRecord
}

// New creates a memory backend holding records.
func New(records ...core.RouteRecord) *Backend {
	b := &Backend{}
	b.append(records)
	return b
}

// GetRoutes returns a copy of the stored records.
func (b *Backend) GetRoutes(ctx context.Context) ([]core.RouteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.RouteRecord, len(b.records))
	for i, r := range b.records {
		r.Properties = maps.Clone(r.Properties)
		out[i] = r
	}
	return out, nil
}

// Seed appends records.
func (b *Backend) Seed(ctx context.Context, records []core.RouteRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.append(records)
	return nil
}

func (b *Backend) append(records []core.RouteRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range records {
		r.Properties = maps.Clone(r.Properties)
		b.records = append(b.records, r)
	}
}

// Len returns the number of stored records.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Close is a no-op
func (b *Backend) Close() error {
	return nil
}
