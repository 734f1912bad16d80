// Package filestorage implements a read-mostly route store backed by a JSON file.
//
// The file holds an array of records. Each record carries an id and either
// scene coordinates ("x", "z") or WGS84 coordinates ("lon", "lat"), which are
// projected onto the ground plane around the configured origin.
package filestorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vrflight/routes/internal/config"
	"github.com/vrflight/routes/internal/geo"
	"github.com/vrflight/routes/pkg/core"
)

// ErrMissingPosition is returned for a record with neither x/z nor lon/lat
var ErrMissingPosition = errors.New("record has no x/z or lon/lat pair")

type fileRecord struct {
	ID         string         `json:"id"`
	X          *float64       `json:"x,omitempty"`
	Z          *float64       `json:"z,omitempty"`
	Lon        *float64       `json:"lon,omitempty"`
	Lat        *float64       `json:"lat,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Backend reads route records from a JSON file on every GetRoutes call
type Backend struct {
	path      string
	projector *geo.Projector
	mu        sync.Mutex // serialises Seed
}

// New creates a file backend. The file itself is not opened until first use.
func New(cfg config.FileConfig) (*Backend, error) {
	projector, err := geo.NewProjector(cfg.OriginLon, cfg.OriginLat)
	if err != nil {
		return nil, fmt.Errorf("invalid projection origin: %w", err)
	}
	return &Backend{path: cfg.Path, projector: projector}, nil
}

// Path returns the backing file path.
func (b *Backend) Path() string {
	return b.path
}

// GetRoutes reads and decodes the file.
func (b *Backend) GetRoutes(ctx context.Context) ([]core.RouteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := b.read()
	if err != nil {
		return nil, err
	}

	out := make([]core.RouteRecord, 0, len(raw))
	for i, fr := range raw {
		rec, err := b.toCore(fr)
		if err != nil {
			return nil, fmt.Errorf("%s: record %d (%q): %w", b.path, i, fr.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (b *Backend) read() ([]fileRecord, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route file: %w", err)
	}
	var raw []fileRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse route file %s: %w", b.path, err)
	}
	return raw, nil
}

func (b *Backend) toCore(fr fileRecord) (core.RouteRecord, error) {
	rec := core.RouteRecord{ID: fr.ID, Properties: fr.Properties}
	switch {
	case fr.X != nil && fr.Z != nil:
		rec.X, rec.Z = *fr.X, *fr.Z
	case fr.Lon != nil && fr.Lat != nil:
		pos, err := b.projector.Ground(*fr.Lon, *fr.Lat)
		if err != nil {
			return core.RouteRecord{}, err
		}
		rec.X, rec.Z = pos.X, pos.Z
	default:
		return core.RouteRecord{}, ErrMissingPosition
	}
	return rec, nil
}

// Seed appends records to the file, creating it if needed. Records are
// written with scene coordinates.
func (b *Backend) Seed(ctx context.Context, records []core.RouteRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	for _, r := range records {
		x, z := r.X, r.Z
		existing = append(existing, fileRecord{ID: r.ID, X: &x, Z: &z, Properties: r.Properties})
	}

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode route file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".routes-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write route file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write route file: %w", err)
	}
	return os.Rename(tmp.Name(), b.path)
}

// Close is a no-op
func (b *Backend) Close() error {
	return nil
}
