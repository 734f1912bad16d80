// Package route turns an unordered set of waypoint records into an ordered
// sequence of scene entities and hands that sequence to a flight path consumer.
package route

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/vrflight/routes/internal/geo"
	"github.com/vrflight/routes/internal/logging"
	"github.com/vrflight/routes/internal/scene"
	"github.com/vrflight/routes/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	// GroundLevel is the height every route entity is placed at.
	GroundLevel = 0.0
	// DefaultLabelPrefix is prepended to a record id to name its entity.
	DefaultLabelPrefix = "Route_"
)

// ErrAlreadyInitialized is returned by Initialize once the manager is Ready
var ErrAlreadyInitialized = errors.New("route manager already initialized")

// DataStore supplies route records in arbitrary order.
type DataStore interface {
	GetRoutes(ctx context.Context) ([]core.RouteRecord, error)
}

// FlightPathConsumer receives the ordered route. The slice is the consumer's
// own copy; the nodes it points to belong to the scene.
type FlightPathConsumer interface {
	SetRoutePoints(points []*scene.Node)
}

// Materializer creates and removes positioned, labeled scene objects.
type Materializer interface {
	Instantiate(prototype, parent *scene.Node, position mgl64.Vec3, label string, props map[string]any) (*scene.Node, error)
	Destroy(node *scene.Node) error
}

// State is the manager's lifecycle state
type State int

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Dependencies holds everything the manager reads from or writes to.
// Consumer may be nil, in which case the route is built but not delivered.
type Dependencies struct {
	Store       DataStore
	Scene       Materializer
	Prototype   *scene.Node
	Parent      *scene.Node
	Consumer    FlightPathConsumer
	LabelPrefix string
	LogManager  *logging.SlogManager
	Meter       metric.Meter
}

// Manager builds the ordered route once and publishes it.
type Manager struct {
	deps Dependencies

	mu     sync.Mutex
	state  State
	points []*scene.Node

	materialized metric.Int64Counter
	skipped      metric.Int64Counter
}

// New creates a manager in the Uninitialized state.
func New(deps Dependencies) *Manager {
	if deps.LabelPrefix == "" {
		deps.LabelPrefix = DefaultLabelPrefix
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Meter == nil {
		deps.Meter = noop.Meter{}
	}

	m := &Manager{deps: deps}

	// instrument creation only fails on invalid names; fall back to no-ops
	var err error
	m.materialized, err = deps.Meter.Int64Counter("routes.materialized",
		metric.WithDescription("Route entities created"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		m.materialized = noop.Int64Counter{}
	}
	m.skipped, err = deps.Meter.Int64Counter("routes.initialize.skipped",
		metric.WithDescription("Initialize calls that found no route data"),
	)
	if err != nil {
		m.skipped = noop.Int64Counter{}
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Points returns a copy of the ordered route built by Initialize.
func (m *Manager) Points() []*scene.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.points)
}

// Initialize reads the route records, sorts them by id, creates one entity
// per record and publishes the ordered entities to the consumer.
//
// Missing or empty data and a missing consumer are reported through the log
// only. A materialization failure removes the entities created so far,
// leaves the manager Uninitialized and is returned. Once Ready, further calls
// return ErrAlreadyInitialized without touching the scene or the consumer.
func (m *Manager) Initialize(ctx context.Context) error {
	points, err := m.build(ctx)
	if err != nil || len(points) == 0 {
		return err
	}

	// the consumer may call back into the manager, so m.mu is not held here
	log := m.deps.LogManager.Logger()
	positions := make([]mgl64.Vec3, len(points))
	for i, p := range points {
		positions[i] = p.Position()
	}
	log.Info("Created route points",
		"count", len(points),
		"first", points[0].Name(),
		"last", points[len(points)-1].Name(),
		"length", geo.PathLength(positions),
	)

	if m.deps.Consumer == nil {
		log.Warn("No flight path consumer registered, route kept but not published", "count", len(points))
		return nil
	}
	m.deps.Consumer.SetRoutePoints(slices.Clone(points))
	log.Debug("Published route to flight path consumer", "count", len(points))
	return nil
}

// build runs the locked part of Initialize. It returns the created points,
// or none when there was nothing to create.
func (m *Manager) build(ctx context.Context) ([]*scene.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.deps.LogManager.Logger()

	if m.state == StateReady {
		log.Warn("Route manager already initialized, ignoring", "points", len(m.points))
		return nil, ErrAlreadyInitialized
	}

	records, err := m.deps.Store.GetRoutes(ctx)
	if err != nil {
		log.Warn("Route data unavailable, no route created", "error", err)
		m.skip(ctx, "unavailable")
		return nil, nil
	}
	if len(records) == 0 {
		log.Warn("No route data found, no route created")
		m.skip(ctx, "empty")
		return nil, nil
	}

	sorted := SortRecords(records)

	points := make([]*scene.Node, 0, len(sorted))
	for _, rec := range sorted {
		pos := mgl64.Vec3{rec.X, GroundLevel, rec.Z}
		node, err := m.deps.Scene.Instantiate(m.deps.Prototype, m.deps.Parent, pos, m.deps.LabelPrefix+rec.ID, rec.Properties)
		if err != nil {
			m.rollback(points)
			log.Error("Failed to materialize route point", "id", rec.ID, "created", len(points), "error", err)
			return nil, fmt.Errorf("materializing route point %q: %w", rec.ID, err)
		}
		points = append(points, node)
	}

	m.points = points
	m.state = StateReady
	m.materialized.Add(ctx, int64(len(points)))
	return points, nil
}

// SortRecords returns a copy of records stably sorted by ordinal id.
// Go strings compare byte-wise, which for UTF-8 is code point order.
func SortRecords(records []core.RouteRecord) []core.RouteRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b core.RouteRecord) int {
		return strings.Compare(a.ID, b.ID)
	})
	return sorted
}

func (m *Manager) rollback(created []*scene.Node) {
	log := m.deps.LogManager.Logger()
	for i := len(created) - 1; i >= 0; i-- {
		if err := m.deps.Scene.Destroy(created[i]); err != nil {
			log.Error("Failed to remove partially created route point", "name", created[i].Name(), "error", err)
		}
	}
}

func (m *Manager) skip(ctx context.Context, reason string) {
	m.state = StateReady
	m.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
