package route

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrflight/routes/internal/logging"
	"github.com/vrflight/routes/internal/scene"
	"github.com/vrflight/routes/internal/storage/memory"
	"github.com/vrflight/routes/pkg/core"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// recordingConsumer remembers every SetRoutePoints call.
type recordingConsumer struct {
	calls [][]*scene.Node
}

func (c *recordingConsumer) SetRoutePoints(points []*scene.Node) {
	c.calls = append(c.calls, points)
}

// readBackConsumer queries the manager from inside SetRoutePoints.
type readBackConsumer struct {
	m      *Manager
	points []*scene.Node
	state  State
}

func (c *readBackConsumer) SetRoutePoints([]*scene.Node) {
	c.points = c.m.Points()
	c.state = c.m.State()
}

type failingStore struct{ err error }

func (s failingStore) GetRoutes(context.Context) ([]core.RouteRecord, error) {
	return nil, s.err
}

// flakyScene fails the nth Instantiate call (1-based).
type flakyScene struct {
	*scene.Graph
	failAt int
	calls  int
}

func (f *flakyScene) Instantiate(prototype, parent *scene.Node, pos mgl64.Vec3, label string, props map[string]any) (*scene.Node, error) {
	f.calls++
	if f.calls == f.failAt {
		return nil, errors.New("out of scene slots")
	}
	return f.Graph.Instantiate(prototype, parent, pos, label, props)
}

type fixture struct {
	graph    *scene.Graph
	parent   *scene.Node
	consumer *recordingConsumer
	logs     *bytes.Buffer
	deps     Dependencies
}

func newFixture(t *testing.T, records ...core.RouteRecord) *fixture {
	t.Helper()
	g := scene.NewGraph()
	proto, err := g.Add(nil, "RoutePoint", mgl64.Vec3{}, map[string]any{"mesh": "beacon"})
	require.NoError(t, err)
	parent := g.FindOrAdd("Routes")

	logs := &bytes.Buffer{}
	lm := logging.NewSlogManager()
	lm.Setup(logs, "debug", nil)

	consumer := &recordingConsumer{}
	return &fixture{
		graph:    g,
		parent:   parent,
		consumer: consumer,
		logs:     logs,
		deps: Dependencies{
			Store:      memory.New(records...),
			Scene:      g,
			Prototype:  proto,
			Parent:     parent,
			Consumer:   consumer,
			LogManager: lm,
		},
	}
}

func names(points []*scene.Node) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.Name()
	}
	return out
}

func TestInitialize_ConcreteScenario(t *testing.T) {
	f := newFixture(t,
		core.RouteRecord{ID: "R2", X: 10, Z: 0},
		core.RouteRecord{ID: "R10", X: 5, Z: 5},
		core.RouteRecord{ID: "R1", X: 0, Z: 0},
	)
	m := New(f.deps)

	require.NoError(t, m.Initialize(context.Background()))

	points := m.Points()
	assert.Equal(t, []string{"Route_R1", "Route_R10", "Route_R2"}, names(points))
	assert.Equal(t, mgl64.Vec3{0, 0, 0}, points[0].Position())
	assert.Equal(t, mgl64.Vec3{5, 0, 5}, points[1].Position())
	assert.Equal(t, mgl64.Vec3{10, 0, 0}, points[2].Position())

	require.Len(t, f.consumer.calls, 1)
	assert.Equal(t, points, f.consumer.calls[0])
	assert.Equal(t, StateReady, m.State())
	assert.Contains(t, f.logs.String(), "Created route points")
	assert.Contains(t, f.logs.String(), "count=3")
}

func TestInitialize_OrdinalOrdering(t *testing.T) {
	ids := []string{"b", "A", "é", "a", "Z", "10", "9", "a0", "", "ä"}
	var records []core.RouteRecord
	for i, id := range ids {
		records = append(records, core.RouteRecord{ID: id, X: float64(i)})
	}
	f := newFixture(t, records...)
	m := New(f.deps)

	require.NoError(t, m.Initialize(context.Background()))

	assert.Equal(t, []string{
		"Route_", "Route_10", "Route_9", "Route_A", "Route_Z",
		"Route_a", "Route_a0", "Route_b", "Route_ä", "Route_é",
	}, names(m.Points()))
}

func TestInitialize_StableForEqualIDs(t *testing.T) {
	f := newFixture(t,
		core.RouteRecord{ID: "B", X: 1},
		core.RouteRecord{ID: "A", X: 2},
		core.RouteRecord{ID: "B", X: 3},
		core.RouteRecord{ID: "A", X: 4},
		core.RouteRecord{ID: "B", X: 5},
	)
	m := New(f.deps)

	require.NoError(t, m.Initialize(context.Background()))

	var xs []float64
	for _, p := range m.Points() {
		xs = append(xs, p.Position().X())
	}
	assert.Equal(t, []float64{2, 4, 1, 3, 5}, xs)
	assert.Equal(t, []string{"Route_A", "Route_A", "Route_B", "Route_B", "Route_B"}, names(m.Points()))
}

func TestInitialize_Cardinality(t *testing.T) {
	var records []core.RouteRecord
	for i := 99; i >= 0; i-- {
		records = append(records, core.RouteRecord{ID: fmt.Sprintf("WP%03d", i), X: float64(i), Z: float64(-i)})
	}
	f := newFixture(t, records...)
	m := New(f.deps)

	require.NoError(t, m.Initialize(context.Background()))

	points := m.Points()
	require.Len(t, points, 100)
	assert.Len(t, f.parent.Children(), 100)
	for i, p := range points {
		assert.Equal(t, fmt.Sprintf("Route_WP%03d", i), p.Name())
		assert.Equal(t, mgl64.Vec3{float64(i), GroundLevel, float64(-i)}, p.Position())
		assert.Equal(t, "RoutePoint", p.Prototype())
		assert.Equal(t, f.parent, p.Parent())
	}
}

func TestInitialize_EmptyInput(t *testing.T) {
	f := newFixture(t)
	before := f.graph.Len()
	m := New(f.deps)

	require.NoError(t, m.Initialize(context.Background()))

	assert.Empty(t, m.Points())
	assert.Equal(t, before, f.graph.Len())
	assert.Empty(t, f.consumer.calls)
	assert.Contains(t, f.logs.String(), "level=WARN")
	assert.Contains(t, f.logs.String(), "No route data found")
	assert.Equal(t, StateReady, m.State())
}

func TestInitialize_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.deps.Store = failingStore{err: errors.New("connection refused")}
	before := f.graph.Len()
	m := New(f.deps)

	require.NoError(t, m.Initialize(context.Background()))

	assert.Empty(t, m.Points())
	assert.Equal(t, before, f.graph.Len())
	assert.Empty(t, f.consumer.calls)
	assert.Contains(t, f.logs.String(), "Route data unavailable")
	assert.Contains(t, f.logs.String(), "connection refused")
}

func TestInitialize_NoConsumer(t *testing.T) {
	f := newFixture(t,
		core.RouteRecord{ID: "R2", X: 10},
		core.RouteRecord{ID: "R1"},
	)
	f.deps.Consumer = nil
	m := New(f.deps)

	require.NoError(t, m.Initialize(context.Background()))

	assert.Equal(t, []string{"Route_R1", "Route_R2"}, names(m.Points()))
	assert.Len(t, f.parent.Children(), 2)
	assert.Empty(t, f.consumer.calls)
	assert.Contains(t, f.logs.String(), "No flight path consumer registered")
}

func TestInitialize_ConsumerGetsOwnCopy(t *testing.T) {
	f := newFixture(t,
		core.RouteRecord{ID: "B"},
		core.RouteRecord{ID: "A"},
	)
	m := New(f.deps)
	require.NoError(t, m.Initialize(context.Background()))

	received := f.consumer.calls[0]
	received[0], received[1] = received[1], received[0]

	assert.Equal(t, []string{"Route_A", "Route_B"}, names(m.Points()))

	points := m.Points()
	points[0] = nil
	assert.NotNil(t, m.Points()[0])
}

func TestInitialize_SecondCallRejected(t *testing.T) {
	f := newFixture(t, core.RouteRecord{ID: "R1"})
	m := New(f.deps)
	require.NoError(t, m.Initialize(context.Background()))
	first := m.Points()

	err := m.Initialize(context.Background())

	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	assert.Len(t, f.parent.Children(), 1)
	assert.Len(t, f.consumer.calls, 1)
	assert.Equal(t, first, m.Points())
}

func TestInitialize_MaterializationFailureRollsBack(t *testing.T) {
	f := newFixture(t,
		core.RouteRecord{ID: "C"},
		core.RouteRecord{ID: "A"},
		core.RouteRecord{ID: "B"},
	)
	flaky := &flakyScene{Graph: f.graph, failAt: 3}
	f.deps.Scene = flaky
	before := f.graph.Len()
	m := New(f.deps)

	err := m.Initialize(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"C"`)
	assert.Contains(t, err.Error(), "out of scene slots")
	assert.Equal(t, before, f.graph.Len())
	assert.Empty(t, f.parent.Children())
	assert.Empty(t, m.Points())
	assert.Empty(t, f.consumer.calls)
	assert.Equal(t, StateUninitialized, m.State())

	// a retry after the failure can succeed
	flaky.failAt = 0
	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, []string{"Route_A", "Route_B", "Route_C"}, names(m.Points()))
	assert.Len(t, f.consumer.calls, 1)
}

func TestInitialize_ConsumerReadsManagerBack(t *testing.T) {
	f := newFixture(t, core.RouteRecord{ID: "R2"}, core.RouteRecord{ID: "R1"})
	c := &readBackConsumer{}
	f.deps.Consumer = c
	m := New(f.deps)
	c.m = m

	done := make(chan error, 1)
	go func() { done <- m.Initialize(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Initialize did not return while the consumer read the manager")
	}
	assert.Equal(t, []string{"Route_R1", "Route_R2"}, names(c.points))
	assert.Equal(t, StateReady, c.state)
}

func TestInitialize_PropertiesAndPrefix(t *testing.T) {
	f := newFixture(t, core.RouteRecord{ID: "R1", Properties: map[string]any{"altitude": 250.0}})
	f.deps.LabelPrefix = "WP_"
	m := New(f.deps)

	require.NoError(t, m.Initialize(context.Background()))

	p := m.Points()[0]
	assert.Equal(t, "WP_R1", p.Name())
	assert.Equal(t, map[string]any{"mesh": "beacon", "altitude": 250.0}, p.Properties())
}

func TestInitialize_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	f := newFixture(t, core.RouteRecord{ID: "A"}, core.RouteRecord{ID: "B"})
	f.deps.Meter = provider.Meter("route-test")
	m := New(f.deps)
	require.NoError(t, m.Initialize(context.Background()))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "routes.materialized" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), total)
}

func TestSortRecords_DoesNotMutateInput(t *testing.T) {
	in := []core.RouteRecord{{ID: "b"}, {ID: "a"}}

	out := SortRecords(in)

	assert.Equal(t, "b", in[0].ID)
	assert.Equal(t, []core.RouteRecord{{ID: "a"}, {ID: "b"}}, out)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "State(7)", State(7).String())
}
