package influx

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrflight/routes/internal/config"
	"github.com/vrflight/routes/internal/scene"
)

func TestRoutePoints(t *testing.T) {
	g := scene.NewGraph()
	proto, _ := g.Add(nil, "RoutePoint", mgl64.Vec3{}, nil)
	a, _ := g.Instantiate(proto, nil, mgl64.Vec3{0, 0, 0}, "Route_R1", nil)
	b, _ := g.Instantiate(proto, nil, mgl64.Vec3{5, 0, 5}, "Route_R10", nil)
	ts := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	pts := RoutePoints([]*scene.Node{a, b}, ts)

	require.Len(t, pts, 2)
	assert.Equal(t, Measurement, pts[1].Name())
	assert.Equal(t, ts, pts[1].Time())

	tags := map[string]string{}
	for _, tag := range pts[1].TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"label": "Route_R10", "prototype": "RoutePoint"}, tags)

	fields := map[string]interface{}{}
	for _, f := range pts[1].FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, int64(1), fields["index"])
	assert.Equal(t, 5.0, fields["x"])
	assert.Equal(t, 0.0, fields["y"])
	assert.Equal(t, 5.0, fields["z"])
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{Enabled: false}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	m.Close()
}

func TestWriteRoute_NotConnected(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := m.WriteRoute(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}
