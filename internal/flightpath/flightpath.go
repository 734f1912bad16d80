// Package flightpath provides flight path consumers for the route manager:
// a Log consumer that keeps and reports the received route, and a Recorder
// that persists the route before forwarding it to the real consumer.
package flightpath

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/vrflight/routes/internal/scene"
)

// Consumer matches route.FlightPathConsumer.
type Consumer interface {
	SetRoutePoints(points []*scene.Node)
}

// RouteWriter persists a published route.
type RouteWriter interface {
	WriteRoute(ctx context.Context, points []*scene.Node) error
}

// Log keeps the last route it received and logs every waypoint.
type Log struct {
	log *slog.Logger

	mu     sync.RWMutex
	points []*scene.Node
	calls  int
}

// NewLog creates a logging consumer.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) SetRoutePoints(points []*scene.Node) {
	l.mu.Lock()
	l.points = points
	l.calls++
	l.mu.Unlock()

	l.log.Info("Flight path received", "waypoints", len(points))
	for i, p := range points {
		pos := p.Position()
		l.log.Debug("Waypoint", "index", i, "label", p.Name(), "x", pos.X(), "y", pos.Y(), "z", pos.Z())
	}
}

// Points returns a copy of the last route received.
func (l *Log) Points() []*scene.Node {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.points)
}

// Calls returns how many routes have been received.
func (l *Log) Calls() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.calls
}

// Recorder writes the route through a RouteWriter, then forwards it to Next.
// A write failure is logged and does not stop delivery.
type Recorder struct {
	Writer  RouteWriter
	Next    Consumer
	Timeout time.Duration
	Logger  *slog.Logger
}

func (r *Recorder) SetRoutePoints(points []*scene.Node) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := r.Writer.WriteRoute(ctx, points); err != nil {
		r.logger().Error("Failed to record flight path", "waypoints", len(points), "error", err)
	}
	if r.Next != nil {
		r.Next.SetRoutePoints(points)
	}
}

func (r *Recorder) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
