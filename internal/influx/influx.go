package influx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/vrflight/routes/internal/config"
	"github.com/vrflight/routes/internal/scene"
)

// Measurement is the measurement name for published route points.
const Measurement = "route_point"

// Retention applied to a bucket created by Connect.
const bucketRetentionSeconds = 60 * 60 * 24 * 90

// ErrDisabled is returned by Connect when influx.enabled is false
var ErrDisabled = errors.New("influx recording is disabled")

// Manager writes published routes to InfluxDB.
type Manager struct {
	cfg    config.InfluxConfig
	client influxdb2.Client
	writer influxdb2_api.WriteAPIBlocking
	log    *slog.Logger
}

// NewManager creates an unconnected manager.
func NewManager(cfg config.InfluxConfig, log *slog.Logger) *Manager {
	return &Manager{cfg: cfg, log: log}
}

// Connect creates the client, checks the server is up and makes sure the
// organization and bucket exist.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.client = influxdb2.NewClientWithOptions(m.cfg.URL, m.cfg.Token,
		influxdb2.DefaultOptions().SetHTTPRequestTimeout(10),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.client.Close()
		m.client = nil
		if err == nil {
			err = errors.New("server not ready")
		}
		return fmt.Errorf("influxdb at %s unreachable: %w", m.cfg.URL, err)
	}

	if err := m.ensureBucket(ctx); err != nil {
		return err
	}

	m.writer = m.client.WriteAPIBlocking(m.cfg.Org, m.cfg.Bucket)
	m.log.Info("InfluxDB client initialized", "url", m.cfg.URL, "bucket", m.cfg.Bucket)
	return nil
}

func (m *Manager) ensureBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.log.Info("Organization not found, creating", "org", m.cfg.Org)
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %s: %w", m.cfg.Org, err)
		}
	}

	buckets := m.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.log.Info("Bucket not found, creating", "bucket", m.cfg.Bucket)
	rule := domain.RetentionRuleTypeExpire
	_, err = buckets.CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: bucketRetentionSeconds,
	})
	if err != nil {
		return fmt.Errorf("error creating bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

// WriteRoute writes one point per route entity, all stamped with the same time.
func (m *Manager) WriteRoute(ctx context.Context, points []*scene.Node) error {
	if m.writer == nil {
		return errors.New("influx manager not connected")
	}
	if err := m.writer.WritePoint(ctx, RoutePoints(points, time.Now())...); err != nil {
		return fmt.Errorf("failed to write route points: %w", err)
	}
	return nil
}

// Close flushes and closes the client.
func (m *Manager) Close() {
	if m.client != nil {
		m.client.Close()
	}
}

// RoutePoints converts route entities to line protocol points.
func RoutePoints(points []*scene.Node, ts time.Time) []*influxdb2_write.Point {
	out := make([]*influxdb2_write.Point, 0, len(points))
	for i, p := range points {
		pos := p.Position()
		out = append(out, influxdb2.NewPoint(
			Measurement,
			map[string]string{
				"label":     p.Name(),
				"prototype": p.Prototype(),
			},
			map[string]interface{}{
				"index": i,
				"x":     pos.X(),
				"y":     pos.Y(),
				"z":     pos.Z(),
			},
			ts,
		))
	}
	return out
}
