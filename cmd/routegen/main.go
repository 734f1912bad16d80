package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/vrflight/routes/internal/config"
	"github.com/vrflight/routes/internal/flightpath"
	"github.com/vrflight/routes/internal/influx"
	"github.com/vrflight/routes/internal/logging"
	intOtel "github.com/vrflight/routes/internal/otel"
	"github.com/vrflight/routes/internal/route"
	"github.com/vrflight/routes/internal/scene"
	"github.com/vrflight/routes/internal/storage"
	filestorage "github.com/vrflight/routes/internal/storage/file"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "routegen"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager = logging.NewSlogManager()

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger = slog.Default()

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()

	closers []func() error
)

func usage() {
	fmt.Fprintf(os.Stderr, `%s %s (built %s)

Usage:
  %s [-config DIR] run              build the flight route and publish it
  %s [-config DIR] import FILE.json add records from FILE.json to the configured store
`, AppName, CurrentVersion, BuildDate, AppName, AppName)
}

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.ConfigFileName)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if err := setup(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer shutdown()

	ctx := context.Background()
	var err error
	switch args[0] {
	case "run":
		err = runRoute(ctx)
	case "import":
		if len(args) < 2 {
			err = errors.New("import: no file given")
			break
		}
		err = importRoutes(ctx, args[1])
	default:
		usage()
		err = fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		Logger.Error("Command failed", "command", args[0], "error", err)
		shutdown()
		os.Exit(1)
	}
}

// setup loads config and brings up logging and telemetry.
func setup(configDir string) error {
	if err := config.Load(configDir); err != nil {
		return err
	}

	logFile, err := logging.OpenLogFile(config.GetString("logsDir"), AppName, SessionStartTime)
	if err != nil {
		return err
	}
	closers = append(closers, logFile.Close)

	otelCfg := config.GetOTelConfig()
	OTelProvider, err = intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to set up OTel: %w", err)
	}

	var extra []slog.Handler
	gl := config.GetGraylogConfig()
	if gl.Enabled {
		h, closeGELF, err := logging.NewGELFHandler(gl.Address, config.GetString("logLevel"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "graylog disabled: %v\n", err)
		} else {
			extra = append(extra, h)
			closers = append(closers, closeGELF)
		}
	}

	SlogManager.Setup(io.MultiWriter(logFile, os.Stdout), config.GetString("logLevel"), OTelProvider.LoggerProvider(), extra...)
	Logger = SlogManager.Logger()
	Logger.Info("Starting", "app", AppName, "version", CurrentVersion, "build", BuildDate)
	return nil
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("OTel shutdown failed", "error", err)
		}
		OTelProvider = nil
	}
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i]()
	}
	closers = nil
}

// buildScene creates the scene graph with the route prototype and parent container.
func buildScene(cfg config.SceneConfig) (*scene.Graph, *scene.Node, *scene.Node, error) {
	g := scene.NewGraph()
	proto, err := g.Add(nil, cfg.Prototype, mgl64.Vec3{}, map[string]any{"template": true})
	if err != nil {
		return nil, nil, nil, err
	}
	parent := g.FindOrAdd(cfg.Parent)
	return g, proto, parent, nil
}

// buildConsumer returns the flight path consumer, wrapped in an InfluxDB
// recorder when influx recording is enabled and reachable.
func buildConsumer(ctx context.Context) (route.FlightPathConsumer, *flightpath.Log) {
	controller := flightpath.NewLog(Logger.With("component", "flightpath"))

	ic := config.GetInfluxConfig()
	if !ic.Enabled {
		return controller, controller
	}
	im := influx.NewManager(ic, Logger)
	if err := im.Connect(ctx); err != nil {
		Logger.Warn("Route recording disabled", "error", err)
		return controller, controller
	}
	closers = append(closers, func() error { im.Close(); return nil })

	return &flightpath.Recorder{Writer: im, Next: controller, Logger: Logger}, controller
}

func runRoute(ctx context.Context) error {
	store, err := createStore(config.GetStorageConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	sc := config.GetSceneConfig()
	graph, proto, parent, err := buildScene(sc)
	if err != nil {
		return err
	}

	consumer, controller := buildConsumer(ctx)

	manager := route.New(route.Dependencies{
		Store:       store,
		Scene:       graph,
		Prototype:   proto,
		Parent:      parent,
		Consumer:    consumer,
		LabelPrefix: sc.LabelPrefix,
		LogManager:  SlogManager,
		Meter:       OTelProvider.Meter("github.com/vrflight/routes/internal/route"),
	})
	if err := manager.Initialize(ctx); err != nil {
		return err
	}

	for i, p := range controller.Points() {
		pos := p.Position()
		fmt.Printf("%3d  %-24s  (%.2f, %.2f, %.2f)\n", i, p.Name(), pos.X(), pos.Y(), pos.Z())
	}
	return nil
}

func importRoutes(ctx context.Context, path string) error {
	sc := config.GetStorageConfig()
	src, err := filestorage.New(config.FileConfig{
		Path:      path,
		OriginLon: sc.File.OriginLon,
		OriginLat: sc.File.OriginLat,
	})
	if err != nil {
		return err
	}
	records, err := src.GetRoutes(ctx)
	if err != nil {
		return err
	}

	store, err := createStore(sc)
	if err != nil {
		return err
	}
	defer store.Close()

	seeder, ok := store.(storage.Seeder)
	if !ok {
		return fmt.Errorf("storage type %q does not support import", sc.Type)
	}
	if err := seeder.Seed(ctx, records); err != nil {
		return err
	}
	Logger.Info("Imported route records", "count", len(records), "from", path, "into", sc.Type)
	return nil
}
