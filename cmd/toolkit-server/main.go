package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/api"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/app"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/area"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/boundary"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/catalog"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/config"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/health"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/server"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/exporter"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/logger"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/metrics"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/planner"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	sinkFlag := flag.String("sink", "", "export sink (kafka, engine, file); overrides SINK_KIND")
	flag.Parse()

	cfg := config.FromEnv()
	if *sinkFlag != "" {
		cfg.SinkKind = *sinkFlag
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "toolkit-server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	if err := cfg.Validate(); err != nil {
		appLog.Error("invalid configuration", "err", err)
		return 1
	}
	unit, ok := area.UnitByName(cfg.AreaUnit)
	if !ok {
		appLog.Error("invalid configuration", "err", "unknown AREA_UNIT "+cfg.AreaUnit)
		return 1
	}

	prov := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Path:    os.Getenv("METRICS_PATH"),
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		appLog.Error("catalog load failed", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := app.NewEngine(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("zonal engine setup failed", "err", err)
		return 1
	}
	defer func() { _ = engine.Close() }()

	sk, err := app.NewSink(cfg.SinkKind, cfg, appLog)
	if err != nil {
		appLog.Error("export sink setup failed", "err", err)
		return 1
	}
	defer func() {
		if err := sk.Close(); err != nil {
			appLog.Error("export sink close", "err", err)
		}
	}()

	store := boundary.NewStore(cfg.BoundaryDir)
	p := planner.New(engine,
		planner.WithUnit(unit),
		planner.WithFolder(cfg.ExportFolder),
		planner.WithLogger(appLog),
	)
	pipeline := exporter.New(cat, store, p, sk, appLog)
	h := api.New(cat, store, pipeline, appLog)

	deps := map[string]health.Pinger{}
	if engine.Redis != nil {
		deps["redis"] = engine.Redis
	}

	appLog.Info("starting toolkit server",
		"addr", cfg.Addr,
		"version", Version,
		"engine", cfg.EngineKind,
		"sink", cfg.SinkKind,
		"unit", unit.Name,
		"regions", len(cat.Regions))

	router := server.Router(appLog, server.Options{
		Ready:       health.Dependencies(cfg.ZonalCache.OpTimeout*4, deps),
		Metrics:     prov.Handler(),
		MetricsPath: prov.Path(),
		Mount:       h.Routes,
	})
	if err := server.Run(ctx, cfg.Addr, appLog, router); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
