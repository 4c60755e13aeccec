package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/app"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/config"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/health"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/server"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/jobqueue"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/logger"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/metrics"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()
	qcfg := jobqueue.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "export-worker",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	// the worker always forwards to the engine unless told to write files
	kind := config.SinkEngine
	if cfg.SinkKind == config.SinkFile {
		kind = config.SinkFile
	}
	sk, err := app.NewSink(kind, cfg, appLog)
	if err != nil {
		appLog.Error("export sink setup failed", "err", err)
		return 1
	}
	defer func() { _ = sk.Close() }()

	prov := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Path:    os.Getenv("METRICS_PATH"),
		Build:   metrics.BuildInfo{Version: Version},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := jobqueue.New(qcfg, sk, appLog)

	router := server.Router(appLog, server.Options{
		Ready:       health.Readiness(consumer),
		Metrics:     prov.Handler(),
		MetricsPath: prov.Path(),
	})
	srvErr := make(chan error, 1)
	addr := os.Getenv("WORKER_ADDR")
	if addr == "" {
		addr = ":8091"
	}
	go func() { srvErr <- server.Run(ctx, addr, appLog, router) }()

	appLog.Info("starting export worker",
		"version", Version, "sink", sk.Name(), "topic", qcfg.Topic, "group", qcfg.GroupID)

	if err := consumer.Start(ctx); err != nil {
		appLog.Error("export worker failed", "err", err)
		return 1
	}

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("probe server exited with error", "err", err)
			return 1
		}
	case <-time.After(15 * time.Second):
		appLog.Warn("probe server did not stop in time")
	}
	appLog.Info("export worker stopped")
	return 0
}
