// Package app assembles the collaborators both binaries share: the zonal
// engine stack and the export sink, chosen by configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/cache/redisstore"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/config"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/httpclient"
	h3mapper "github.com/mohammed-shakir/irrigation-export-toolkit/internal/mapper/h3"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/sink"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/sink/enginesink"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/sink/filesink"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/sink/kafkasink"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/zonal"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/zonal/cached"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/zonal/h3engine"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/zonal/httpengine"
)

// Engine is the configured zonal engine plus the Redis client behind its
// cache, if any. Close releases the client.
type Engine struct {
	zonal.Engine
	Redis *redisstore.Client
}

func (e *Engine) Close() error {
	if e.Redis == nil {
		return nil
	}
	return e.Redis.Close()
}

// NewEngine builds the base engine named by cfg.EngineKind, instruments it
// and, when enabled, puts the result cache in front of it.
func NewEngine(ctx context.Context, cfg config.Config, log *slog.Logger) (*Engine, error) {
	var base zonal.Engine
	switch cfg.EngineKind {
	case config.EngineHTTP:
		e, err := httpengine.New(cfg.EngineURL, httpclient.NewOutbound(cfg.EngineTimeout))
		if err != nil {
			return nil, err
		}
		base = e
	case config.EngineH3:
		e, err := h3engine.New(h3mapper.New(), cfg.H3Res)
		if err != nil {
			return nil, err
		}
		bands, err := e.LoadDir(cfg.H3DataDir)
		if err != nil {
			return nil, fmt.Errorf("load h3 bands: %w", err)
		}
		log.Info("h3 engine ready", "res", cfg.H3Res, "dir", cfg.H3DataDir, "bands", len(bands))
		base = e
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.EngineKind)
	}

	out := &Engine{Engine: zonal.Instrument(cfg.EngineKind, base, log)}
	if !cfg.ZonalCache.Enabled {
		return out, nil
	}

	opts := cached.Options{
		LRUSize:   cfg.ZonalCache.LRUSize,
		TTL:       cfg.ZonalCache.TTL,
		OpTimeout: cfg.ZonalCache.OpTimeout,
		Logger:    log,
	}
	if cfg.ZonalCache.RedisAddr != "" {
		rc, err := redisstore.New(ctx, cfg.ZonalCache.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("zonal cache: %w", err)
		}
		out.Redis = rc
		opts.Store = rc
	}
	c, err := cached.New(out.Engine, opts)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	out.Engine = c
	return out, nil
}

// Sink is the configured export sink. Close flushes and releases it.
type Sink struct {
	sink.Sink
	close func() error
}

func (s *Sink) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func NewSink(kind string, cfg config.Config, log *slog.Logger) (*Sink, error) {
	switch kind {
	case config.SinkEngine:
		s, err := enginesink.New(cfg.EngineURL, httpclient.NewOutbound(cfg.EngineTimeout))
		if err != nil {
			return nil, err
		}
		return &Sink{Sink: s}, nil
	case config.SinkFile:
		s, err := filesink.New(cfg.SinkDir)
		if err != nil {
			return nil, err
		}
		return &Sink{Sink: s}, nil
	case config.SinkKafka:
		p, err := kafkasink.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return nil, err
		}
		return &Sink{Sink: p, close: p.Close}, nil
	}
	return nil, errors.New("unknown sink kind " + kind)
}
