package zonal

import (
	"context"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/area"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/observability"
)

type instrumented struct {
	name string
	next Engine
	log  *slog.Logger
}

// Instrument wraps e so every reduction is validated, timed and counted
// under the engine label name.
func Instrument(name string, e Engine, log *slog.Logger) Engine {
	if log == nil {
		log = slog.Default()
	}
	return &instrumented{name: name, next: e, log: log}
}

func (i *instrumented) ReduceGroupedArea(ctx context.Context, req Request) (area.Grouped, error) {
	if err := req.Validate(); err != nil {
		observability.ObserveZonal(i.name, err, 0)
		return area.Grouped{}, err
	}
	start := time.Now()
	g, err := i.next.ReduceGroupedArea(ctx, req)
	dur := time.Since(start)
	observability.ObserveZonal(i.name, err, dur.Seconds())
	if err != nil {
		i.log.WarnContext(ctx, "zonal reduction failed",
			"engine", i.name, "band", req.Image.Band, "err", err)
		return area.Grouped{}, err
	}
	i.log.DebugContext(ctx, "zonal reduction",
		"engine", i.name, "band", req.Image.Band,
		"territories", len(g.Groups), "duration", dur)
	return g, nil
}
