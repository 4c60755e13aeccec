// Package exporter runs one export end to end: it walks a planner.Session
// through the request's selection, plans the raster and area table jobs and
// hands them to a sink.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/boundary"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/catalog"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
	mylog "github.com/mohammed-shakir/irrigation-export-toolkit/internal/logger"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/planner"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/sink"
)

// ErrSubmit wraps sink failures.
var ErrSubmit = errors.New("export submission failed")

type Request struct {
	Region     string          `json:"region"`
	Collection string          `json:"collection"`
	DataType   string          `json:"data_type"`
	Boundary   boundary.Source `json:"boundary"`
	Buffer     string          `json:"buffer,omitempty"`
	Periods    []model.Period  `json:"periods"`
	DryRun     bool            `json:"dry_run,omitempty"`
}

type Result struct {
	ExportID string              `json:"export_id"`
	Boundary string              `json:"boundary"`
	Rasters  []model.RasterJob   `json:"rasters"`
	Table    model.TableJob      `json:"table"`
	Report   planner.TableReport `json:"report"`
	Tickets  []model.Ticket      `json:"tickets"`
	DryRun   bool                `json:"dry_run"`
	Layers   []planner.Layer     `json:"layers,omitempty"`
}

type Pipeline struct {
	cat     *catalog.Catalog
	store   *boundary.Store
	planner *planner.Planner
	sink    sink.Sink
	log     *slog.Logger
}

func New(cat *catalog.Catalog, store *boundary.Store, p *planner.Planner, s sink.Sink, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{cat: cat, store: store, planner: p, sink: s, log: log}
}

func (p *Pipeline) SinkName() string {
	if p.sink == nil {
		return ""
	}
	return p.sink.Name()
}

// Session replays the request's selection on a fresh session. Each step
// fails with the session's own error when the request skips or breaks it.
func (p *Pipeline) Session(req Request) (*planner.Session, error) {
	s := planner.NewSession(p.cat)
	if err := s.SelectRegion(req.Region); err != nil {
		return nil, err
	}
	if err := s.SelectCollection(req.Collection); err != nil {
		return nil, err
	}
	if err := s.SetBuffer(req.Buffer); err != nil {
		return nil, err
	}
	if err := s.SelectBoundarySource(req.Boundary); err != nil {
		return nil, err
	}
	bf, err := p.store.Resolve(s.Region(), req.Boundary)
	if err != nil {
		return nil, fmt.Errorf("resolve boundary: %w", err)
	}
	if err := s.SetBoundary(bf); err != nil {
		return nil, err
	}
	if err := s.SelectDataType(req.DataType); err != nil {
		return nil, err
	}
	for _, period := range req.Periods {
		if err := s.TogglePeriod(period, true); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Run plans the export and, unless req.DryRun, submits every job. When
// submission fails part way the result still lists the tickets already issued.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	id := uuid.NewString()
	ctx = mylog.WithRegion(mylog.WithExportID(ctx, id), req.Region)

	s, err := p.Session(req)
	if err != nil {
		return Result{}, err
	}
	sel, err := s.Selection()
	if err != nil {
		return Result{}, err
	}
	if len(sel.Periods) == 0 {
		return Result{}, &planner.SelectionError{Op: "export", Reason: "no periods selected", Err: planner.ErrInvalidSelection}
	}

	rasters, err := p.planner.PlanRasterJobs(sel)
	if err != nil {
		return Result{}, err
	}
	table, rep, err := p.planner.PlanAreaTableJob(ctx, sel, rasters)
	if err != nil {
		return Result{}, err
	}
	layers, _ := s.Layers()

	res := Result{
		ExportID: id,
		Boundary: sel.Boundary.Label,
		Rasters:  rasters,
		Table:    table,
		Report:   rep,
		Tickets:  []model.Ticket{},
		DryRun:   req.DryRun,
		Layers:   layers,
	}
	if req.DryRun {
		p.log.InfoContext(ctx, "export planned",
			"rasters", len(rasters), "rows", rep.Rows, "dry_run", true, "took", time.Since(start))
		return res, nil
	}
	if p.sink == nil {
		return res, &planner.SelectionError{Op: "export", Reason: "no export sink configured", Err: planner.ErrPrecondition}
	}

	tickets, err := sink.Submit(ctx, p.sink, rasters, &table)
	res.Tickets = append(res.Tickets, tickets...)
	if err != nil {
		p.log.ErrorContext(ctx, "export submission failed",
			"sink", p.sink.Name(), "submitted", len(tickets), "err", err)
		return res, fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	p.log.InfoContext(ctx, "export submitted",
		"sink", p.sink.Name(), "rasters", len(rasters), "rows", rep.Rows, "tickets", len(tickets), "took", time.Since(start))
	return res, nil
}
