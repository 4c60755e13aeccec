// Package planner turns a resolved selection into export jobs: one raster
// job per checked period and one area table covering all of them.
package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/area"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/catalog"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/observability"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/geom"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/slug"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/zonal"
)

const (
	DefaultFolder = "MAPBIOMAS-EXPORT"
	RasterFormat  = "GeoTIFF"
	TableFormat   = "CSV"
	AreaSuffix    = "area"

	// every pixel inside the boundary belongs to this territory
	BoundaryTerritory model.TerritoryID = "1"
)

// Selection is everything planning needs, passed forward explicitly.
type Selection struct {
	Region       string
	Collection   string
	Dataset      *catalog.Dataset
	Boundary     *model.BoundaryFeature
	BufferMeters float64
	Periods      []model.Period
}

type Planner struct {
	engine    zonal.Engine
	unit      area.Unit
	folder    string
	scale     int
	maxPixels float64
	log       *slog.Logger
}

type Option func(*Planner)

func WithUnit(u area.Unit) Option      { return func(p *Planner) { p.unit = u } }
func WithFolder(f string) Option       { return func(p *Planner) { p.folder = f } }
func WithLogger(l *slog.Logger) Option { return func(p *Planner) { p.log = l } }
func WithScale(scale int) Option       { return func(p *Planner) { p.scale = scale } }
func WithMaxPixels(n float64) Option   { return func(p *Planner) { p.maxPixels = n } }

func New(engine zonal.Engine, opts ...Option) *Planner {
	p := &Planner{
		engine:    engine,
		unit:      area.SquareKilometers,
		folder:    DefaultFolder,
		scale:     zonal.DefaultScale,
		maxPixels: zonal.DefaultMaxPixels,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.folder == "" {
		p.folder = DefaultFolder
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

func (p *Planner) Unit() area.Unit { return p.unit }

// PlanRasterJobs emits one job per period of sel.Periods, in that order.
// The same buffer distance expands the clip geometry and the job region.
func (p *Planner) PlanRasterJobs(sel Selection) (jobs []model.RasterJob, err error) {
	defer func() { observability.ObserveExportPlan(string(model.KindRaster), err) }()
	const op = "plan raster jobs"

	if sel.Dataset == nil {
		return nil, precondition(op, "no dataset resolved")
	}
	if len(sel.Periods) == 0 {
		return []model.RasterJob{}, nil
	}
	if sel.Boundary == nil || sel.Boundary.Geometry == nil {
		return nil, invalid(op, "%d period(s) selected but no boundary to clip against", len(sel.Periods))
	}
	if sel.BufferMeters < 0 {
		return nil, invalid(op, "buffer distance %v is negative", sel.BufferMeters)
	}

	ds := sel.Dataset
	seen := make(map[model.Period]struct{}, len(sel.Periods))
	for _, per := range sel.Periods {
		if !ds.HasPeriod(per) {
			return nil, invalid(op, "period %q not available for %s", per, ds.DataType)
		}
		if _, dup := seen[per]; dup {
			return nil, invalid(op, "period %q selected twice", per)
		}
		seen[per] = struct{}{}
	}

	region := geom.BufferedBounds(sel.Boundary.Geometry, sel.BufferMeters)
	jobs = make([]model.RasterJob, 0, len(sel.Periods))
	for _, per := range sel.Periods {
		jobs = append(jobs, model.RasterJob{
			Image:          model.Image{Asset: ds.Asset, Band: ds.Band(per)},
			Period:         per,
			FileName:       slug.FileName(sel.Region, sel.Collection, ds.DataType, sel.Boundary.Name, string(per)),
			Folder:         p.folder,
			Clip:           model.Clip{Geometry: sel.Boundary.Geometry, BufferMeters: sel.BufferMeters},
			Region:         region,
			Scale:          p.scale,
			MaxPixels:      p.maxPixels,
			Format:         RasterFormat,
			FileDimensions: ds.FileDimensions,
		})
	}
	return jobs, nil
}

// TableReport describes how the area table was built.
type TableReport struct {
	Bands  []string    `json:"bands"`
	Rows   int         `json:"rows"`
	Unit   area.Unit   `json:"unit"`
	Misses []area.Miss `json:"annotation_misses,omitempty"`
}

// PlanAreaTableJob reduces every raster job band over the boundary and
// returns exactly one table job holding the rows of all bands, band-major.
// Class ids without a name are labelled area.UnknownClass and reported in
// the TableReport instead of failing the call.
func (p *Planner) PlanAreaTableJob(ctx context.Context, sel Selection, rasterJobs []model.RasterJob) (job model.TableJob, rep TableReport, err error) {
	defer func() { observability.ObserveExportPlan(string(model.KindTable), err) }()
	const op = "plan area table"

	if sel.Dataset == nil {
		return model.TableJob{}, TableReport{}, precondition(op, "no dataset resolved")
	}
	if sel.Boundary == nil || sel.Boundary.Geometry == nil {
		return model.TableJob{}, TableReport{}, precondition(op, "no boundary resolved")
	}
	if p.engine == nil {
		return model.TableJob{}, TableReport{}, precondition(op, "no zonal engine configured")
	}
	if err := p.unit.Validate(); err != nil {
		return model.TableJob{}, TableReport{}, precondition(op, "%v", err)
	}

	ds := sel.Dataset
	territory := zonal.Territory{ID: BoundaryTerritory, Geometry: sel.Boundary.Geometry}
	bounds := geom.ToBBox(sel.Boundary.Geometry.Bound())

	rows := []model.AnnotatedArea{}
	rep = TableReport{Bands: make([]string, 0, len(rasterJobs)), Unit: p.unit}
	for _, rj := range rasterJobs {
		band := rj.Image.Band
		g, err := p.engine.ReduceGroupedArea(ctx, zonal.Request{
			Image:     rj.Image,
			Territory: territory,
			Region:    bounds,
			Scale:     p.scale,
			MaxPixels: p.maxPixels,
			Factor:    p.unit.Factor,
		})
		if err != nil {
			return model.TableJob{}, TableReport{}, fmt.Errorf("%s: band %s: %w: %w", op, band, ErrCollaborator, err)
		}

		annotated, misses := area.Annotate(area.Aggregate(g, p.unit.Name), ds.ClassNames, band)
		rows = append(rows, annotated...)
		rep.Bands = append(rep.Bands, band)
		rep.Misses = append(rep.Misses, misses...)
	}
	rep.Rows = len(rows)

	if len(rep.Misses) > 0 {
		observability.AddAnnotationMisses(ds.DataType, len(rep.Misses))
		p.log.WarnContext(ctx, "area rows with unknown class",
			"data_type", ds.DataType, "misses", len(rep.Misses))
	}

	return model.TableJob{
		Rows:     rows,
		FileName: slug.FileName(sel.Region, sel.Collection, ds.DataType, sel.Boundary.Name, AreaSuffix),
		Folder:   p.folder,
		Format:   TableFormat,
	}, rep, nil
}
