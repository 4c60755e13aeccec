package exporter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/area"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/boundary"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/catalog"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
	mylog "github.com/mohammed-shakir/irrigation-export-toolkit/internal/logger"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/planner"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/zonal"
)

const stateTable = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"NM_ESTADO": "Acre", "UF": 12},
     "geometry": {"type": "Polygon", "coordinates": [[[-73.99,-11.15],[-66.62,-11.15],[-66.62,-7.11],[-73.99,-7.11],[-73.99,-11.15]]]}},
    {"type": "Feature", "properties": {"NM_ESTADO": "Amapá", "UF": 16},
     "geometry": {"type": "Polygon", "coordinates": [[[-54.9,-1.2],[-49.9,-1.2],[-49.9,4.4],[-54.9,4.4],[-54.9,-1.2]]]}}
  ]
}`

type oneClassEngine struct{}

func (oneClassEngine) ReduceGroupedArea(_ context.Context, req zonal.Request) (area.Grouped, error) {
	return area.Grouped{Groups: []area.TerritoryGroup{{
		Territory: req.Territory.ID,
		Groups:    []area.ClassSum{{Class: 1, Sum: 2.5}, {Class: 9, Sum: 0.5}},
	}}}, nil
}

type recordingSink struct {
	mu        sync.Mutex
	failAfter int
	files     []string
	exportIDs []string
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) take(ctx context.Context, kind model.JobKind, file string) (model.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAfter > 0 && len(r.files) >= r.failAfter {
		return model.Ticket{}, errors.New("quota exceeded")
	}
	r.files = append(r.files, file)
	r.exportIDs = append(r.exportIDs, mylog.ExportID(ctx))
	return model.Ticket{ID: file, Kind: kind, FileName: file, Sink: "recording"}, nil
}

func (r *recordingSink) ExportRaster(ctx context.Context, j model.RasterJob) (model.Ticket, error) {
	return r.take(ctx, model.KindRaster, j.FileName)
}

func (r *recordingSink) ExportTable(ctx context.Context, j model.TableJob) (model.Ticket, error) {
	return r.take(ctx, model.KindTable, j.FileName)
}

func newPipeline(t *testing.T, s *recordingSink) *Pipeline {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "state.geojson"), []byte(stateTable), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return New(cat, boundary.NewStore(dir), planner.New(oneClassEngine{}), s, nil)
}

func acreRequest(periods ...model.Period) Request {
	return Request{
		Region:     "mapbiomas-brazil",
		Collection: "collection-6.0",
		DataType:   "irrigated_agriculture",
		Boundary:   boundary.Source{Table: "state", Property: "NM_ESTADO", Feature: "Acre"},
		Buffer:     "1km",
		Periods:    periods,
	}
}

func TestRun_SubmitsRastersThenTable(t *testing.T) {
	rs := &recordingSink{}
	p := newPipeline(t, rs)

	res, err := p.Run(context.Background(), acreRequest("2020", "2019"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{
		"mapbiomas-brazil-collection-60-irrigated-agriculture-acre-2019",
		"mapbiomas-brazil-collection-60-irrigated-agriculture-acre-2020",
		"mapbiomas-brazil-collection-60-irrigated-agriculture-acre-area",
	}
	if len(rs.files) != len(want) {
		t.Fatalf("submitted=%v", rs.files)
	}
	for i := range want {
		if rs.files[i] != want[i] || res.Tickets[i].FileName != want[i] {
			t.Fatalf("job %d: submitted %q ticket %q want %q", i, rs.files[i], res.Tickets[i].FileName, want[i])
		}
		if rs.exportIDs[i] != res.ExportID {
			t.Fatalf("export id not on context: %q vs %q", rs.exportIDs[i], res.ExportID)
		}
	}
	if res.Rasters[0].Clip.BufferMeters != 1000 {
		t.Fatalf("buffer not applied: %+v", res.Rasters[0].Clip)
	}
	if res.Report.Rows != 4 || len(res.Report.Misses) != 2 {
		t.Fatalf("report=%+v", res.Report)
	}
	if res.Boundary != "Acre" || len(res.Layers) != 36 {
		t.Fatalf("boundary=%q layers=%d", res.Boundary, len(res.Layers))
	}
}

func TestRun_DryRunDoesNotSubmit(t *testing.T) {
	rs := &recordingSink{}
	p := newPipeline(t, rs)

	req := acreRequest("2019")
	req.DryRun = true
	res, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rs.files) != 0 || len(res.Tickets) != 0 {
		t.Fatalf("dry run submitted jobs: %v", rs.files)
	}
	if len(res.Rasters) != 1 || res.Table.Format != planner.TableFormat {
		t.Fatalf("plan missing: %+v", res)
	}
}

func TestRun_PartialSubmission(t *testing.T) {
	rs := &recordingSink{failAfter: 1}
	p := newPipeline(t, rs)

	res, err := p.Run(context.Background(), acreRequest("2019", "2020"))
	if !errors.Is(err, ErrSubmit) {
		t.Fatalf("expected ErrSubmit, got %v", err)
	}
	if len(res.Tickets) != 1 {
		t.Fatalf("tickets=%v", res.Tickets)
	}
}

func TestRun_SelectionErrors(t *testing.T) {
	p := newPipeline(t, &recordingSink{})
	ctx := context.Background()

	if _, err := p.Run(ctx, acreRequest()); !errors.Is(err, planner.ErrInvalidSelection) {
		t.Fatalf("no periods: %v", err)
	}

	req := acreRequest("2019")
	req.Region = "nowhere"
	if _, err := p.Run(ctx, req); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("unknown region: %v", err)
	}

	req = acreRequest("1900")
	if _, err := p.Run(ctx, req); !errors.Is(err, planner.ErrInvalidSelection) {
		t.Fatalf("unknown period: %v", err)
	}

	req = acreRequest("2019")
	req.Buffer = "9km"
	if _, err := p.Run(ctx, req); !errors.Is(err, planner.ErrInvalidSelection) {
		t.Fatalf("unknown buffer: %v", err)
	}

	req = acreRequest("2019")
	req.Boundary.Feature = "Bahia"
	if _, err := p.Run(ctx, req); !errors.Is(err, boundary.ErrNoMatch) {
		t.Fatalf("unknown feature: %v", err)
	}

	req = acreRequest("2019")
	req.Boundary = boundary.Source{}
	if _, err := p.Run(ctx, req); !errors.Is(err, planner.ErrInvalidSelection) {
		t.Fatalf("empty boundary: %v", err)
	}
}

func TestRun_NoSinkIsPrecondition(t *testing.T) {
	p := newPipeline(t, &recordingSink{})
	p.sink = nil
	if _, err := p.Run(context.Background(), acreRequest("2019")); !errors.Is(err, planner.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}
