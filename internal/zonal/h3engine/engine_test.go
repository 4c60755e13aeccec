package h3engine

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
	h3mapper "github.com/mohammed-shakir/irrigation-export-toolkit/internal/mapper/h3"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/zonal"
)

const res = 8

func square(x1, y1, x2, y2 float64) orb.Polygon {
	return orb.Polygon{{{x1, y1}, {x2, y1}, {x2, y2}, {x1, y2}, {x1, y1}}}
}

var (
	pivots = square(-47.90, -15.80, -47.85, -15.76)
	rice   = square(-47.80, -15.80, -47.75, -15.76)
	all    = square(-47.95, -15.85, -47.70, -15.70)
)

func classFeature(p orb.Polygon, class int) *geojson.Feature {
	f := geojson.NewFeature(p)
	f.Properties["class"] = float64(class)
	return f
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(h3mapper.New(), res)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(classFeature(pivots, 1))
	fc.Append(classFeature(rice, 2))
	if err := e.LoadBand("irrigated_agriculture_2019", fc); err != nil {
		t.Fatalf("LoadBand: %v", err)
	}
	return e
}

func request(territory orb.Geometry, region orb.Bound) zonal.Request {
	return zonal.Request{
		Image:     model.Image{Asset: "a", Band: "irrigated_agriculture_2019"},
		Territory: zonal.Territory{ID: "1", Geometry: territory},
		Region:    model.BBox{X1: region.Min[0], Y1: region.Min[1], X2: region.Max[0], Y2: region.Max[1]},
		Scale:     30,
		MaxPixels: 1e13,
		Factor:    1e6,
	}
}

func cellCount(t *testing.T, p orb.Polygon) int {
	t.Helper()
	cells, err := h3mapper.New().CellsForGeometry(p, res)
	if err != nil {
		t.Fatalf("cover: %v", err)
	}
	return len(cells)
}

func TestReduce_SumsAreaPerClass(t *testing.T) {
	e := newEngine(t)
	g, err := e.ReduceGroupedArea(context.Background(), request(all, all.Bound()))
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(g.Groups) != 1 || g.Groups[0].Territory != "1" {
		t.Fatalf("expected one territory group, got %+v", g)
	}
	sums := g.Groups[0].Groups
	if len(sums) != 2 || sums[0].Class != 1 || sums[1].Class != 2 {
		t.Fatalf("expected classes 1,2 in order, got %+v", sums)
	}

	km2 := e.CellAreaM2() / 1e6
	for i, p := range []orb.Polygon{pivots, rice} {
		want := float64(cellCount(t, p)) * km2
		if math.Abs(sums[i].Sum-want) > 1e-9 {
			t.Fatalf("class %d sum=%v want %v", sums[i].Class, sums[i].Sum, want)
		}
	}
}

func TestReduce_RegionClipsTerritory(t *testing.T) {
	e := newEngine(t)
	region := square(-47.92, -15.82, -47.83, -15.74).Bound()
	g, err := e.ReduceGroupedArea(context.Background(), request(all, region))
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(g.Groups) != 1 || len(g.Groups[0].Groups) != 1 || g.Groups[0].Groups[0].Class != 1 {
		t.Fatalf("expected only class 1 inside region, got %+v", g)
	}
}

func TestReduce_NoDataGivesEmptyGroups(t *testing.T) {
	e := newEngine(t)
	empty := square(-40.0, -10.0, -39.95, -9.95)
	g, err := e.ReduceGroupedArea(context.Background(), request(empty, empty.Bound()))
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if g.Groups == nil || len(g.Groups) != 0 {
		t.Fatalf("expected empty non-nil groups, got %+v", g)
	}
}

func TestReduce_Errors(t *testing.T) {
	e := newEngine(t)

	req := request(all, all.Bound())
	req.Image.Band = "irrigated_agriculture_1985"
	if _, err := e.ReduceGroupedArea(context.Background(), req); !errors.Is(err, ErrBandNotLoaded) {
		t.Fatalf("expected ErrBandNotLoaded, got %v", err)
	}

	req = request(all, all.Bound())
	req.MaxPixels = 10
	if _, err := e.ReduceGroupedArea(context.Background(), req); !errors.Is(err, ErrTooManyPixels) {
		t.Fatalf("expected ErrTooManyPixels, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.ReduceGroupedArea(ctx, request(all, all.Bound())); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoadBand_RejectsMissingClass(t *testing.T) {
	e, _ := New(h3mapper.New(), res)
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(pivots))
	if err := e.LoadBand("b", fc); !errors.Is(err, errMissingClass) {
		t.Fatalf("expected errMissingClass, got %v", err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	fc := geojson.NewFeatureCollection()
	fc.Append(classFeature(pivots, 3))
	data, err := fc.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "irrigated_agriculture_2020.geojson"), data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	e, _ := New(h3mapper.New(), res)
	loaded, err := e.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != "irrigated_agriculture_2020" {
		t.Fatalf("loaded=%v", loaded)
	}
	if b := e.Bands(); len(b) != 1 || b[0] != "irrigated_agriculture_2020" {
		t.Fatalf("Bands=%v", b)
	}
}

func TestNew_InvalidResolution(t *testing.T) {
	if _, err := New(h3mapper.New(), 16); err == nil {
		t.Fatalf("expected error for res 16")
	}
}
