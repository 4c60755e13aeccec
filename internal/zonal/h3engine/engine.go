// Package h3engine is an offline zonal engine. Classified bands are sampled
// onto H3 cells at a fixed resolution; each cell stands in for one pixel
// whose area is the average hexagon area at that resolution.
package h3engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/area"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/mapper"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/zonal"
)

var (
	ErrBandNotLoaded = errors.New("band not loaded")
	ErrTooManyPixels = errors.New("reduction exceeds max pixels")
	errMissingClass  = errors.New("feature has no integer class property")
)

// average hexagon area in km^2 per resolution
var hexAreaKm2 = [16]float64{
	4357449.416078383, 609788.441794133, 86801.780398997, 12393.434655088,
	1770.347654491, 252.903858182, 36.129062164, 5.161293360,
	0.737327598, 0.105332513, 0.015047502, 0.002149643,
	0.000307092, 0.000043870, 0.000006267, 0.000000895,
}

type Engine struct {
	mapper mapper.Interface
	res    int

	mu    sync.RWMutex
	bands map[string]map[string]int // band -> cell -> class
}

func New(m mapper.Interface, res int) (*Engine, error) {
	if res < 0 || res > 15 {
		return nil, fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return &Engine{mapper: m, res: res, bands: map[string]map[string]int{}}, nil
}

// CellAreaM2 is the pixel area used for every cell at the engine resolution.
func (e *Engine) CellAreaM2() float64 {
	return hexAreaKm2[e.res] * 1e6
}

// LoadBand samples fc onto cells. Each feature must carry an integer "class"
// property; later features win where they overlap earlier ones.
func (e *Engine) LoadBand(band string, fc *geojson.FeatureCollection) error {
	if strings.TrimSpace(band) == "" {
		return errors.New("band name is required")
	}
	cells := map[string]int{}
	for i, f := range fc.Features {
		class, err := classOf(f)
		if err != nil {
			return fmt.Errorf("band %s feature %d: %w", band, i, err)
		}
		cover, err := e.mapper.CellsForGeometry(f.Geometry, e.res)
		if err != nil {
			return fmt.Errorf("band %s feature %d: %w", band, i, err)
		}
		for _, c := range cover {
			cells[c] = class
		}
	}

	e.mu.Lock()
	e.bands[band] = cells
	e.mu.Unlock()
	return nil
}

// LoadDir loads every <band>.geojson file in dir.
func (e *Engine) LoadDir(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.geojson"))
	if err != nil {
		return nil, fmt.Errorf("list bands: %w", err)
	}
	sort.Strings(paths)
	loaded := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return loaded, fmt.Errorf("read band %s: %w", p, err)
		}
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return loaded, fmt.Errorf("parse band %s: %w", p, err)
		}
		band := strings.TrimSuffix(filepath.Base(p), ".geojson")
		if err := e.LoadBand(band, fc); err != nil {
			return loaded, err
		}
		loaded = append(loaded, band)
	}
	return loaded, nil
}

func (e *Engine) Bands() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.bands))
	for b := range e.bands {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// ReduceGroupedArea sums cell area per class over the cells of the territory
// that also fall inside the request region. Scale is fixed by the engine
// resolution.
func (e *Engine) ReduceGroupedArea(ctx context.Context, req zonal.Request) (area.Grouped, error) {
	if err := ctx.Err(); err != nil {
		return area.Grouped{}, err
	}

	e.mu.RLock()
	cells, ok := e.bands[req.Image.Band]
	e.mu.RUnlock()
	if !ok {
		return area.Grouped{}, fmt.Errorf("%w: %s", ErrBandNotLoaded, req.Image.Band)
	}

	territory, err := e.mapper.CellsForGeometry(req.Territory.Geometry, e.res)
	if err != nil {
		return area.Grouped{}, fmt.Errorf("territory cover: %w", err)
	}
	if req.MaxPixels > 0 && float64(len(territory)) > req.MaxPixels {
		return area.Grouped{}, fmt.Errorf("%w: %d > %.0f", ErrTooManyPixels, len(territory), req.MaxPixels)
	}
	region, err := e.mapper.CellsForBBox(req.Region, e.res)
	if err != nil {
		return area.Grouped{}, fmt.Errorf("region cover: %w", err)
	}
	inRegion := make(map[string]struct{}, len(region))
	for _, c := range region {
		inRegion[c] = struct{}{}
	}

	counts := map[int]int{}
	for _, c := range territory {
		if _, ok := inRegion[c]; !ok {
			continue
		}
		if class, ok := cells[c]; ok {
			counts[class]++
		}
	}
	if len(counts) == 0 {
		return area.Grouped{Groups: []area.TerritoryGroup{}}, nil
	}

	classes := make([]int, 0, len(counts))
	for k := range counts {
		classes = append(classes, k)
	}
	sort.Ints(classes)

	px := e.CellAreaM2() / req.Factor
	sums := make([]area.ClassSum, 0, len(classes))
	for _, k := range classes {
		sums = append(sums, area.ClassSum{Class: k, Sum: float64(counts[k]) * px})
	}
	return area.Grouped{Groups: []area.TerritoryGroup{{Territory: req.Territory.ID, Groups: sums}}}, nil
}

func classOf(f *geojson.Feature) (int, error) {
	switch v := f.Properties["class"].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, errMissingClass
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, errMissingClass
	}
}
