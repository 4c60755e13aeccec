package h3mapper

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/mapper"
)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

var _ mapper.Interface = (*Mapper)(nil)

func (m *Mapper) CellsForBBox(bb model.BBox, res int) (mapper.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	// rectangular loop in degrees (lon,lat in EPSG:4326)
	outer := h3.GeoLoop{
		{Lat: bb.Y1, Lng: bb.X1},
		{Lat: bb.Y1, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X1},
	}
	return polyfill([]h3.GeoPolygon{{GeoLoop: outer}}, res)
}

// CellsForGeometry covers a Polygon or MultiPolygon with cells whose centers
// fall inside it.
func (m *Mapper) CellsForGeometry(g orb.Geometry, res int) (mapper.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}

	var polys []orb.Polygon
	switch t := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{t}
	case orb.MultiPolygon:
		if len(t) == 0 {
			return nil, errors.New("empty multipolygon")
		}
		polys = t
	case nil:
		return nil, errors.New("missing geometry")
	default:
		return nil, fmt.Errorf("unsupported geometry type: %s", g.GeoJSONType())
	}

	gps := make([]h3.GeoPolygon, 0, len(polys))
	for pi, p := range polys {
		if len(p) == 0 {
			return nil, fmt.Errorf("polygon %d is empty", pi)
		}
		outer := toLoop(p[0])
		if len(outer) < 3 {
			return nil, fmt.Errorf("polygon %d outer ring has < 4 vertices", pi)
		}
		var holes []h3.GeoLoop
		for i := 1; i < len(p); i++ {
			h := toLoop(p[i])
			if len(h) < 3 {
				return nil, fmt.Errorf("polygon %d hole %d has < 4 vertices", pi, i-1)
			}
			holes = append(holes, h)
		}
		gps = append(gps, h3.GeoPolygon{GeoLoop: outer, Holes: holes})
	}
	return polyfill(gps, res)
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// toLoop converts an orb ring to an h3.GeoLoop, dropping the closing vertex.
func toLoop(r orb.Ring) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(r))
	for _, pt := range r {
		loop = append(loop, h3.LatLng{Lat: pt.Lat(), Lng: pt.Lon()})
	}
	if len(loop) >= 2 {
		last, first := loop[len(loop)-1], loop[0]
		if last.Lat == first.Lat && last.Lng == first.Lng {
			loop = loop[:len(loop)-1]
		}
	}
	return loop
}

// polyfill computes unique cells and returns them sorted for determinism.
func polyfill(polys []h3.GeoPolygon, res int) (mapper.Cells, error) {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, poly := range polys {
		// v4 returns ([]h3.Cell, error)
		indexes, err := h3.PolygonToCells(poly, res)
		if err != nil {
			return nil, fmt.Errorf("h3 polyfill: %w", err)
		}
		for _, idx := range indexes {
			s := idx.String()
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}
