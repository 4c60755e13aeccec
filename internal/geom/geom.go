// Package geom holds the boundary geometry helpers: GeoJSON parsing, bounds,
// metric buffering of bounds and stable fingerprints.
package geom

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
)

const SRID = "EPSG:4326"

var ErrUnsupportedGeometry = errors.New("geometry must be Polygon or MultiPolygon")

// Parse decodes a GeoJSON Polygon or MultiPolygon. A Feature is unwrapped to
// its geometry.
func Parse(raw []byte) (orb.Geometry, error) {
	var hdr struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	var g orb.Geometry
	switch hdr.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("parse feature: %w", err)
		}
		g = f.Geometry
	default:
		gg, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, fmt.Errorf("parse geometry: %w", err)
		}
		g = gg.Geometry()
	}
	if err := Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate accepts non-empty areal geometries only.
func Validate(g orb.Geometry) error {
	switch t := g.(type) {
	case orb.Polygon:
		if len(t) == 0 || len(t[0]) < 4 {
			return errors.New("polygon outer ring has < 4 vertices")
		}
	case orb.MultiPolygon:
		if len(t) == 0 {
			return errors.New("empty multipolygon")
		}
		for i, p := range t {
			if len(p) == 0 || len(p[0]) < 4 {
				return fmt.Errorf("polygon %d outer ring has < 4 vertices", i)
			}
		}
	case nil:
		return errors.New("missing geometry")
	default:
		return fmt.Errorf("%w (got %s)", ErrUnsupportedGeometry, g.GeoJSONType())
	}
	return nil
}

// Polygons flattens an areal geometry into its polygons.
func Polygons(g orb.Geometry) []orb.Polygon {
	switch t := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{t}
	case orb.MultiPolygon:
		return []orb.Polygon(t)
	case orb.Collection:
		var out []orb.Polygon
		for _, c := range t {
			out = append(out, Polygons(c)...)
		}
		return out
	default:
		return nil
	}
}

// Merge combines the polygons of several geometries into one MultiPolygon.
func Merge(gs ...orb.Geometry) orb.Geometry {
	var mp orb.MultiPolygon
	for _, g := range gs {
		mp = append(mp, Polygons(g)...)
	}
	if len(mp) == 1 {
		return mp[0]
	}
	return mp
}

// BufferedBounds returns the bounding box of g expanded by meters on every
// side. meters <= 0 leaves the bounds untouched.
func BufferedBounds(g orb.Geometry, meters float64) model.BBox {
	b := g.Bound()
	if meters > 0 {
		b = geo.BoundPad(b, meters)
	}
	return ToBBox(b)
}

func ToBBox(b orb.Bound) model.BBox {
	return model.BBox{X1: b.Min[0], Y1: b.Min[1], X2: b.Max[0], Y2: b.Max[1], SRID: SRID}
}

func FromBBox(bb model.BBox) orb.Bound {
	return orb.Bound{Min: orb.Point{bb.X1, bb.Y1}, Max: orb.Point{bb.X2, bb.Y2}}
}

// Fingerprint hashes the GeoJSON encoding of g; equal geometries share it.
func Fingerprint(g orb.Geometry) (string, error) {
	if g == nil {
		return "g:null", nil
	}
	buf, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return "", fmt.Errorf("marshal geometry: %w", err)
	}
	return "g:" + strconv.FormatUint(xxhash.Sum64(buf), 16), nil
}
