package boundary

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/catalog"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/geom"
)

var (
	ErrEmptySource     = errors.New("boundary source is empty")
	ErrInvalidBoundary = errors.New("invalid custom boundary")
)

// Source describes how a boundary is picked. Exactly one of GeoJSON or Table
// is used; with a table, State narrows it to one state and Property+Feature
// narrow it to one feature.
type Source struct {
	Table    string          `json:"table,omitempty"`
	Property string          `json:"property,omitempty"`
	Feature  string          `json:"feature,omitempty"`
	State    string          `json:"state,omitempty"`
	GeoJSON  json.RawMessage `json:"geojson,omitempty"`
	Label    string          `json:"label,omitempty"`
}

func (s Source) Empty() bool {
	return len(s.GeoJSON) == 0 && strings.TrimSpace(s.Table) == ""
}

// Resolve turns a Source into a BoundaryFeature. region supplies the table
// list and the state code table; it may be nil for custom GeoJSON.
func (s *Store) Resolve(region *catalog.Region, src Source) (*model.BoundaryFeature, error) {
	if len(src.GeoJSON) > 0 {
		return FromGeoJSON(src.Label, src.GeoJSON)
	}
	if strings.TrimSpace(src.Table) == "" {
		return nil, ErrEmptySource
	}

	table := src.Table
	if region != nil {
		t, err := region.Table(src.Table)
		if err != nil {
			return nil, err
		}
		table = t.Asset
	}
	fc, err := s.Table(table)
	if err != nil {
		return nil, err
	}
	label := TableName(table)

	switch {
	case src.Property != "" && src.Feature != "":
		g, props, err := filter(fc, src.Property, src.Feature)
		if err != nil {
			return nil, err
		}
		return &model.BoundaryFeature{
			Name:       src.Feature,
			Label:      src.Feature,
			Property:   src.Property,
			Geometry:   g,
			Properties: props,
		}, nil

	case src.State != "":
		if region == nil || region.StateProperty == "" {
			return nil, fmt.Errorf("%w: state filter needs a region with a state property", ErrNoMatch)
		}
		st, err := region.State(src.State)
		if err != nil {
			return nil, err
		}
		g, props, err := filter(fc, region.StateProperty, strconv.Itoa(st.Code))
		if err != nil {
			return nil, err
		}
		return &model.BoundaryFeature{
			Name:       st.Name,
			Label:      st.Name,
			Property:   region.StateProperty,
			Geometry:   g,
			Properties: props,
		}, nil

	default:
		g, err := all(fc)
		if err != nil {
			return nil, err
		}
		return &model.BoundaryFeature{Label: label, Geometry: g}, nil
	}
}

// FromGeoJSON builds a custom boundary from an inline Feature, geometry or
// FeatureCollection. A Feature's "name" property is used when label is empty.
func FromGeoJSON(label string, raw []byte) (*model.BoundaryFeature, error) {
	var hdr struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBoundary, err)
	}

	bf := &model.BoundaryFeature{Name: label, Label: label}
	switch hdr.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBoundary, err)
		}
		g, err := all(fc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBoundary, err)
		}
		bf.Geometry = g
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBoundary, err)
		}
		if err := geom.Validate(f.Geometry); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBoundary, err)
		}
		bf.Geometry = f.Geometry
		bf.Properties = map[string]any(f.Properties)
		if bf.Name == "" {
			if n, ok := f.Properties["name"].(string); ok {
				bf.Name, bf.Label = n, n
			}
		}
	default:
		g, err := geom.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBoundary, err)
		}
		bf.Geometry = g
	}
	if bf.Label == "" {
		bf.Label = "custom"
	}
	return bf, nil
}
