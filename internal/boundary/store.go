// Package boundary resolves the vector boundary a user exports against: a
// feature of a boundary table, a state subset of a table, a whole table or a
// custom GeoJSON feature.
package boundary

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/geom"
)

var (
	ErrTableNotFound = errors.New("boundary table not found")
	ErrNoMatch       = errors.New("no boundary feature matches the selection")
)

// Store serves boundary tables stored as GeoJSON FeatureCollections named
// after the last path segment of the table asset (state.geojson, biome.json, ...).
// Tables are read lazily and kept for the life of the process.
type Store struct {
	dir string

	mu     sync.Mutex
	tables map[string]*geojson.FeatureCollection
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, tables: map[string]*geojson.FeatureCollection{}}
}

// TableName strips an asset path down to its table name.
func TableName(table string) string {
	table = strings.TrimRight(strings.TrimSpace(table), "/")
	if i := strings.LastIndex(table, "/"); i >= 0 {
		return table[i+1:]
	}
	return table
}

func (s *Store) Table(table string) (*geojson.FeatureCollection, error) {
	name := TableName(table)
	if name == "" || strings.ContainsAny(name, `\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: invalid name %q", ErrTableNotFound, table)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if fc, ok := s.tables[name]; ok {
		return fc, nil
	}

	var data []byte
	var err error
	for _, ext := range []string{".geojson", ".json"} {
		data, err = os.ReadFile(filepath.Join(s.dir, name+ext))
		if err == nil {
			break
		}
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
		}
		return nil, fmt.Errorf("reading boundary table %s: %w", name, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing boundary table %s: %w", name, err)
	}
	s.tables[name] = fc
	return fc, nil
}

// PropertyNames lists the property names of the table's first feature, sorted.
func (s *Store) PropertyNames(table string) ([]string, error) {
	fc, err := s.Table(table)
	if err != nil {
		return nil, err
	}
	if len(fc.Features) == 0 {
		return []string{}, nil
	}
	out := make([]string, 0, len(fc.Features[0].Properties))
	for k := range fc.Features[0].Properties {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// FeatureNames lists the distinct values of property across the table, sorted.
func (s *Store) FeatureNames(table, property string) ([]string, error) {
	fc, err := s.Table(table)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, f := range fc.Features {
		v, ok := f.Properties[property]
		if !ok || v == nil {
			continue
		}
		name := propString(v)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// filter merges the geometries of features whose property equals value.
func filter(fc *geojson.FeatureCollection, property, value string) (orb.Geometry, map[string]any, error) {
	var gs []orb.Geometry
	var props map[string]any
	for _, f := range fc.Features {
		v, ok := f.Properties[property]
		if !ok || propString(v) != value {
			continue
		}
		if props == nil {
			props = map[string]any(f.Properties)
		}
		gs = append(gs, f.Geometry)
	}
	if len(gs) == 0 {
		return nil, nil, fmt.Errorf("%w: %s = %q", ErrNoMatch, property, value)
	}
	g := geom.Merge(gs...)
	if err := geom.Validate(g); err != nil {
		return nil, nil, fmt.Errorf("boundary %s = %q: %w", property, value, err)
	}
	return g, props, nil
}

func all(fc *geojson.FeatureCollection) (orb.Geometry, error) {
	gs := make([]orb.Geometry, 0, len(fc.Features))
	for _, f := range fc.Features {
		gs = append(gs, f.Geometry)
	}
	if len(gs) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrNoMatch)
	}
	g := geom.Merge(gs...)
	if err := geom.Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

// numbers in GeoJSON properties decode as float64; 12.0 must match "12"
func propString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
