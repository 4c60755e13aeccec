// Package catalog is the static, read-only catalog of regions, collections,
// datasets and boundary tables. It is loaded once at startup.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var ErrNotFound = errors.New("not found")

type Catalog struct {
	Buffers []BufferOption `yaml:"buffers"`
	Regions []Region       `yaml:"regions"`
}

type BufferOption struct {
	Label  string  `yaml:"label" json:"label"`
	Meters float64 `yaml:"meters" json:"meters"`
}

type Region struct {
	Name          string       `yaml:"name" json:"name"`
	StateProperty string       `yaml:"state_property" json:"state_property,omitempty"`
	Tables        []Table      `yaml:"tables" json:"-"`
	States        []State      `yaml:"states" json:"-"`
	Collections   []Collection `yaml:"collections" json:"-"`
}

type Table struct {
	Label string `yaml:"label" json:"label"`
	Asset string `yaml:"asset" json:"asset"`
}

type State struct {
	Name string `yaml:"name" json:"name"`
	Code int    `yaml:"code" json:"code"`
}

type Collection struct {
	Name     string    `yaml:"name" json:"name"`
	Datasets []Dataset `yaml:"datasets" json:"-"`
}

type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Dataset describes one data type of a collection.
type Dataset struct {
	DataType       string         `yaml:"data_type" json:"data_type"`
	Asset          string         `yaml:"asset" json:"asset"`
	BandPrefix     string         `yaml:"band_prefix" json:"band_prefix"`
	FileDimensions int            `yaml:"file_dimensions" json:"file_dimensions"`
	ValueRange     Range          `yaml:"value_range" json:"value_range"`
	Palette        []string       `yaml:"palette" json:"palette"`
	ClassNames     map[int]string `yaml:"class_names" json:"class_names"`
	Periods        []model.Period `yaml:"periods" json:"periods"`
}

// Band is the band holding period p.
func (d *Dataset) Band(p model.Period) string {
	return d.BandPrefix + "_" + string(p)
}

func (d *Dataset) HasPeriod(p model.Period) bool {
	return slices.Contains(d.Periods, p)
}

// LatestPeriod is the period shown when a collection is first opened.
func (d *Dataset) LatestPeriod() model.Period {
	if len(d.Periods) == 0 {
		return ""
	}
	return d.Periods[len(d.Periods)-1]
}

type VisParams struct {
	Band    string   `json:"band"`
	Palette []string `json:"palette"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Format  string   `json:"format"`
}

func (d *Dataset) VisParams(p model.Period) VisParams {
	return VisParams{
		Band:    d.Band(p),
		Palette: d.Palette,
		Min:     d.ValueRange.Min,
		Max:     d.ValueRange.Max,
		Format:  "png",
	}
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading catalog %s: %w", path, err)
		}
		data = b
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	if len(c.Regions) == 0 {
		return errors.New("catalog: no regions")
	}
	seenBuf := map[string]struct{}{}
	for _, b := range c.Buffers {
		if b.Meters < 0 {
			return fmt.Errorf("catalog: buffer %q: meters must be >= 0", b.Label)
		}
		if _, dup := seenBuf[b.Label]; dup {
			return fmt.Errorf("catalog: duplicate buffer %q", b.Label)
		}
		seenBuf[b.Label] = struct{}{}
	}

	seenRegion := map[string]struct{}{}
	for _, r := range c.Regions {
		if strings.TrimSpace(r.Name) == "" {
			return errors.New("catalog: region name is required")
		}
		if _, dup := seenRegion[r.Name]; dup {
			return fmt.Errorf("catalog: duplicate region %q", r.Name)
		}
		seenRegion[r.Name] = struct{}{}

		seenColl := map[string]struct{}{}
		for _, col := range r.Collections {
			if _, dup := seenColl[col.Name]; dup {
				return fmt.Errorf("catalog: region %q: duplicate collection %q", r.Name, col.Name)
			}
			seenColl[col.Name] = struct{}{}
			for _, d := range col.Datasets {
				if err := validateDataset(d); err != nil {
					return fmt.Errorf("catalog: %s/%s: %w", r.Name, col.Name, err)
				}
			}
		}
	}
	return nil
}

func validateDataset(d Dataset) error {
	if d.DataType == "" {
		return errors.New("data_type is required")
	}
	if d.Asset == "" {
		return fmt.Errorf("dataset %q: asset is required", d.DataType)
	}
	if d.BandPrefix == "" {
		return fmt.Errorf("dataset %q: band_prefix is required", d.DataType)
	}
	if d.ValueRange.Min > d.ValueRange.Max {
		return fmt.Errorf("dataset %q: value_range min > max", d.DataType)
	}
	if len(d.Periods) == 0 {
		return fmt.Errorf("dataset %q: no periods", d.DataType)
	}
	seen := map[model.Period]struct{}{}
	for _, p := range d.Periods {
		if p == "" {
			return fmt.Errorf("dataset %q: empty period", d.DataType)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("dataset %q: duplicate period %q", d.DataType, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

func (c *Catalog) RegionNames() []string {
	out := make([]string, 0, len(c.Regions))
	for _, r := range c.Regions {
		out = append(out, r.Name)
	}
	return out
}

func (c *Catalog) Region(name string) (*Region, error) {
	for i := range c.Regions {
		if c.Regions[i].Name == name {
			return &c.Regions[i], nil
		}
	}
	return nil, fmt.Errorf("region %q: %w", name, ErrNotFound)
}

// CollectionNames lists the collections of a region, newest first.
func (r *Region) CollectionNames() []string {
	out := make([]string, 0, len(r.Collections))
	for i := len(r.Collections) - 1; i >= 0; i-- {
		out = append(out, r.Collections[i].Name)
	}
	return out
}

func (r *Region) Collection(name string) (*Collection, error) {
	for i := range r.Collections {
		if r.Collections[i].Name == name {
			return &r.Collections[i], nil
		}
	}
	return nil, fmt.Errorf("collection %q in region %q: %w", name, r.Name, ErrNotFound)
}

func (r *Region) Table(label string) (Table, error) {
	for _, t := range r.Tables {
		if t.Label == label || t.Asset == label {
			return t, nil
		}
	}
	return Table{}, fmt.Errorf("table %q in region %q: %w", label, r.Name, ErrNotFound)
}

func (r *Region) State(name string) (State, error) {
	for _, s := range r.States {
		if s.Name == name {
			return s, nil
		}
	}
	return State{}, fmt.Errorf("state %q in region %q: %w", name, r.Name, ErrNotFound)
}

func (col *Collection) DataTypes() []string {
	out := make([]string, 0, len(col.Datasets))
	for _, d := range col.Datasets {
		out = append(out, d.DataType)
	}
	return out
}

func (col *Collection) Dataset(dataType string) (*Dataset, error) {
	for i := range col.Datasets {
		if col.Datasets[i].DataType == dataType {
			return &col.Datasets[i], nil
		}
	}
	return nil, fmt.Errorf("data type %q in collection %q: %w", dataType, col.Name, ErrNotFound)
}

// Dataset resolves region → collection → data type in one call.
func (c *Catalog) Dataset(region, collection, dataType string) (*Dataset, error) {
	r, err := c.Region(region)
	if err != nil {
		return nil, err
	}
	col, err := r.Collection(collection)
	if err != nil {
		return nil, err
	}
	return col.Dataset(dataType)
}

// BufferMeters maps a buffer option label ("None", "1km", ...) to meters.
func (c *Catalog) BufferMeters(label string) (float64, error) {
	if label == "" {
		return 0, nil
	}
	for _, b := range c.Buffers {
		if b.Label == label {
			return b.Meters, nil
		}
	}
	return 0, fmt.Errorf("buffer %q: %w", label, ErrNotFound)
}
