// Package model defines core domain types shared across the toolkit.
package model

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   string
}

// String representation matching wfs/wms bbox format
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([]float64{b.X1, b.Y1, b.X2, b.Y2})
}

func (b *BBox) UnmarshalJSON(data []byte) error {
	var xs []float64
	if err := json.Unmarshal(data, &xs); err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	if len(xs) != 4 {
		return fmt.Errorf("bbox: want 4 numbers, got %d", len(xs))
	}
	*b = BBox{X1: xs[0], Y1: xs[1], X2: xs[2], Y2: xs[3], SRID: "EPSG:4326"}
	return nil
}

// Period labels one temporal slice of a dataset, e.g. "2019".
type Period string

// TerritoryID is the grouping key of a territory mask; numeric ids are kept
// in their decimal form.
type TerritoryID string

// UnmarshalJSON accepts both string and number ids
func (t *TerritoryID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = TerritoryID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*t = TerritoryID(n.String())
		return nil
	}
	return fmt.Errorf("territory must be string or number")
}

type ClassArea struct {
	Territory TerritoryID `json:"territory"`
	Class     int         `json:"class"`
	Area      float64     `json:"area"`
	Unit      string      `json:"unit"`
}

// AnnotatedArea is a table row: a ClassArea plus its class label and source band.
type AnnotatedArea struct {
	ClassArea
	ClassName string `json:"class_name"`
	Band      string `json:"band"`
}

// BoundaryFeature is the vector selection used to clip rasters and mask areas.
// Name is the feature part of export file names and may be empty when a whole
// table is selected; Label names the selection in layer lists.
type BoundaryFeature struct {
	Name       string
	Label      string
	Property   string
	Geometry   orb.Geometry
	Properties map[string]any
}

type Image struct {
	Asset string `json:"asset"`
	Band  string `json:"band"`
}

// Clip is the data-clip geometry of a raster export. BufferMeters is the same
// distance used to expand the job region.
type Clip struct {
	Geometry     orb.Geometry
	BufferMeters float64
}

type clipJSON struct {
	Geometry     *geojson.Geometry `json:"geometry"`
	BufferMeters float64           `json:"buffer_meters"`
}

func (c Clip) MarshalJSON() ([]byte, error) {
	out := clipJSON{BufferMeters: c.BufferMeters}
	if c.Geometry != nil {
		out.Geometry = geojson.NewGeometry(c.Geometry)
	}
	return json.Marshal(out)
}

func (c *Clip) UnmarshalJSON(b []byte) error {
	var in clipJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return fmt.Errorf("clip: %w", err)
	}
	c.BufferMeters = in.BufferMeters
	c.Geometry = nil
	if in.Geometry != nil {
		c.Geometry = in.Geometry.Geometry()
	}
	return nil
}

type RasterJob struct {
	Image          Image   `json:"image"`
	Period         Period  `json:"period"`
	FileName       string  `json:"file_name"`
	Folder         string  `json:"folder"`
	Clip           Clip    `json:"clip"`
	Region         BBox    `json:"region"`
	Scale          int     `json:"scale"`
	MaxPixels      float64 `json:"max_pixels"`
	Format         string  `json:"format"`
	FileDimensions int     `json:"file_dimensions"`
}

type TableJob struct {
	Rows     []AnnotatedArea `json:"rows"`
	FileName string          `json:"file_name"`
	Folder   string          `json:"folder"`
	Format   string          `json:"format"`
}

type JobKind string

const (
	KindRaster JobKind = "raster"
	KindTable  JobKind = "table"
)

// Ticket acknowledges a job handed to a sink. Its lifecycle after that
// belongs to the sink.
type Ticket struct {
	ID       string  `json:"id"`
	Kind     JobKind `json:"kind"`
	FileName string  `json:"file_name"`
	Sink     string  `json:"sink"`
}
