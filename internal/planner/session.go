package planner

import (
	"fmt"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/boundary"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/catalog"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
)

// Stage is how far a Session has progressed through the selection workflow.
type Stage int

const (
	StageNone Stage = iota
	StageRegion
	StageCollection
	StageSource
	StageBoundary
	StageDataType
)

func (s Stage) String() string {
	switch s {
	case StageRegion:
		return "region"
	case StageCollection:
		return "collection"
	case StageSource:
		return "boundary-source"
	case StageBoundary:
		return "boundary"
	case StageDataType:
		return "data-type"
	default:
		return "none"
	}
}

// Session holds one user's selection: region, collection, boundary source,
// boundary feature, data type, checked periods and buffer. Each step
// replaces every later step wholesale. A Session belongs to one caller and
// is not safe for concurrent use.
type Session struct {
	cat *catalog.Catalog

	region     *catalog.Region
	collection *catalog.Collection
	source     *boundary.Source
	boundary   *model.BoundaryFeature
	dataset    *catalog.Dataset
	checked    map[model.Period]bool
	buffer     float64
}

func NewSession(cat *catalog.Catalog) *Session {
	return &Session{cat: cat}
}

func (s *Session) Stage() Stage {
	switch {
	case s.dataset != nil:
		return StageDataType
	case s.boundary != nil:
		return StageBoundary
	case s.source != nil:
		return StageSource
	case s.collection != nil:
		return StageCollection
	case s.region != nil:
		return StageRegion
	default:
		return StageNone
	}
}

func (s *Session) require(op string, want Stage) error {
	if got := s.Stage(); got < want {
		return precondition(op, "needs %s selected, session is at %s", want, got)
	}
	return nil
}

func (s *Session) resetFrom(stage Stage) {
	if stage <= StageCollection {
		s.collection = nil
	}
	if stage <= StageSource {
		s.source = nil
	}
	if stage <= StageBoundary {
		s.boundary = nil
	}
	if stage <= StageDataType {
		s.dataset = nil
		s.checked = nil
	}
}

func (s *Session) SelectRegion(name string) error {
	r, err := s.cat.Region(name)
	if err != nil {
		return err
	}
	s.resetFrom(StageCollection)
	s.region = r
	return nil
}

func (s *Session) SelectCollection(name string) error {
	if err := s.require("select collection", StageRegion); err != nil {
		return err
	}
	c, err := s.region.Collection(name)
	if err != nil {
		return err
	}
	s.resetFrom(StageCollection)
	s.collection = c
	return nil
}

// SelectBoundarySource records where the boundary comes from: a table of
// the region or custom GeoJSON.
func (s *Session) SelectBoundarySource(src boundary.Source) error {
	const op = "select boundary source"
	if err := s.require(op, StageCollection); err != nil {
		return err
	}
	if src.Empty() {
		return invalid(op, "boundary source is empty")
	}
	if len(src.GeoJSON) == 0 {
		if _, err := s.region.Table(src.Table); err != nil {
			return err
		}
	}
	s.resetFrom(StageSource)
	s.source = &src
	return nil
}

// SetBoundary installs the feature resolved from the current source.
func (s *Session) SetBoundary(bf *model.BoundaryFeature) error {
	const op = "set boundary"
	if err := s.require(op, StageSource); err != nil {
		return err
	}
	if bf == nil || bf.Geometry == nil {
		return invalid(op, "boundary feature has no geometry")
	}
	s.resetFrom(StageBoundary)
	s.boundary = bf
	return nil
}

// SelectDataType enables export. No period is checked afterwards.
func (s *Session) SelectDataType(dataType string) error {
	if err := s.require("select data type", StageBoundary); err != nil {
		return err
	}
	ds, err := s.collection.Dataset(dataType)
	if err != nil {
		return err
	}
	s.resetFrom(StageDataType)
	s.dataset = ds
	s.checked = map[model.Period]bool{}
	return nil
}

func (s *Session) TogglePeriod(p model.Period, on bool) error {
	const op = "toggle period"
	if err := s.require(op, StageDataType); err != nil {
		return err
	}
	if !s.dataset.HasPeriod(p) {
		return invalid(op, "period %q not available for %s", p, s.dataset.DataType)
	}
	if on {
		s.checked[p] = true
	} else {
		delete(s.checked, p)
	}
	return nil
}

// SetBuffer takes a buffer option label ("None", "1km", ...). The buffer is
// kept across other selections.
func (s *Session) SetBuffer(label string) error {
	m, err := s.cat.BufferMeters(label)
	if err != nil {
		return invalid("set buffer", "%v", err)
	}
	s.buffer = m
	return nil
}

func (s *Session) BufferMeters() float64 { return s.buffer }

func (s *Session) Region() *catalog.Region          { return s.region }
func (s *Session) Collection() *catalog.Collection  { return s.collection }
func (s *Session) Source() *boundary.Source         { return s.source }
func (s *Session) Boundary() *model.BoundaryFeature { return s.boundary }
func (s *Session) Dataset() *catalog.Dataset        { return s.dataset }

// CheckedPeriods returns the checked periods in dataset order.
func (s *Session) CheckedPeriods() []model.Period {
	if s.dataset == nil {
		return nil
	}
	out := make([]model.Period, 0, len(s.checked))
	for _, p := range s.dataset.Periods {
		if s.checked[p] {
			out = append(out, p)
		}
	}
	return out
}

// Layer is one period of the selected dataset clipped to the boundary.
type Layer struct {
	Label   string            `json:"label"`
	Period  model.Period      `json:"period"`
	Band    string            `json:"band"`
	Checked bool              `json:"checked"`
	Vis     catalog.VisParams `json:"vis"`
}

// Layers lists one layer per dataset period, labelled "<boundary> <period>".
func (s *Session) Layers() ([]Layer, error) {
	if err := s.require("list layers", StageDataType); err != nil {
		return nil, err
	}
	label := s.boundary.Label
	if label == "" {
		label = s.boundary.Name
	}
	out := make([]Layer, 0, len(s.dataset.Periods))
	for _, p := range s.dataset.Periods {
		out = append(out, Layer{
			Label:   fmt.Sprintf("%s %s", label, p),
			Period:  p,
			Band:    s.dataset.Band(p),
			Checked: s.checked[p],
			Vis:     s.dataset.VisParams(p),
		})
	}
	return out, nil
}

// Selection snapshots the session for planning.
func (s *Session) Selection() (Selection, error) {
	if err := s.require("export", StageDataType); err != nil {
		return Selection{}, err
	}
	return Selection{
		Region:       s.region.Name,
		Collection:   s.collection.Name,
		Dataset:      s.dataset,
		Boundary:     s.boundary,
		BufferMeters: s.buffer,
		Periods:      s.CheckedPeriods(),
	}, nil
}
