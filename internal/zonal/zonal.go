// Package zonal defines the zonal statistics contract: summing pixel area
// grouped by territory and class over one classified band.
package zonal

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/area"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
)

const (
	DefaultScale     = 30
	DefaultMaxPixels = 1e13
)

var ErrBadRequest = errors.New("invalid zonal request")

// Territory is the mask a reduction is grouped by: every pixel inside
// Geometry belongs to territory ID.
type Territory struct {
	ID       model.TerritoryID
	Geometry orb.Geometry
}

type Request struct {
	Image     model.Image
	Territory Territory
	Region    model.BBox
	Scale     int
	MaxPixels float64
	// Factor divides pixel area in square meters.
	Factor float64
}

func (r Request) Validate() error {
	switch {
	case r.Image.Asset == "" || r.Image.Band == "":
		return fmt.Errorf("%w: image asset and band required", ErrBadRequest)
	case r.Territory.Geometry == nil:
		return fmt.Errorf("%w: territory geometry required", ErrBadRequest)
	case r.Territory.ID == "":
		return fmt.Errorf("%w: territory id required", ErrBadRequest)
	case r.Scale <= 0:
		return fmt.Errorf("%w: scale must be > 0", ErrBadRequest)
	case r.MaxPixels <= 0:
		return fmt.Errorf("%w: max pixels must be > 0", ErrBadRequest)
	case r.Factor <= 0:
		return fmt.Errorf("%w: factor must be > 0", ErrBadRequest)
	}
	return nil
}

// Engine runs one grouped area reduction. Implementations are safe for
// concurrent use.
type Engine interface {
	ReduceGroupedArea(ctx context.Context, req Request) (area.Grouped, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, req Request) (area.Grouped, error)

func (f EngineFunc) ReduceGroupedArea(ctx context.Context, req Request) (area.Grouped, error) {
	return f(ctx, req)
}
