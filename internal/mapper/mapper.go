// Package mapper converts boundary geometries into H3 cell covers.
package mapper

import (
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
)

// Cells is a sorted, de-duplicated list of H3 cell ids.
type Cells []string

type Interface interface {
	CellsForBBox(bb model.BBox, res int) (Cells, error)
	CellsForGeometry(g orb.Geometry, res int) (Cells, error)
}
