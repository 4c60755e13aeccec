// Package area turns grouped pixel-area reductions into flat class-area tables.
package area

import (
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
)

// UnknownClass labels rows whose class id has no entry in the class names.
const UnknownClass = "unknown"

// Aggregate flattens g into one row per (territory, class) present, keeping
// the reduction order. Absent classes produce no row. Every row carries unit.
func Aggregate(g Grouped, unit string) []model.ClassArea {
	n := 0
	for _, tg := range g.Groups {
		n += len(tg.Groups)
	}
	out := make([]model.ClassArea, 0, n)
	for _, tg := range g.Groups {
		for _, cs := range tg.Groups {
			out = append(out, model.ClassArea{
				Territory: tg.Territory,
				Class:     cs.Class,
				Area:      cs.Sum,
				Unit:      unit,
			})
		}
	}
	return out
}

// Miss records a class id that could not be labelled.
type Miss struct {
	Band  string `json:"band"`
	Class int    `json:"class"`
}

// Annotate labels rows with their class name and source band. Unknown ids get
// UnknownClass and are reported once per class in misses.
func Annotate(rows []model.ClassArea, names map[int]string, band string) (out []model.AnnotatedArea, misses []Miss) {
	out = make([]model.AnnotatedArea, 0, len(rows))
	seen := map[int]struct{}{}
	for _, r := range rows {
		name, ok := names[r.Class]
		if !ok {
			name = UnknownClass
			if _, dup := seen[r.Class]; !dup {
				seen[r.Class] = struct{}{}
				misses = append(misses, Miss{Band: band, Class: r.Class})
			}
		}
		out = append(out, model.AnnotatedArea{ClassArea: r, ClassName: name, Band: band})
	}
	return out, misses
}
