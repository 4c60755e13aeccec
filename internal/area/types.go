package area

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
)

// Unit pairs an area label with the divisor that converts squared meters
// into it. The two always travel together.
type Unit struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

var (
	SquareKilometers = Unit{Name: "kilometers^2", Factor: 1e6}
	Hectares         = Unit{Name: "hectares", Factor: 1e4}
	SquareMeters     = Unit{Name: "meters^2", Factor: 1}
)

func (u Unit) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return errors.New("area unit name is required")
	}
	if !(u.Factor > 0) || math.IsInf(u.Factor, 0) {
		return fmt.Errorf("area unit %q: factor must be a positive number", u.Name)
	}
	return nil
}

// UnitByName resolves one of the known units.
func UnitByName(name string) (Unit, bool) {
	for _, u := range []Unit{SquareKilometers, Hectares, SquareMeters} {
		if u.Name == name {
			return u, true
		}
	}
	return Unit{}, false
}

// Grouped is the result of a region reduction grouped by territory, then by
// class: {"groups":[{"territory":1,"groups":[{"class":1,"sum":50}]}]}.
type Grouped struct {
	Groups []TerritoryGroup `json:"groups"`
}

type TerritoryGroup struct {
	Territory model.TerritoryID `json:"territory"`
	Groups    []ClassSum        `json:"groups"`
}

type ClassSum struct {
	Class int     `json:"class"`
	Sum   float64 `json:"sum"`
}

// UnmarshalJSON accepts integral floats for the class id, which is how
// reducers usually report grouping keys.
func (c *ClassSum) UnmarshalJSON(b []byte) error {
	var raw struct {
		Class json.Number `json:"class"`
		Sum   float64     `json:"sum"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("class group: %w", err)
	}
	f, err := raw.Class.Float64()
	if err != nil {
		return fmt.Errorf("class group: class %q: %w", raw.Class, err)
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("class group: class %v is not an integer", f)
	}
	c.Class = int(f)
	c.Sum = raw.Sum
	return nil
}
