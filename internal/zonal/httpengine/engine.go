// Package httpengine runs zonal reductions on a remote analysis engine over
// JSON/HTTP.
package httpengine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/area"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/httpclient"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/zonal"
)

const reducePath = "/v1/reduce-grouped-area"

type Engine struct {
	client   *http.Client
	endpoint string
}

func New(base string, client *http.Client) (*Engine, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse engine url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("engine url %q must be absolute", base)
	}
	return &Engine{client: client, endpoint: u.String() + reducePath}, nil
}

type territoryJSON struct {
	ID       model.TerritoryID `json:"id"`
	Geometry *geojson.Geometry `json:"geometry"`
}

// RequestBody is the wire form of a zonal.Request.
type RequestBody struct {
	Image     model.Image   `json:"image"`
	Territory territoryJSON `json:"territory"`
	Region    model.BBox    `json:"region"`
	Scale     int           `json:"scale"`
	MaxPixels float64       `json:"max_pixels"`
	Factor    float64       `json:"factor"`
	Reducer   string        `json:"reducer"`
}

func body(req zonal.Request) RequestBody {
	return RequestBody{
		Image: req.Image,
		Territory: territoryJSON{
			ID:       req.Territory.ID,
			Geometry: geojson.NewGeometry(req.Territory.Geometry),
		},
		Region:    req.Region,
		Scale:     req.Scale,
		MaxPixels: req.MaxPixels,
		Factor:    req.Factor,
		Reducer:   "sum.group(class).group(territory)",
	}
}

func (e *Engine) ReduceGroupedArea(ctx context.Context, req zonal.Request) (area.Grouped, error) {
	var out area.Grouped
	if err := httpclient.PostJSON(ctx, e.client, e.endpoint, body(req), &out); err != nil {
		return area.Grouped{}, fmt.Errorf("reduce %s: %w", req.Image.Band, err)
	}
	return out, nil
}
