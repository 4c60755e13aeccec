package httpengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/httpclient"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/zonal"
)

func testRequest() zonal.Request {
	poly := orb.Polygon{{{-70, -10}, {-69, -10}, {-69, -9}, {-70, -9}, {-70, -10}}}
	return zonal.Request{
		Image:     model.Image{Asset: "projects/x/irrigated", Band: "irrigated_agriculture_2019"},
		Territory: zonal.Territory{ID: "1", Geometry: poly},
		Region:    model.BBox{X1: -70, Y1: -10, X2: -69, Y2: -9},
		Scale:     30,
		MaxPixels: 1e13,
		Factor:    1e6,
	}
}

func TestReduceGroupedArea_SendsRequestDecodesGroups(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != reducePath {
			t.Errorf("path=%s want %s", r.URL.Path, reducePath)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"groups":[{"territory":1,"groups":[{"class":1.0,"sum":50},{"class":2,"sum":3.5}]}]}`))
	}))
	t.Cleanup(srv.Close)

	e, err := New(srv.URL+"/", srv.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g, err := e.ReduceGroupedArea(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("ReduceGroupedArea: %v", err)
	}

	if len(g.Groups) != 1 || g.Groups[0].Territory != "1" || len(g.Groups[0].Groups) != 2 {
		t.Fatalf("unexpected groups %+v", g)
	}
	if g.Groups[0].Groups[0].Class != 1 || g.Groups[0].Groups[1].Sum != 3.5 {
		t.Fatalf("unexpected class sums %+v", g.Groups[0].Groups)
	}

	img, _ := got["image"].(map[string]any)
	if img["band"] != "irrigated_agriculture_2019" {
		t.Fatalf("band not sent: %v", got)
	}
	if got["scale"] != float64(30) || got["max_pixels"] != 1e13 || got["factor"] != 1e6 {
		t.Fatalf("reduction params not sent: %v", got)
	}
	terr, _ := got["territory"].(map[string]any)
	geom, _ := terr["geometry"].(map[string]any)
	if terr["id"] != "1" || geom["type"] != "Polygon" {
		t.Fatalf("territory not sent: %v", terr)
	}
}

func TestReduceGroupedArea_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "computation timed out", http.StatusGatewayTimeout)
	}))
	t.Cleanup(srv.Close)

	e, err := New(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = e.ReduceGroupedArea(context.Background(), testRequest())
	if !httpclient.IsStatus(err, http.StatusGatewayTimeout) {
		t.Fatalf("expected 504 status error, got %v", err)
	}
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	if _, err := New("engine.local", nil); err == nil {
		t.Fatalf("expected error for relative url")
	}
}
