package enginesink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/httpclient"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
)

func TestExports_PostToEngineAndReturnTaskTickets(t *testing.T) {
	var paths []string
	var raster map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/v1/exports/image" {
			_ = json.NewDecoder(r.Body).Decode(&raster)
		}
		_, _ = w.Write([]byte(`{"task_id":"T` + string(rune('0'+len(paths))) + `"}`))
	}))
	t.Cleanup(srv.Close)

	s, err := New(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	rj := model.RasterJob{
		Image:    model.Image{Asset: "a", Band: "irrigated_agriculture_2019"},
		FileName: "x-2019", Folder: "MAPBIOMAS-EXPORT", Format: "GeoTIFF", Scale: 30, MaxPixels: 1e13,
		Clip:   model.Clip{Geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, BufferMeters: 1000},
		Region: model.BBox{X1: 0, Y1: 0, X2: 1, Y2: 1},
	}
	tk, err := s.ExportRaster(ctx, rj)
	if err != nil {
		t.Fatalf("ExportRaster: %v", err)
	}
	if tk.ID != "T1" || tk.Kind != model.KindRaster || tk.Sink != Name {
		t.Fatalf("ticket %+v", tk)
	}
	clip, _ := raster["clip"].(map[string]any)
	if raster["file_name"] != "x-2019" || raster["folder"] != "MAPBIOMAS-EXPORT" || clip["buffer_meters"] != float64(1000) {
		t.Fatalf("raster body %v", raster)
	}

	tk, err = s.ExportTable(ctx, model.TableJob{FileName: "x-area", Format: "CSV"})
	if err != nil {
		t.Fatalf("ExportTable: %v", err)
	}
	if tk.ID != "T2" || tk.Kind != model.KindTable {
		t.Fatalf("ticket %+v", tk)
	}
	if len(paths) != 2 || paths[1] != "/v1/exports/table" {
		t.Fatalf("paths %v", paths)
	}
}

func TestExport_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/exports/table" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	s, _ := New(srv.URL, srv.Client())
	if _, err := s.ExportRaster(context.Background(), model.RasterJob{FileName: "x"}); !httpclient.IsStatus(err, http.StatusTooManyRequests) {
		t.Fatalf("expected 429 status error, got %v", err)
	}
	if _, err := s.ExportTable(context.Background(), model.TableJob{FileName: "x"}); err == nil {
		t.Fatalf("expected error for missing task id")
	}
}
