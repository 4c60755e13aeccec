// Package api serves the catalog, boundary tables and export planning over
// HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/boundary"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/catalog"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/exporter"
)

const maxBody = 8 << 20

type Handler struct {
	cat      *catalog.Catalog
	store    *boundary.Store
	pipeline *exporter.Pipeline
	log      *slog.Logger
}

func New(cat *catalog.Catalog, store *boundary.Store, p *exporter.Pipeline, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{cat: cat, store: store, pipeline: p, log: log}
}

// Routes mounts the /v1 API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/regions", h.regions)
		r.Route("/regions/{region}", func(r chi.Router) {
			r.Get("/collections", h.collections)
			r.Get("/collections/{collection}/datasets", h.dataTypes)
			r.Get("/collections/{collection}/datasets/{dataType}", h.dataset)
			r.Get("/tables", h.tables)
			r.Get("/states", h.states)
		})
		r.Get("/buffers", h.buffers)
		r.Get("/tables/{table}/properties", h.properties)
		r.Get("/tables/{table}/properties/{property}/features", h.features)
		r.Post("/layers", h.layers)
		r.Post("/exports", h.export)
	})
}

func (h *Handler) regions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"regions": h.cat.RegionNames()})
}

func (h *Handler) collections(w http.ResponseWriter, r *http.Request) {
	region, err := h.cat.Region(chi.URLParam(r, "region"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": region.CollectionNames()})
}

func (h *Handler) dataTypes(w http.ResponseWriter, r *http.Request) {
	region, err := h.cat.Region(chi.URLParam(r, "region"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	col, err := region.Collection(chi.URLParam(r, "collection"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data_types": col.DataTypes()})
}

type datasetResponse struct {
	*catalog.Dataset
	DefaultPeriod model.Period      `json:"default_period"`
	Preview       catalog.VisParams `json:"preview"`
}

func (h *Handler) dataset(w http.ResponseWriter, r *http.Request) {
	ds, err := h.cat.Dataset(chi.URLParam(r, "region"), chi.URLParam(r, "collection"), chi.URLParam(r, "dataType"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	latest := ds.LatestPeriod()
	writeJSON(w, http.StatusOK, datasetResponse{Dataset: ds, DefaultPeriod: latest, Preview: ds.VisParams(latest)})
}

func (h *Handler) tables(w http.ResponseWriter, r *http.Request) {
	region, err := h.cat.Region(chi.URLParam(r, "region"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": region.Tables})
}

func (h *Handler) states(w http.ResponseWriter, r *http.Request) {
	region, err := h.cat.Region(chi.URLParam(r, "region"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state_property": region.StateProperty, "states": region.States})
}

func (h *Handler) buffers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"buffers": h.cat.Buffers})
}

func (h *Handler) properties(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.PropertyNames(chi.URLParam(r, "table"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"properties": names})
}

func (h *Handler) features(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.FeatureNames(chi.URLParam(r, "table"), chi.URLParam(r, "property"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"features": names})
}

// layers replays a selection and lists its preview layers, one per period.
func (h *Handler) layers(w http.ResponseWriter, r *http.Request) {
	var req exporter.Request
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.pipeline.Session(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	layers, err := s.Layers()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"layers": layers})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	var req exporter.Request
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.pipeline.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, exporter.ErrSubmit) {
			h.log.WarnContext(r.Context(), "export partially submitted", "export_id", res.ExportID, "err", err)
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "result": res})
			return
		}
		h.fail(w, r, err)
		return
	}
	status := http.StatusAccepted
	if res.DryRun {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

var errBadBody = errors.New("bad request body")

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadBody, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
