// Package enginesink submits export jobs to the analysis engine's export
// API: POST /v1/exports/image and POST /v1/exports/table.
package enginesink

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/httpclient"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
)

const Name = "engine"

type Sink struct {
	client *http.Client
	base   string
}

func New(base string, client *http.Client) (*Sink, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse engine url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("engine url %q must be absolute", base)
	}
	return &Sink{client: client, base: u.String()}, nil
}

func (s *Sink) Name() string { return Name }

// taskResponse is the engine's acknowledgement of a started export task.
type taskResponse struct {
	TaskID string `json:"task_id"`
}

func (s *Sink) ExportRaster(ctx context.Context, job model.RasterJob) (model.Ticket, error) {
	var out taskResponse
	if err := httpclient.PostJSON(ctx, s.client, s.base+"/v1/exports/image", job, &out); err != nil {
		return model.Ticket{}, fmt.Errorf("start image export %s: %w", job.FileName, err)
	}
	return s.ticket(out, model.KindRaster, job.FileName)
}

func (s *Sink) ExportTable(ctx context.Context, job model.TableJob) (model.Ticket, error) {
	var out taskResponse
	if err := httpclient.PostJSON(ctx, s.client, s.base+"/v1/exports/table", job, &out); err != nil {
		return model.Ticket{}, fmt.Errorf("start table export %s: %w", job.FileName, err)
	}
	return s.ticket(out, model.KindTable, job.FileName)
}

func (s *Sink) ticket(out taskResponse, kind model.JobKind, file string) (model.Ticket, error) {
	if out.TaskID == "" {
		return model.Ticket{}, fmt.Errorf("engine accepted %s export %s without a task id", kind, file)
	}
	return model.Ticket{ID: out.TaskID, Kind: kind, FileName: file, Sink: Name}, nil
}
