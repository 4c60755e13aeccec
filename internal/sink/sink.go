// Package sink hands planned export jobs to whatever writes them: the
// analysis engine's export API, a Kafka topic drained by export workers, or
// a local folder.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/observability"
)

var ErrBadEnvelope = errors.New("invalid export envelope")

// Sink accepts jobs. A returned Ticket means the job was handed off; its
// lifecycle after that belongs to the sink.
type Sink interface {
	Name() string
	ExportRaster(ctx context.Context, job model.RasterJob) (model.Ticket, error)
	ExportTable(ctx context.Context, job model.TableJob) (model.Ticket, error)
}

// Envelope is the message form of one job on the export topic.
type Envelope struct {
	ID        string           `json:"id"`
	ExportID  string           `json:"export_id,omitempty"`
	Kind      model.JobKind    `json:"kind"`
	Raster    *model.RasterJob `json:"raster,omitempty"`
	Table     *model.TableJob  `json:"table,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func NewRasterEnvelope(exportID string, job model.RasterJob) Envelope {
	return Envelope{ID: uuid.NewString(), ExportID: exportID, Kind: model.KindRaster, Raster: &job, CreatedAt: time.Now().UTC()}
}

func NewTableEnvelope(exportID string, job model.TableJob) Envelope {
	return Envelope{ID: uuid.NewString(), ExportID: exportID, Kind: model.KindTable, Table: &job, CreatedAt: time.Now().UTC()}
}

func (e Envelope) FileName() string {
	switch {
	case e.Raster != nil:
		return e.Raster.FileName
	case e.Table != nil:
		return e.Table.FileName
	}
	return ""
}

func (e Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrBadEnvelope)
	}
	switch e.Kind {
	case model.KindRaster:
		if e.Raster == nil {
			return fmt.Errorf("%w: raster envelope %s has no job", ErrBadEnvelope, e.ID)
		}
	case model.KindTable:
		if e.Table == nil {
			return fmt.Errorf("%w: table envelope %s has no job", ErrBadEnvelope, e.ID)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrBadEnvelope, e.Kind)
	}
	return nil
}

// Forward hands the job inside env to s.
func Forward(ctx context.Context, s Sink, env Envelope) (model.Ticket, error) {
	if err := env.Validate(); err != nil {
		return model.Ticket{}, err
	}
	if env.Kind == model.KindRaster {
		return s.ExportRaster(ctx, *env.Raster)
	}
	return s.ExportTable(ctx, *env.Table)
}

// Submit hands the raster jobs and then the table job to s, in order, and
// stops at the first failure. The tickets of jobs already handed off are
// returned with the error.
func Submit(ctx context.Context, s Sink, rasters []model.RasterJob, table *model.TableJob) ([]model.Ticket, error) {
	n := len(rasters)
	if table != nil {
		n++
	}
	tickets := make([]model.Ticket, 0, n)
	for _, j := range rasters {
		t, err := s.ExportRaster(ctx, j)
		observability.ObserveJobSubmitted(string(model.KindRaster), s.Name(), err)
		if err != nil {
			return tickets, fmt.Errorf("export raster %s: %w", j.FileName, err)
		}
		tickets = append(tickets, t)
	}
	if table != nil {
		t, err := s.ExportTable(ctx, *table)
		observability.ObserveJobSubmitted(string(model.KindTable), s.Name(), err)
		if err != nil {
			return tickets, fmt.Errorf("export table %s: %w", table.FileName, err)
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}
