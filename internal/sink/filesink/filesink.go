// Package filesink writes export jobs to a local directory: area tables as
// CSV and raster jobs as JSON manifests. Used for dry runs and offline mode.
package filesink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/slug"
)

const Name = "file"

var header = []string{"territory", "class", "class_name", "area", "unit", "band"}

type Sink struct {
	dir string
}

func New(dir string) (*Sink, error) {
	if dir == "" {
		return nil, fmt.Errorf("file sink: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: %w", err)
	}
	return &Sink{dir: dir}, nil
}

func (s *Sink) Name() string { return Name }

func (s *Sink) ExportRaster(ctx context.Context, job model.RasterJob) (model.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return model.Ticket{}, err
	}
	path, err := s.path(job.Folder, job.FileName, ".json")
	if err != nil {
		return model.Ticket{}, err
	}
	b, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return model.Ticket{}, fmt.Errorf("encode raster manifest %s: %w", job.FileName, err)
	}
	if err := writeFile(path, func(f *os.File) error {
		_, err := f.Write(append(b, '\n'))
		return err
	}); err != nil {
		return model.Ticket{}, err
	}
	return model.Ticket{ID: path, Kind: model.KindRaster, FileName: job.FileName, Sink: Name}, nil
}

func (s *Sink) ExportTable(ctx context.Context, job model.TableJob) (model.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return model.Ticket{}, err
	}
	path, err := s.path(job.Folder, job.FileName, ".csv")
	if err != nil {
		return model.Ticket{}, err
	}
	if err := writeFile(path, func(f *os.File) error {
		return WriteCSV(f, job.Rows)
	}); err != nil {
		return model.Ticket{}, err
	}
	return model.Ticket{ID: path, Kind: model.KindTable, FileName: job.FileName, Sink: Name}, nil
}

// WriteCSV writes rows with a header line, one record per row in order.
func WriteCSV(out io.Writer, rows []model.AnnotatedArea) error {
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			string(r.Territory),
			strconv.Itoa(r.Class),
			r.ClassName,
			strconv.FormatFloat(r.Area, 'f', -1, 64),
			r.Unit,
			r.Band,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Sink) path(folder, file, ext string) (string, error) {
	name := slug.Make(file)
	if name == "" {
		return "", fmt.Errorf("file sink: empty file name")
	}
	dir := s.dir
	switch {
	case folder == "":
	case folder == "." || folder == ".." || strings.ContainsAny(folder, `/\`):
		dir = filepath.Join(dir, slug.Make(folder))
	default:
		dir = filepath.Join(dir, folder)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("file sink: %w", err)
	}
	return filepath.Join(dir, name+ext), nil
}

// writeFile writes through a temp file so a partial export never appears
// under the final name.
func writeFile(path string, fill func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file sink: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	return nil
}
