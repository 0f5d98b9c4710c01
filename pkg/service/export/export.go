// Package export renders team reports and writes them to local files or Cloud Storage.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/domain/wire"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
	"github.com/secmon-lab/contribview/pkg/utils/safe"
)

// Format selects how a report is rendered
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat parses a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatMarkdown, FormatJSON:
		return f, nil
	}
	return "", goerr.New("unsupported export format", goerr.V("format", s))
}

func (f Format) extension() string {
	if f == FormatJSON {
		return ".json"
	}
	return ".md"
}

func (f Format) contentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/markdown; charset=utf-8"
}

// Sink stores an exported object
type Sink interface {
	Write(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Exporter renders reports and writes them to a sink
type Exporter struct {
	sink   Sink
	format Format
}

func New(sink Sink, format Format) *Exporter {
	return &Exporter{sink: sink, format: format}
}

// Export writes the report and returns the location it was written to
func (e *Exporter) Export(ctx context.Context, report *model.TeamReport) (string, error) {
	data, err := Render(report, e.format)
	if err != nil {
		return "", err
	}

	name := ObjectName(report, e.format)
	location, err := e.sink.Write(ctx, name, e.format.contentType(), data)
	if err != nil {
		return "", goerr.Wrap(err, "failed to write report export",
			goerr.V("report_id", report.ID), goerr.V("name", name))
	}

	logging.From(ctx).Info("Report exported", "report_id", report.ID, "location", location)
	return location, nil
}

// ObjectName is "<team>/<report>.<ext>"
func ObjectName(report *model.TeamReport, format Format) string {
	return report.TeamID.String() + "/" + report.ID.String() + format.extension()
}

// Render encodes the report in the format
func Render(report *model.TeamReport, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(wire.FromTeamReport(report), "", "  ")
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode report", goerr.V("report_id", report.ID))
		}
		return data, nil
	case FormatMarkdown:
		return renderMarkdown(report), nil
	}
	return nil, goerr.New("unsupported export format", goerr.V("format", format))
}

func renderMarkdown(report *model.TeamReport) []byte {
	var b bytes.Buffer
	done, total := report.Progress()

	fmt.Fprintf(&b, "# %s\n\n", report.Title)
	fmt.Fprintf(&b, "- Team: %s\n", report.TeamID)
	fmt.Fprintf(&b, "- Period: %s - %s\n", report.StartDate.Format(time.DateOnly), report.EndDate.Format(time.DateOnly))
	fmt.Fprintf(&b, "- Status: %s (%d/%d analyzed)\n", report.Status(), done, total)

	for _, a := range report.Analyses {
		name := a.ResourceName
		if name == "" {
			name = a.ResourceID.String()
		}
		fmt.Fprintf(&b, "\n## %s (%s)\n\n", name, a.ResourceType)

		switch a.Status.Normalize() {
		case types.AnalysisStatusPending:
			b.WriteString("_Analysis pending._\n")
			continue
		case types.AnalysisStatusFailed:
			fmt.Fprintf(&b, "_Analysis failed: %s_\n", a.Error)
			continue
		}

		if a.Summary != "" {
			fmt.Fprintf(&b, "%s\n", a.Summary)
		}
		if len(a.Contributors) > 0 {
			b.WriteString("\n| Contributor | Contributions |\n|---|---|\n")
			for _, c := range a.Contributors {
				fmt.Fprintf(&b, "| %s | %d |\n", c.Name, c.Contributions)
			}
		}
		if len(a.Highlights) > 0 {
			b.WriteString("\nHighlights:\n\n")
			for _, h := range a.Highlights {
				fmt.Fprintf(&b, "- %s\n", h)
			}
		}
	}
	return b.Bytes()
}

// FileSink writes exports under a local directory
type FileSink struct {
	dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (s *FileSink) Write(ctx context.Context, name, contentType string, data []byte) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", goerr.Wrap(err, "failed to create export directory", goerr.V("path", path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", goerr.Wrap(err, "failed to write export file", goerr.V("path", path))
	}
	return path, nil
}

// GCSSink writes exports to a Cloud Storage bucket
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSink creates a sink using application default credentials
func NewGCSSink(ctx context.Context, bucket, prefix string) (*GCSSink, error) {
	if bucket == "" {
		return nil, goerr.New("GCS bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client")
	}
	return &GCSSink{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (s *GCSSink) Write(ctx context.Context, name, contentType string, data []byte) (string, error) {
	object := name
	if s.prefix != "" {
		object = s.prefix + "/" + name
	}

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to upload export", goerr.V("bucket", s.bucket), goerr.V("object", object))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize export upload", goerr.V("bucket", s.bucket), goerr.V("object", object))
	}
	return "gs://" + s.bucket + "/" + object, nil
}

func (s *GCSSink) Close(ctx context.Context) {
	safe.Close(ctx, s.client)
}
