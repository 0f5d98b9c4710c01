package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/service/export"
	"github.com/urfave/cli/v3"
)

// Export selects where and how reports are exported
type Export struct {
	format    string
	dir       string
	gcsBucket string
	gcsPrefix string
}

func (x *Export) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "format",
			Usage:       "Export format (markdown or json)",
			Category:    "Export",
			Value:       string(export.FormatMarkdown),
			Sources:     cli.EnvVars("CONTRIBVIEW_EXPORT_FORMAT"),
			Destination: &x.format,
		},
		&cli.StringFlag{
			Name:        "output-dir",
			Usage:       "Local directory receiving exported reports",
			Category:    "Export",
			Value:       ".",
			Sources:     cli.EnvVars("CONTRIBVIEW_EXPORT_DIR"),
			Destination: &x.dir,
		},
		&cli.StringFlag{
			Name:        "gcs-bucket",
			Usage:       "Cloud Storage bucket receiving exported reports (overrides --output-dir)",
			Category:    "Export",
			Sources:     cli.EnvVars("CONTRIBVIEW_EXPORT_GCS_BUCKET"),
			Destination: &x.gcsBucket,
		},
		&cli.StringFlag{
			Name:        "gcs-prefix",
			Usage:       "Object name prefix in the bucket",
			Category:    "Export",
			Sources:     cli.EnvVars("CONTRIBVIEW_EXPORT_GCS_PREFIX"),
			Destination: &x.gcsPrefix,
		},
	}
}

func (x Export) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("format", x.format),
		slog.String("dir", x.dir),
		slog.String("gcs_bucket", x.gcsBucket),
		slog.String("gcs_prefix", x.gcsPrefix),
	)
}

// Configure returns the exporter and a closer releasing the sink
func (x *Export) Configure(ctx context.Context) (*export.Exporter, func(), error) {
	format, err := export.ParseFormat(x.format)
	if err != nil {
		return nil, nil, goerr.Wrap(ErrInvalidConfig, err.Error(), goerr.V("format", x.format))
	}

	if x.gcsBucket == "" {
		return export.New(export.NewFileSink(x.dir), format), func() {}, nil
	}

	sink, err := export.NewGCSSink(ctx, x.gcsBucket, x.gcsPrefix)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure GCS export", goerr.V("bucket", x.gcsBucket))
	}
	return export.New(sink, format), func() { sink.Close(ctx) }, nil
}
