package config

import (
	"log/slog"
	"time"

	"github.com/secmon-lab/contribview/pkg/service/worker"
	"github.com/urfave/cli/v3"
)

// Worker holds settings of the background sync and analysis workers
type Worker struct {
	syncInterval        time.Duration
	analysisConcurrency int
}

func (x *Worker) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:        "sync-interval",
			Usage:       "Interval of the periodic resource refresh (0 disables it)",
			Category:    "Worker",
			Value:       time.Hour,
			Sources:     cli.EnvVars("CONTRIBVIEW_SYNC_INTERVAL"),
			Destination: &x.syncInterval,
		},
		&cli.IntFlag{
			Name:        "analysis-concurrency",
			Usage:       "Resources analyzed at once while generating a report",
			Category:    "Worker",
			Value:       worker.DefaultAnalysisConcurrency,
			Sources:     cli.EnvVars("CONTRIBVIEW_ANALYSIS_CONCURRENCY"),
			Destination: &x.analysisConcurrency,
		},
	}
}

func (x Worker) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("sync_interval", x.syncInterval),
		slog.Int("analysis_concurrency", x.analysisConcurrency),
	)
}

func (x *Worker) SyncInterval() time.Duration {
	return x.syncInterval
}

func (x *Worker) AnalysisConcurrency() int {
	return x.analysisConcurrency
}
