package config

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/service/backend"
	"github.com/secmon-lab/contribview/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Client holds the flags of commands talking to a running backend
type Client struct {
	url     string
	token   string
	timeout time.Duration

	pollInterval   time.Duration
	pollMaxBackoff time.Duration
	pollMaxErrors  int
	pollTimeout    time.Duration
}

func (x *Client) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend-url",
			Usage:       "Base URL of the contribview backend",
			Category:    "Backend",
			Value:       "http://127.0.0.1:8080",
			Sources:     cli.EnvVars("CONTRIBVIEW_BACKEND_URL"),
			Destination: &x.url,
		},
		&cli.StringFlag{
			Name:        "backend-token",
			Usage:       "Bearer token sent to the backend",
			Category:    "Backend",
			Sources:     cli.EnvVars("CONTRIBVIEW_BACKEND_TOKEN"),
			Destination: &x.token,
		},
		&cli.DurationFlag{
			Name:        "backend-timeout",
			Usage:       "Timeout of a single backend request",
			Category:    "Backend",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("CONTRIBVIEW_BACKEND_TIMEOUT"),
			Destination: &x.timeout,
		},
		&cli.DurationFlag{
			Name:        "poll-interval",
			Usage:       "Interval between job status polls",
			Category:    "Polling",
			Value:       usecase.DefaultPollInterval,
			Sources:     cli.EnvVars("CONTRIBVIEW_POLL_INTERVAL"),
			Destination: &x.pollInterval,
		},
		&cli.DurationFlag{
			Name:        "poll-max-backoff",
			Usage:       "Upper bound of the poll interval after failed polls",
			Category:    "Polling",
			Value:       usecase.DefaultPollMaxBackoff,
			Sources:     cli.EnvVars("CONTRIBVIEW_POLL_MAX_BACKOFF"),
			Destination: &x.pollMaxBackoff,
		},
		&cli.IntFlag{
			Name:        "poll-max-errors",
			Usage:       "Consecutive failed polls before giving up",
			Category:    "Polling",
			Value:       usecase.DefaultMaxConsecutiveErrors,
			Sources:     cli.EnvVars("CONTRIBVIEW_POLL_MAX_ERRORS"),
			Destination: &x.pollMaxErrors,
		},
		&cli.DurationFlag{
			Name:        "poll-timeout",
			Usage:       "Give up watching a job after this duration",
			Category:    "Polling",
			Value:       usecase.DefaultPollTimeout,
			Sources:     cli.EnvVars("CONTRIBVIEW_POLL_TIMEOUT"),
			Destination: &x.pollTimeout,
		},
	}
}

func (x Client) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", x.url),
		slog.Int("token.len", len(x.token)),
		slog.Duration("timeout", x.timeout),
		slog.Duration("poll_interval", x.pollInterval),
	)
}

// Configure creates the backend API client
func (x *Client) Configure() (*backend.Client, error) {
	if x.url == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "backend-url is required")
	}

	opts := []backend.Option{
		backend.WithHTTPClient(&http.Client{Timeout: x.timeout}),
	}
	if x.token != "" {
		opts = append(opts, backend.WithToken(x.token))
	}

	client, err := backend.New(x.url, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create backend client", goerr.V("url", x.url))
	}
	return client, nil
}

// PollerOptions returns the polling settings shared by every watched job
func (x *Client) PollerOptions() []usecase.PollerOption {
	return []usecase.PollerOption{
		usecase.WithPollInterval(x.pollInterval),
		usecase.WithPollMaxBackoff(x.pollMaxBackoff),
		usecase.WithMaxConsecutiveErrors(x.pollMaxErrors),
		usecase.WithPollTimeout(x.pollTimeout),
	}
}
