package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/service/notify"
	"github.com/secmon-lab/contribview/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds the bot credentials used to sync workspaces and post notifications
type Slack struct {
	botToken      string
	signingSecret string
	apiURL        string
	notifyChannel string
	notifyVerbose bool
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token (channels:read, channels:history, channels:join, users:read, chat:write)",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("CONTRIBVIEW_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack Signing Secret; enables the Events API endpoint that resyncs channels and users",
			Category:    "Slack",
			Destination: &x.signingSecret,
			Sources:     cli.EnvVars("CONTRIBVIEW_SLACK_SIGNING_SECRET"),
		},
		&cli.StringFlag{
			Name:        "slack-api-url",
			Usage:       "Override the Slack Web API endpoint",
			Category:    "Slack",
			Destination: &x.apiURL,
			Sources:     cli.EnvVars("CONTRIBVIEW_SLACK_API_URL"),
		},
		&cli.StringFlag{
			Name:        "slack-notify-channel",
			Usage:       "Slack channel ID receiving job notifications",
			Category:    "Slack",
			Destination: &x.notifyChannel,
			Sources:     cli.EnvVars("CONTRIBVIEW_SLACK_NOTIFY_CHANNEL"),
		},
		&cli.BoolFlag{
			Name:        "slack-notify-verbose",
			Usage:       "Also post informational notifications",
			Category:    "Slack",
			Destination: &x.notifyVerbose,
			Sources:     cli.EnvVars("CONTRIBVIEW_SLACK_NOTIFY_VERBOSE"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.Int("signing-secret.len", len(x.signingSecret)),
		slog.String("notify-channel", x.notifyChannel),
	)
}

// IsConfigured checks if a bot token is set
func (x *Slack) IsConfigured() bool {
	return x.botToken != ""
}

// SigningSecret returns the secret verifying Events API requests
func (x *Slack) SigningSecret() string {
	return x.signingSecret
}

// Configure creates the Slack service. It returns nil when no bot token is set.
func (x *Slack) Configure() (slack.Service, error) {
	if !x.IsConfigured() {
		return nil, nil
	}

	var opts []slack.Option
	if x.apiURL != "" {
		opts = append(opts, slack.WithAPIURL(x.apiURL))
	}

	svc, err := slack.New(x.botToken, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Slack service")
	}
	return svc, nil
}

// Notifier returns a Slack notifier when a notification channel is set, otherwise nil
func (x *Slack) Notifier(svc slack.Service) interfaces.Notifier {
	if svc == nil || x.notifyChannel == "" {
		return nil
	}
	return notify.NewSlack(svc, x.notifyChannel, notify.WithVerbose(x.notifyVerbose))
}
