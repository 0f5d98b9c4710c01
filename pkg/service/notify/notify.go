// Package notify delivers user-visible notifications to the terminal or to Slack.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
)

// Console prints notifications with a colored level marker
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

var _ interfaces.Notifier = (*Console)(nil)

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Notify(ctx context.Context, n model.Notification) {
	marker := levelColor(n.Level).Sprint(levelMarker(n.Level))

	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if n.Message == "" {
		_, err = fmt.Fprintf(c.out, "%s %s\n", marker, n.Title)
	} else {
		_, err = fmt.Fprintf(c.out, "%s %s: %s\n", marker, n.Title, n.Message)
	}
	if err != nil {
		logging.From(ctx).Warn("Failed to print notification", "error", err.Error())
	}
}

func levelMarker(level model.NotificationLevel) string {
	switch level {
	case model.NotificationSuccess:
		return "[ok]"
	case model.NotificationFailure:
		return "[error]"
	default:
		return "[info]"
	}
}

func levelColor(level model.NotificationLevel) *color.Color {
	switch level {
	case model.NotificationSuccess:
		return color.New(color.FgGreen, color.Bold)
	case model.NotificationFailure:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgCyan)
	}
}

// MessagePoster posts a text message to a Slack channel
type MessagePoster interface {
	PostMessage(ctx context.Context, channelID, text string) error
}

// Slack posts notifications to a channel. Info notifications are skipped unless enabled.
type Slack struct {
	poster    MessagePoster
	channelID string
	verbose   bool
}

var _ interfaces.Notifier = (*Slack)(nil)

type SlackOption func(*Slack)

// WithVerbose also posts info notifications
func WithVerbose(verbose bool) SlackOption {
	return func(s *Slack) {
		s.verbose = verbose
	}
}

func NewSlack(poster MessagePoster, channelID string, opts ...SlackOption) *Slack {
	s := &Slack{poster: poster, channelID: channelID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Slack) Notify(ctx context.Context, n model.Notification) {
	if n.Level == model.NotificationInfo && !s.verbose {
		return
	}

	text := fmt.Sprintf("%s *%s*", slackEmoji(n.Level), n.Title)
	if n.Message != "" {
		text += "\n" + n.Message
	}

	if err := s.poster.PostMessage(ctx, s.channelID, text); err != nil {
		logging.From(ctx).Warn("Failed to post notification to Slack",
			"channel_id", s.channelID,
			"title", n.Title,
			"error", err.Error())
	}
}

func slackEmoji(level model.NotificationLevel) string {
	switch level {
	case model.NotificationSuccess:
		return ":white_check_mark:"
	case model.NotificationFailure:
		return ":x:"
	default:
		return ":information_source:"
	}
}

// Multi fans a notification out to every notifier in order
type Multi []interfaces.Notifier

func (m Multi) Notify(ctx context.Context, n model.Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}
