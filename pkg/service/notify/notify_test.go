package notify_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/service/notify"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

type mockPoster struct {
	channels []string
	texts    []string
	err      error
}

func (m *mockPoster) PostMessage(ctx context.Context, channelID, text string) error {
	m.channels = append(m.channels, channelID)
	m.texts = append(m.texts, text)
	return m.err
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsole(&buf)
	ctx := context.Background()

	c.Notify(ctx, model.Notification{Level: model.NotificationSuccess, Title: "Sync completed"})
	c.Notify(ctx, model.Notification{Level: model.NotificationFailure, Title: "Save failed", Message: "channel_not_found"})

	gt.Value(t, buf.String()).Equal("[ok] Sync completed\n[error] Save failed: channel_not_found\n")
}

func TestSlack(t *testing.T) {
	ctx := context.Background()

	t.Run("posts success and failure", func(t *testing.T) {
		poster := &mockPoster{}
		s := notify.NewSlack(poster, "C-ALERTS")

		s.Notify(ctx, model.Notification{Level: model.NotificationInfo, Title: "Sync started"})
		s.Notify(ctx, model.Notification{Level: model.NotificationSuccess, Title: "Sync completed", Message: "12 channels"})

		gt.Array(t, poster.texts).Length(1)
		gt.Value(t, poster.channels[0]).Equal("C-ALERTS")
		gt.Value(t, poster.texts[0]).Equal(":white_check_mark: *Sync completed*\n12 channels")
	})

	t.Run("verbose posts info", func(t *testing.T) {
		poster := &mockPoster{}
		s := notify.NewSlack(poster, "C-ALERTS", notify.WithVerbose(true))
		s.Notify(ctx, model.Notification{Level: model.NotificationInfo, Title: "Sync started"})
		gt.Array(t, poster.texts).Length(1)
	})

	t.Run("post failure is swallowed", func(t *testing.T) {
		poster := &mockPoster{err: errors.New("not_in_channel")}
		s := notify.NewSlack(poster, "C-ALERTS")
		s.Notify(ctx, model.Notification{Level: model.NotificationFailure, Title: "Save failed"})
		gt.Array(t, poster.texts).Length(1)
	})
}

func TestMulti(t *testing.T) {
	var buf bytes.Buffer
	poster := &mockPoster{}
	m := notify.Multi{notify.NewConsole(&buf), nil, notify.NewSlack(poster, "C1")}

	var n interfaces.Notifier = m
	n.Notify(context.Background(), model.Notification{Level: model.NotificationFailure, Title: "Report failed"})

	gt.Value(t, buf.String()).Equal("[error] Report failed\n")
	gt.Array(t, poster.texts).Length(1)
}
