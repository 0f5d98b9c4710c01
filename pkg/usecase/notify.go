package usecase

import (
	"context"

	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
)

// notify delivers n when a notifier is configured. Notification is best effort.
func notify(ctx context.Context, notifier interfaces.Notifier, n model.Notification) {
	if notifier == nil {
		logging.From(ctx).Debug("notification", "level", n.Level, "title", n.Title, "message", n.Message)
		return
	}
	notifier.Notify(ctx, n)
}
