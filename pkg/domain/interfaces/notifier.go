package interfaces

import (
	"context"

	"github.com/secmon-lab/contribview/pkg/domain/model"
)

// Notifier shows transient notifications to the user. Implementations must not block for long
// and must not fail: delivery problems are logged by the implementation.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}
