package async

import (
	"context"

	"github.com/secmon-lab/contribview/pkg/utils/errutil"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
)

// Dispatch runs handler in a new goroutine detached from ctx cancellation.
// The logger carried by ctx is preserved. Errors and panics are logged, never propagated.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	bgCtx := logging.With(context.Background(), logging.From(ctx))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.From(bgCtx).Error("panic in async handler", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			_ = errutil.Handle(bgCtx, err, "async handler failed")
		}
	}()
}
