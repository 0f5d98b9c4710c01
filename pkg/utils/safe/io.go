package safe

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/secmon-lab/contribview/pkg/utils/logging"
)

// Close closes an io.Closer and logs any error. nil closers are ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// DrainAndClose discards the rest of an HTTP body so the connection can be reused, then closes it
func DrainAndClose(ctx context.Context, body io.ReadCloser) {
	if body == nil {
		return
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		logging.From(ctx).Debug("Failed to drain body", slog.Any("error", err))
	}
	Close(ctx, body)
}

// WriteJSON encodes v as the response body with the given status and logs encoding failures.
// Headers are already committed when encoding fails, so nothing else can be sent.
func WriteJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(ctx).Error("Failed to write JSON response", slog.Any("error", err))
	}
}
