package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/service/worker"
	"github.com/secmon-lab/contribview/pkg/usecase"
	"github.com/secmon-lab/contribview/pkg/utils/errutil"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
)

var errInvalidBody = errors.New("invalid request body")

// statusCode maps usecase errors to HTTP status codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrIntegrationNotFound),
		errors.Is(err, model.ErrResourceNotFound),
		errors.Is(err, model.ErrReportNotFound):
		return http.StatusNotFound

	case errors.Is(err, usecase.ErrSyncInProgress),
		errors.Is(err, usecase.ErrGenerationRunning):
		return http.StatusConflict

	case errors.Is(err, errInvalidBody),
		errors.Is(err, usecase.ErrInvalidRequest),
		errors.Is(err, usecase.ErrUnknownResources),
		errors.Is(err, usecase.ErrNotChannel),
		errors.Is(err, usecase.ErrEmptyReport),
		errors.Is(err, usecase.ErrUnsupportedService),
		errors.Is(err, worker.ErrUnsupportedService),
		errors.Is(err, worker.ErrUnsupportedResource):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError responds with {"detail": ...}. Resource IDs attached to the error are listed in the detail.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		errutil.HandleHTTP(ctx, w, err, code)
		return
	}

	logging.From(ctx).Warn("Request rejected", "status", code, "error", err.Error())
	errutil.WriteJSONError(w, detail(err), code)
}

func detail(err error) string {
	msg := err.Error()

	var ge *goerr.Error
	if !errors.As(err, &ge) {
		return msg
	}
	ids, ok := ge.Values()[usecase.ResourceIDsKey].([]model.ResourceID)
	if !ok || len(ids) == 0 {
		return msg
	}

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return fmt.Sprintf("%s: %s", msg, strings.Join(names, ", "))
}
