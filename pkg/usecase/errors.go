package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Client state errors
	ErrSelectionNotReady = errors.New("channel selection is not initialized")
	ErrPollAborted       = errors.New("polling aborted after consecutive errors")
	ErrPollTimeout       = errors.New("polling timed out")

	// Request errors
	ErrSyncInProgress     = errors.New("resource sync is already in progress")
	ErrUnknownResources   = errors.New("unknown resource ids")
	ErrNotChannel         = errors.New("resource is not a channel")
	ErrUnsupportedService = errors.New("service type is not supported")
	ErrEmptyReport        = errors.New("report has no resources")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrGenerationRunning  = errors.New("report generation is already in progress")
)

// Context keys for error values
const (
	IntegrationIDKey = "integration_id"
	ResourceIDsKey   = "resource_ids"
	ReportIDKey      = "report_id"
	TeamIDKey        = "team_id"
)

// userMessager is implemented by errors carrying a message meant for end users,
// such as the detail field of a backend error response.
type userMessager interface {
	UserMessage() string
}

// userMessage extracts the user facing message of err, or fallback when none exists
func userMessage(err error, fallback string) string {
	var m userMessager
	if errors.As(err, &m) && m.UserMessage() != "" {
		return m.UserMessage()
	}
	return fallback
}
