package interfaces

import (
	"context"

	"github.com/secmon-lab/contribview/pkg/domain/model"
)

// SyncStatusRepository persists the sync state per integration
type SyncStatusRepository interface {
	// Get returns the status, or a zero status when none was saved yet
	Get(ctx context.Context, integrationID model.IntegrationID) (*model.SyncStatus, error)

	// Save stores the status
	Save(ctx context.Context, integrationID model.IntegrationID, status *model.SyncStatus) error
}
