package memory

import (
	"context"
	"sync"

	"github.com/secmon-lab/contribview/pkg/domain/model"
)

type syncStatusRepository struct {
	mu       sync.RWMutex
	statuses map[model.IntegrationID]*model.SyncStatus
}

func newSyncStatusRepository() *syncStatusRepository {
	return &syncStatusRepository{
		statuses: make(map[model.IntegrationID]*model.SyncStatus),
	}
}

func (r *syncStatusRepository) Get(ctx context.Context, integrationID model.IntegrationID) (*model.SyncStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, ok := r.statuses[integrationID]
	if !ok {
		return &model.SyncStatus{}, nil
	}
	return status.Clone(), nil
}

func (r *syncStatusRepository) Save(ctx context.Context, integrationID model.IntegrationID, status *model.SyncStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses[integrationID] = status.Clone()
	return nil
}
