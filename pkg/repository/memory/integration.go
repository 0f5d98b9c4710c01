package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/model"
)

type integrationRepository struct {
	mu           sync.RWMutex
	integrations map[model.IntegrationID]*model.Integration
}

func newIntegrationRepository() *integrationRepository {
	return &integrationRepository{
		integrations: make(map[model.IntegrationID]*model.Integration),
	}
}

func (r *integrationRepository) Put(ctx context.Context, integration *model.Integration) (*model.Integration, error) {
	if err := integration.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid integration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	stored := integration.Clone()
	stored.Status = stored.Status.Normalize()
	stored.CreatedAt = now
	if existing, ok := r.integrations[stored.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	stored.UpdatedAt = now

	r.integrations[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *integrationRepository) Get(ctx context.Context, id model.IntegrationID) (*model.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	integration, ok := r.integrations[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrIntegrationNotFound, "integration not found", goerr.V("id", id))
	}
	return integration.Clone(), nil
}

func (r *integrationRepository) List(ctx context.Context) ([]*model.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Integration, 0, len(r.integrations))
	for _, integration := range r.integrations {
		result = append(result, integration.Clone())
	}
	slices.SortFunc(result, func(a, b *model.Integration) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}
