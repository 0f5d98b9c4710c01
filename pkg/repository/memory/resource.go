package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

type resourceRepository struct {
	mu        sync.RWMutex
	resources map[model.ResourceID]*model.Resource
}

func newResourceRepository() *resourceRepository {
	return &resourceRepository{
		resources: make(map[model.ResourceID]*model.Resource),
	}
}

func sortResources(resources []*model.Resource) {
	slices.SortFunc(resources, func(a, b *model.Resource) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func (r *resourceRepository) List(ctx context.Context, integrationID model.IntegrationID, resourceTypes ...types.ResourceType) ([]*model.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Resource, 0)
	for _, res := range r.resources {
		if res.IntegrationID != integrationID {
			continue
		}
		if len(resourceTypes) > 0 && !slices.Contains(resourceTypes, res.ResourceType) {
			continue
		}
		result = append(result, res.Clone())
	}
	sortResources(result)
	return result, nil
}

func (r *resourceRepository) GetByIDs(ctx context.Context, ids []model.ResourceID) (map[model.ResourceID]*model.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[model.ResourceID]*model.Resource, len(ids))
	for _, id := range ids {
		if res, ok := r.resources[id]; ok {
			result[id] = res.Clone()
		}
	}
	return result, nil
}

// Replace strategy: delete every resource of the type, then save the new set.
// Resources already stored keep their selection flag.
func (r *resourceRepository) Replace(ctx context.Context, integrationID model.IntegrationID, resourceType types.ResourceType, resources []*model.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := make(map[model.ResourceID]bool)
	for id, res := range r.resources {
		if res.IntegrationID == integrationID && res.ResourceType == resourceType {
			previous[id], _ = model.ResolveSelected(res)
			delete(r.resources, id)
		}
	}

	for _, res := range resources {
		stored := res.Clone()
		stored.IntegrationID = integrationID
		stored.ResourceType = resourceType
		selected, ok := previous[stored.ID]
		if !ok {
			selected, _ = model.ResolveSelected(res)
		}
		stored.IsSelectedForAnalysis = model.Bool(selected)
		r.resources[stored.ID] = stored
	}
	return nil
}

func (r *resourceRepository) SetSelected(ctx context.Context, integrationID model.IntegrationID, ids []model.ResourceID, selected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var missing []model.ResourceID
	for _, id := range ids {
		res, ok := r.resources[id]
		if !ok || res.IntegrationID != integrationID {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return goerr.Wrap(model.ErrResourceNotFound, "unknown resources",
			goerr.V("integration_id", integrationID), goerr.V("ids", missing))
	}

	for _, id := range ids {
		r.resources[id].IsSelectedForAnalysis = model.Bool(selected)
	}
	return nil
}

func (r *resourceRepository) ListSelected(ctx context.Context, integrationID model.IntegrationID) ([]model.ResourceID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]model.ResourceID, 0)
	for _, res := range r.resources {
		if res.IntegrationID != integrationID {
			continue
		}
		if selected, _ := model.ResolveSelected(res); selected {
			result = append(result, res.ID)
		}
	}
	slices.Sort(result)
	return result, nil
}
