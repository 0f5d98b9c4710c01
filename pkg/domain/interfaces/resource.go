package interfaces

import (
	"context"

	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

// ResourceRepository persists synchronized resources and their selection flag
type ResourceRepository interface {
	// List retrieves resources of an integration ordered by name.
	// An empty resourceTypes returns every type.
	List(ctx context.Context, integrationID model.IntegrationID, resourceTypes ...types.ResourceType) ([]*model.Resource, error)

	// GetByIDs retrieves resources by ID. Missing IDs are not included in the map.
	GetByIDs(ctx context.Context, ids []model.ResourceID) (map[model.ResourceID]*model.Resource, error)

	// Replace swaps every resource of the given type for the integration (Replace strategy).
	// Resources already stored keep their persisted selection flag; new resources take
	// the flag of the given resource (false when unset).
	Replace(ctx context.Context, integrationID model.IntegrationID, resourceType types.ResourceType, resources []*model.Resource) error

	// SetSelected sets the selection flag of the given resources.
	// It fails with ErrResourceNotFound without writing when any ID is unknown.
	SetSelected(ctx context.Context, integrationID model.IntegrationID, ids []model.ResourceID, selected bool) error

	// ListSelected returns the IDs of selected resources ordered by ID
	ListSelected(ctx context.Context, integrationID model.IntegrationID) ([]model.ResourceID, error)
}
