package interfaces

import (
	"context"

	"github.com/secmon-lab/contribview/pkg/domain/model"
)

// IntegrationRepository persists integration descriptors
type IntegrationRepository interface {
	// Put creates or replaces an integration. CreatedAt is preserved on replace.
	Put(ctx context.Context, integration *model.Integration) (*model.Integration, error)

	// Get retrieves an integration by ID
	Get(ctx context.Context, id model.IntegrationID) (*model.Integration, error)

	// List retrieves all integrations ordered by ID
	List(ctx context.Context) ([]*model.Integration, error)
}
