package worker

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

var (
	// ErrUnsupportedService is returned when no Source is registered for the integration's service
	ErrUnsupportedService = goerr.New("unsupported service")
	// ErrUnsupportedResource is returned when a Source cannot handle the resource type
	ErrUnsupportedResource = goerr.New("unsupported resource type")
)

// Source reads resources and their activity from one third-party service
type Source interface {
	// ResourceTypes returns the resource types the source can sync
	ResourceTypes() []types.ResourceType

	// FetchResources lists the current resources of one type
	FetchResources(ctx context.Context, integration *model.Integration, resourceType types.ResourceType) ([]*model.Resource, error)

	// Analyze counts contributions to resource within [start, end]
	Analyze(ctx context.Context, integration *model.Integration, resource *model.Resource, start, end time.Time) (*model.ResourceAnalysis, error)
}

// BotInstaller is implemented by sources that can add the bot to a channel
type BotInstaller interface {
	InstallBot(ctx context.Context, integration *model.Integration, resource *model.Resource) error
}

// Sources maps a service type to its Source
type Sources map[types.ServiceType]Source

// Get returns the Source for the service type
func (s Sources) Get(serviceType types.ServiceType) (Source, error) {
	src, ok := s[serviceType]
	if !ok || src == nil {
		return nil, goerr.Wrap(ErrUnsupportedService, "no source for service", goerr.V("service", serviceType))
	}
	return src, nil
}

// supports reports whether the source handles resourceType
func supports(src Source, resourceType types.ResourceType) bool {
	return slices.Contains(src.ResourceTypes(), resourceType)
}

// contributionCounter accumulates contributions per external user ID
type contributionCounter struct {
	counts map[string]int
	names  map[string]string
}

func newContributionCounter() *contributionCounter {
	return &contributionCounter{
		counts: make(map[string]int),
		names:  make(map[string]string),
	}
}

func (c *contributionCounter) add(id, name string) {
	if id == "" {
		return
	}
	c.counts[id]++
	if name != "" {
		c.names[id] = name
	}
}

func (c *contributionCounter) ids() []string {
	ids := make([]string, 0, len(c.counts))
	for id := range c.counts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// contributors returns the result ordered by contributions, most active first
func (c *contributionCounter) contributors() []model.Contributor {
	result := make([]model.Contributor, 0, len(c.counts))
	for id, n := range c.counts {
		name := c.names[id]
		if name == "" {
			name = id
		}
		result = append(result, model.Contributor{
			ExternalID:    id,
			Name:          name,
			Contributions: n,
		})
	}
	slices.SortFunc(result, func(a, b model.Contributor) int {
		if a.Contributions != b.Contributions {
			return cmp.Compare(b.Contributions, a.Contributions)
		}
		return cmp.Compare(a.ExternalID, b.ExternalID)
	})
	return result
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func newResource(integration *model.Integration, resourceType types.ResourceType, externalID, name string, metadata map[string]any, syncedAt time.Time) *model.Resource {
	return &model.Resource{
		ID:            model.NewResourceID(integration.ID, resourceType, externalID),
		IntegrationID: integration.ID,
		ExternalID:    externalID,
		Name:          name,
		ResourceType:  resourceType,
		Metadata:      metadata,
		LastSyncedAt:  &syncedAt,
	}
}
