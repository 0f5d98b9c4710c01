package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/service/notion"
)

const maxNotionHighlights = 5

// NotionSource syncs the databases listed in the integration metadata
type NotionSource struct {
	svc notion.Service
}

// NewNotionSource creates a Source backed by the Notion API
func NewNotionSource(svc notion.Service) *NotionSource {
	return &NotionSource{svc: svc}
}

func (s *NotionSource) ResourceTypes() []types.ResourceType {
	return []types.ResourceType{types.ResourceTypeDatabase}
}

func (s *NotionSource) FetchResources(ctx context.Context, integration *model.Integration, resourceType types.ResourceType) ([]*model.Resource, error) {
	if resourceType != types.ResourceTypeDatabase {
		return nil, goerr.Wrap(ErrUnsupportedResource, "Notion cannot sync resource type",
			goerr.V("resource_type", resourceType))
	}

	now := time.Now().UTC()
	refs := integration.MetadataStrings(model.MetadataKeyDatabases)
	resources := make([]*model.Resource, 0, len(refs))

	for _, ref := range refs {
		dbID, err := model.ParseNotionID(ref)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid database in integration metadata",
				goerr.V("integration_id", integration.ID), goerr.V("database", ref))
		}

		db, err := s.svc.GetDatabase(ctx, dbID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to fetch Notion database",
				goerr.V("integration_id", integration.ID), goerr.V("database_id", dbID))
		}

		resources = append(resources, newResource(integration, resourceType, db.ID, db.Title, map[string]any{
			model.MetadataKeyURL: db.URL,
			"last_edited_time":   db.LastEditedTime,
		}, now))
	}

	return resources, nil
}

// Analyze counts page creations and edits made within the range
func (s *NotionSource) Analyze(ctx context.Context, integration *model.Integration, resource *model.Resource, start, end time.Time) (*model.ResourceAnalysis, error) {
	if resource.ResourceType != types.ResourceTypeDatabase {
		return nil, goerr.Wrap(ErrUnsupportedResource, "only databases can be analyzed",
			goerr.V("resource_id", resource.ID), goerr.V("resource_type", resource.ResourceType))
	}

	counter := newContributionCounter()
	var pages, created int
	var highlights []string

	for page, err := range s.svc.QueryUpdatedPages(ctx, resource.ExternalID, start, end) {
		if err != nil {
			return nil, goerr.Wrap(err, "failed to query updated pages", goerr.V("resource_id", resource.ID))
		}
		pages++

		if inRange(page.CreatedTime, start, end) {
			counter.add(page.CreatedBy.ID, page.CreatedBy.Name)
			created++
		}
		counter.add(page.LastEditedBy.ID, page.LastEditedBy.Name)

		if len(highlights) < maxNotionHighlights && page.Title != "" {
			highlights = append(highlights, page.Title)
		}
	}

	return &model.ResourceAnalysis{
		Summary:      fmt.Sprintf("%d pages updated, %d created", pages, created),
		Contributors: counter.contributors(),
		Highlights:   highlights,
	}, nil
}
