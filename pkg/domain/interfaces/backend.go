package interfaces

import (
	"context"

	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

// Backend is the client view of the contribution viewer REST API.
// All persistence is owned by the backend; callers only hold advisory copies.
type Backend interface {
	// GetIntegration retrieves an integration descriptor
	GetIntegration(ctx context.Context, id model.IntegrationID) (*model.Integration, error)

	// ListResources retrieves the resources of an integration, optionally filtered by type
	ListResources(ctx context.Context, id model.IntegrationID, resourceTypes ...types.ResourceType) ([]*model.Resource, error)

	// SyncResources starts an asynchronous resource sync job
	SyncResources(ctx context.Context, id model.IntegrationID, resourceTypes []types.ResourceType) error

	// GetSyncStatus returns the sync state of an integration
	GetSyncStatus(ctx context.Context, id model.IntegrationID) (*model.SyncStatus, error)

	// ListSelectedChannels returns the persisted selection for analysis
	ListSelectedChannels(ctx context.Context, id model.IntegrationID) ([]model.ResourceID, error)

	// SelectChannels marks channels as selected for analysis
	SelectChannels(ctx context.Context, id model.IntegrationID, channelIDs []model.ResourceID, installBot bool) error

	// DeselectChannels removes channels from the selection
	DeselectChannels(ctx context.Context, id model.IntegrationID, channelIDs []model.ResourceID) error

	// CreateTeamReport creates a cross-resource report with every analysis pending
	CreateTeamReport(ctx context.Context, req model.TeamReportRequest) (*model.TeamReport, error)

	// GenerateTeamReport starts asynchronous analysis of a report
	GenerateTeamReport(ctx context.Context, teamID types.TeamID, reportID model.ReportID) error

	// GetTeamReport retrieves a report with its per-resource analyses
	GetTeamReport(ctx context.Context, teamID types.TeamID, reportID model.ReportID) (*model.TeamReport, error)
}
