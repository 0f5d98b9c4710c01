package http

import (
	"context"

	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

// IntegrationUseCase is implemented by usecase.IntegrationUseCase
type IntegrationUseCase interface {
	GetIntegration(ctx context.Context, id model.IntegrationID) (*model.Integration, error)
	ListIntegrations(ctx context.Context) ([]*model.Integration, error)
	ListResources(ctx context.Context, id model.IntegrationID, resourceTypes ...types.ResourceType) ([]*model.Resource, error)
	ListSelectedChannels(ctx context.Context, id model.IntegrationID) ([]model.ResourceID, error)
	SelectChannels(ctx context.Context, id model.IntegrationID, channelIDs []model.ResourceID, installBot bool) error
	DeselectChannels(ctx context.Context, id model.IntegrationID, channelIDs []model.ResourceID) error
	StartSync(ctx context.Context, id model.IntegrationID, resourceTypes []types.ResourceType) error
	GetSyncStatus(ctx context.Context, id model.IntegrationID) (*model.SyncStatus, error)
	ResyncWorkspace(ctx context.Context, workspace string, resourceType types.ResourceType) ([]model.IntegrationID, error)
}

// ReportUseCase is implemented by usecase.ReportUseCase
type ReportUseCase interface {
	CreateReport(ctx context.Context, req model.TeamReportRequest) (*model.TeamReport, error)
	GenerateReport(ctx context.Context, teamID types.TeamID, id model.ReportID) error
	GetReport(ctx context.Context, teamID types.TeamID, id model.ReportID) (*model.TeamReport, error)
	ListReports(ctx context.Context, teamID types.TeamID) ([]*model.TeamReport, error)
}
