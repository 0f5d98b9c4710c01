package usecase_test

import (
	"context"
	"sync"

	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

// mockBackend is a hand-written implementation of interfaces.Backend.
// Unset functions return zero values; every call is recorded by method name.
type mockBackend struct {
	mu    sync.Mutex
	calls []string

	getIntegrationFn       func(ctx context.Context, id model.IntegrationID) (*model.Integration, error)
	listResourcesFn        func(ctx context.Context, id model.IntegrationID, resourceTypes ...types.ResourceType) ([]*model.Resource, error)
	syncResourcesFn        func(ctx context.Context, id model.IntegrationID, resourceTypes []types.ResourceType) error
	getSyncStatusFn        func(ctx context.Context, id model.IntegrationID) (*model.SyncStatus, error)
	listSelectedChannelsFn func(ctx context.Context, id model.IntegrationID) ([]model.ResourceID, error)
	selectChannelsFn       func(ctx context.Context, id model.IntegrationID, channelIDs []model.ResourceID, installBot bool) error
	deselectChannelsFn     func(ctx context.Context, id model.IntegrationID, channelIDs []model.ResourceID) error
	createTeamReportFn     func(ctx context.Context, req model.TeamReportRequest) (*model.TeamReport, error)
	generateTeamReportFn   func(ctx context.Context, teamID types.TeamID, reportID model.ReportID) error
	getTeamReportFn        func(ctx context.Context, teamID types.TeamID, reportID model.ReportID) (*model.TeamReport, error)
}

func (m *mockBackend) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.calls...)
}

func (m *mockBackend) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (m *mockBackend) GetIntegration(ctx context.Context, id model.IntegrationID) (*model.Integration, error) {
	m.record("GetIntegration")
	if m.getIntegrationFn != nil {
		return m.getIntegrationFn(ctx, id)
	}
	return &model.Integration{ID: id}, nil
}

func (m *mockBackend) ListResources(ctx context.Context, id model.IntegrationID, resourceTypes ...types.ResourceType) ([]*model.Resource, error) {
	m.record("ListResources")
	if m.listResourcesFn != nil {
		return m.listResourcesFn(ctx, id, resourceTypes...)
	}
	return nil, nil
}

func (m *mockBackend) SyncResources(ctx context.Context, id model.IntegrationID, resourceTypes []types.ResourceType) error {
	m.record("SyncResources")
	if m.syncResourcesFn != nil {
		return m.syncResourcesFn(ctx, id, resourceTypes)
	}
	return nil
}

func (m *mockBackend) GetSyncStatus(ctx context.Context, id model.IntegrationID) (*model.SyncStatus, error) {
	m.record("GetSyncStatus")
	if m.getSyncStatusFn != nil {
		return m.getSyncStatusFn(ctx, id)
	}
	return &model.SyncStatus{}, nil
}

func (m *mockBackend) ListSelectedChannels(ctx context.Context, id model.IntegrationID) ([]model.ResourceID, error) {
	m.record("ListSelectedChannels")
	if m.listSelectedChannelsFn != nil {
		return m.listSelectedChannelsFn(ctx, id)
	}
	return nil, nil
}

func (m *mockBackend) SelectChannels(ctx context.Context, id model.IntegrationID, channelIDs []model.ResourceID, installBot bool) error {
	m.record("SelectChannels")
	if m.selectChannelsFn != nil {
		return m.selectChannelsFn(ctx, id, channelIDs, installBot)
	}
	return nil
}

func (m *mockBackend) DeselectChannels(ctx context.Context, id model.IntegrationID, channelIDs []model.ResourceID) error {
	m.record("DeselectChannels")
	if m.deselectChannelsFn != nil {
		return m.deselectChannelsFn(ctx, id, channelIDs)
	}
	return nil
}

func (m *mockBackend) CreateTeamReport(ctx context.Context, req model.TeamReportRequest) (*model.TeamReport, error) {
	m.record("CreateTeamReport")
	if m.createTeamReportFn != nil {
		return m.createTeamReportFn(ctx, req)
	}
	return &model.TeamReport{ID: "report-1", TeamID: req.TeamID, Title: req.Title}, nil
}

func (m *mockBackend) GenerateTeamReport(ctx context.Context, teamID types.TeamID, reportID model.ReportID) error {
	m.record("GenerateTeamReport")
	if m.generateTeamReportFn != nil {
		return m.generateTeamReportFn(ctx, teamID, reportID)
	}
	return nil
}

func (m *mockBackend) GetTeamReport(ctx context.Context, teamID types.TeamID, reportID model.ReportID) (*model.TeamReport, error) {
	m.record("GetTeamReport")
	if m.getTeamReportFn != nil {
		return m.getTeamReportFn(ctx, teamID, reportID)
	}
	return &model.TeamReport{ID: reportID, TeamID: teamID}, nil
}

// mockNotifier records notifications
type mockNotifier struct {
	mu            sync.Mutex
	notifications []model.Notification
}

func (m *mockNotifier) Notify(_ context.Context, n model.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
}

func (m *mockNotifier) All() []model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Notification{}, m.notifications...)
}

// userError mimics a backend error carrying a user facing detail
type userError struct {
	detail string
}

func (e *userError) Error() string       { return "api error: " + e.detail }
func (e *userError) UserMessage() string { return e.detail }

func channel(id string, selected *bool) *model.Resource {
	return &model.Resource{
		ID:                    model.ResourceID(id),
		IntegrationID:         "ws-1",
		ExternalID:            "C" + id,
		Name:                  "channel-" + id,
		ResourceType:          types.ResourceTypeChannel,
		IsSelectedForAnalysis: selected,
	}
}

type mockSyncer struct {
	mu    sync.Mutex
	calls [][]types.ResourceType

	tryStartFn func(ctx context.Context, integration *model.Integration, resourceTypes []types.ResourceType) (bool, error)
}

func (m *mockSyncer) TryStart(ctx context.Context, integration *model.Integration, resourceTypes []types.ResourceType) (bool, error) {
	m.mu.Lock()
	m.calls = append(m.calls, resourceTypes)
	m.mu.Unlock()
	if m.tryStartFn != nil {
		return m.tryStartFn(ctx, integration, resourceTypes)
	}
	return true, nil
}

type mockInstaller struct {
	installed []string
	failOn    string
}

func (m *mockInstaller) InstallBot(ctx context.Context, integration *model.Integration, resource *model.Resource) error {
	if resource.ExternalID == m.failOn {
		return &userError{detail: "channel_not_found"}
	}
	m.installed = append(m.installed, resource.ExternalID)
	return nil
}

type mockGenerator struct {
	started []model.ReportID
	running bool
}

func (m *mockGenerator) TryStart(ctx context.Context, report *model.TeamReport) (bool, error) {
	if m.running {
		return false, nil
	}
	m.started = append(m.started, report.ID)
	return true, nil
}
