package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/contribview/pkg/controller/http"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/domain/wire"
	"github.com/secmon-lab/contribview/pkg/repository/memory"
	"github.com/secmon-lab/contribview/pkg/service/backend"
	"github.com/secmon-lab/contribview/pkg/service/worker"
	"github.com/secmon-lab/contribview/pkg/usecase"
	"github.com/secmon-lab/contribview/pkg/utils/errutil"
)

const workspace model.IntegrationID = "slack-main"

// fakeSource serves a fixed channel list and counts one contribution per channel
type fakeSource struct {
	mu       sync.Mutex
	channels []string
	release  chan struct{}
	joined   []string
}

func (s *fakeSource) ResourceTypes() []types.ResourceType {
	return []types.ResourceType{types.ResourceTypeChannel}
}

func (s *fakeSource) FetchResources(ctx context.Context, integration *model.Integration, resourceType types.ResourceType) ([]*model.Resource, error) {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var resources []*model.Resource
	for _, name := range s.channels {
		resources = append(resources, &model.Resource{
			ID:            model.NewResourceID(integration.ID, resourceType, name),
			IntegrationID: integration.ID,
			ExternalID:    name,
			Name:          name,
			ResourceType:  resourceType,
		})
	}
	return resources, nil
}

func (s *fakeSource) Analyze(ctx context.Context, integration *model.Integration, resource *model.Resource, start, end time.Time) (*model.ResourceAnalysis, error) {
	return &model.ResourceAnalysis{
		Summary:      "1 messages from 1 contributors",
		Contributors: []model.Contributor{{ExternalID: "U1", Name: "alice", Contributions: 1}},
	}, nil
}

func (s *fakeSource) InstallBot(ctx context.Context, integration *model.Integration, resource *model.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined = append(s.joined, resource.ExternalID)
	return nil
}

type testEnv struct {
	server  *httptest.Server
	client  *backend.Client
	source  *fakeSource
	syncer  *worker.ResourceSyncWorker
	reports *worker.ReportAnalysisWorker
}

func newTestEnv(t *testing.T, opts ...httpctrl.Options) *testEnv {
	t.Helper()
	ctx := context.Background()

	repo := memory.New()
	_, err := repo.Integration().Put(ctx, &model.Integration{
		ID:          workspace,
		Name:        "Engineering",
		ServiceType: types.ServiceTypeSlack,
		TeamID:      "platform",
	})
	gt.NoError(t, err).Required()

	source := &fakeSource{channels: []string{"general", "random", "dev"}}
	sources := worker.Sources{types.ServiceTypeSlack: source}
	syncer := worker.NewResourceSyncWorker(repo, sources, 0)
	reports := worker.NewReportAnalysisWorker(repo, sources, 2)

	uc := usecase.New(repo,
		usecase.WithResourceSyncer(syncer),
		usecase.WithReportGenerator(reports),
		usecase.WithBotInstaller(types.ServiceTypeSlack, source),
	)

	srv := httptest.NewServer(httpctrl.New(uc.Integration, uc.Report, opts...))
	t.Cleanup(srv.Close)

	client, err := backend.New(srv.URL, backend.WithToken("token"))
	gt.NoError(t, err).Required()

	return &testEnv{server: srv, client: client, source: source, syncer: syncer, reports: reports}
}

// syncChannels runs a sync to completion
func (e *testEnv) syncChannels(t *testing.T) []*model.Resource {
	t.Helper()
	ctx := context.Background()
	gt.NoError(t, e.client.SyncResources(ctx, workspace, []types.ResourceType{types.ResourceTypeChannel})).Required()
	e.syncer.Wait()

	resources, err := e.client.ListResources(ctx, workspace, types.ResourceTypeChannel)
	gt.NoError(t, err).Required()
	return resources
}

func idsByName(resources []*model.Resource) map[string]model.ResourceID {
	ids := make(map[string]model.ResourceID)
	for _, r := range resources {
		ids[r.Name] = r.ID
	}
	return ids
}

func TestServer_SyncAndStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	integration, err := env.client.GetIntegration(ctx, workspace)
	gt.NoError(t, err).Required()
	gt.Value(t, integration.Name).Equal("Engineering")

	resources := env.syncChannels(t)
	gt.Array(t, resources).Length(3)
	gt.Value(t, resources[0].Name).Equal("dev")
	for _, r := range resources {
		gt.Value(t, r.IsSelectedForAnalysis).NotNil()
	}

	status, err := env.client.GetSyncStatus(ctx, workspace)
	gt.NoError(t, err).Required()
	gt.Bool(t, status.IsSyncing).False()
	gt.Number(t, status.ChannelCount).Equal(3)
	gt.Value(t, status.LastChannelSync).NotNil()
}

func TestServer_SyncConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.source.release = make(chan struct{})

	gt.NoError(t, env.client.SyncResources(ctx, workspace, nil)).Required()

	status, err := env.client.GetSyncStatus(ctx, workspace)
	gt.NoError(t, err).Required()
	gt.Bool(t, status.IsSyncing).True()

	err = env.client.SyncResources(ctx, workspace, nil)
	gt.Bool(t, backend.IsStatus(err, http.StatusConflict)).True()

	close(env.source.release)
	env.syncer.Wait()

	status, err = env.client.GetSyncStatus(ctx, workspace)
	gt.NoError(t, err).Required()
	gt.Bool(t, status.IsSyncing).False()
}

func TestServer_Selection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ids := idsByName(env.syncChannels(t))

	gt.NoError(t, env.client.SelectChannels(ctx, workspace, []model.ResourceID{ids["general"], ids["dev"]}, true)).Required()
	gt.Array(t, env.source.joined).Length(2)

	selected, err := env.client.ListSelectedChannels(ctx, workspace)
	gt.NoError(t, err).Required()
	gt.Array(t, selected).Length(2)

	gt.NoError(t, env.client.DeselectChannels(ctx, workspace, []model.ResourceID{ids["dev"]})).Required()
	selected, err = env.client.ListSelectedChannels(ctx, workspace)
	gt.NoError(t, err).Required()
	gt.Array(t, selected).Equal([]model.ResourceID{ids["general"]})

	// selection survives a resync
	resources := env.syncChannels(t)
	for _, r := range resources {
		gt.Value(t, *r.IsSelectedForAnalysis).Equal(r.Name == "general")
	}
}

func TestServer_SelectUnknownChannels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.syncChannels(t)

	err := env.client.SelectChannels(ctx, workspace, []model.ResourceID{"ghost-1"}, false)
	gt.Bool(t, backend.IsStatus(err, http.StatusBadRequest)).True()

	var apiErr *backend.APIError
	gt.Bool(t, errors.As(err, &apiErr)).True()
	gt.String(t, apiErr.Message).Contains("ghost-1")
}

func TestServer_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.GetSyncStatus(ctx, "missing")
	gt.Bool(t, backend.IsStatus(err, http.StatusNotFound)).True()

	_, err = env.client.GetTeamReport(ctx, "platform", "missing")
	gt.Bool(t, backend.IsStatus(err, http.StatusNotFound)).True()
}

func TestServer_Reports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ids := idsByName(env.syncChannels(t))

	report, err := env.client.CreateTeamReport(ctx, model.TeamReportRequest{
		TeamID:      "platform",
		Title:       "Weekly",
		ResourceIDs: []model.ResourceID{ids["general"], ids["random"]},
	})
	gt.NoError(t, err).Required()
	gt.Value(t, report.Status()).Equal(types.AnalysisStatusPending)

	gt.NoError(t, env.client.GenerateTeamReport(ctx, "platform", report.ID)).Required()
	env.reports.Wait()

	got, err := env.client.GetTeamReport(ctx, "platform", report.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Status()).Equal(types.AnalysisStatusCompleted)
	for _, a := range got.Analyses {
		gt.Value(t, a.Status).Equal(types.AnalysisStatusCompleted)
		gt.Array(t, a.Contributors).Length(1)
	}

	reports, err := env.client.ListTeamReports(ctx, "platform")
	gt.NoError(t, err).Required()
	gt.Array(t, reports).Length(1)

	_, err = env.client.CreateTeamReport(ctx, model.TeamReportRequest{TeamID: "platform"})
	gt.Bool(t, backend.IsStatus(err, http.StatusBadRequest)).True()
}

func TestServer_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.server.URL+"/api/v1/integrations/slack-main/channels/select",
		"application/json", bytes.NewBufferString("{not json"))
	gt.NoError(t, err).Required()
	defer resp.Body.Close()
	gt.Value(t, resp.StatusCode).Equal(http.StatusBadRequest)

	var body errutil.ErrorResponse
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&body)).Required()
	gt.Value(t, body.Detail).NotEqual("")

	resp2, err := http.Get(env.server.URL + "/api/v1/integrations/slack-main/resources?types=emoji")
	gt.NoError(t, err).Required()
	defer resp2.Body.Close()
	gt.Value(t, resp2.StatusCode).Equal(http.StatusBadRequest)
}

func TestServer_APIToken(t *testing.T) {
	env := newTestEnv(t, httpctrl.WithAPIToken("token"))
	ctx := context.Background()

	_, err := env.client.GetIntegration(ctx, workspace)
	gt.NoError(t, err)

	anonymous, err := backend.New(env.server.URL)
	gt.NoError(t, err).Required()
	_, err = anonymous.GetIntegration(ctx, workspace)
	gt.Bool(t, backend.IsStatus(err, http.StatusUnauthorized)).True()

	wrong, err := backend.New(env.server.URL, backend.WithToken("other"))
	gt.NoError(t, err).Required()
	_, err = wrong.GetIntegration(ctx, workspace)
	gt.Bool(t, backend.IsStatus(err, http.StatusUnauthorized)).True()

	resp, err := http.Get(env.server.URL + "/health")
	gt.NoError(t, err).Required()
	defer resp.Body.Close()
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
}

func TestSyncStatusWireFormat(t *testing.T) {
	env := newTestEnv(t)
	env.syncChannels(t)

	resp, err := http.Get(env.server.URL + "/api/v1/integrations/slack-main/sync-status")
	gt.NoError(t, err).Required()
	defer resp.Body.Close()

	var body wire.SyncStatus
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&body)).Required()
	gt.Value(t, body.Workspace).Equal("slack-main")
	gt.Number(t, body.ChannelCount).Equal(3)
}
