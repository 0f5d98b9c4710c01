package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/domain/wire"
	"github.com/secmon-lab/contribview/pkg/service/backend"
)

type recorded struct {
	method string
	path   string
	query  string
	body   []byte
	auth   string
}

// newServer serves handler and records every request
func newServer(t *testing.T, handler http.HandlerFunc) (*backend.Client, *[]recorded) {
	t.Helper()
	var requests []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   body,
			auth:   r.Header.Get("Authorization"),
		})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := backend.New(srv.URL, backend.WithToken("secret-token"))
	gt.NoError(t, err).Required()
	return client, &requests
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_ListResources(t *testing.T) {
	client, requests := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, wire.ResourceList{Resources: []wire.Resource{
			{ID: "r1", IntegrationID: "slack-main", Name: "general", ResourceType: "channel", IsSelectedForAnalysis: model.Bool(true)},
			{ID: "r2", IntegrationID: "slack-main", Name: "random", ResourceType: "channel"},
		}})
	})

	resources, err := client.ListResources(context.Background(), "slack-main", types.ResourceTypeChannel, types.ResourceTypeUser)
	gt.NoError(t, err).Required()
	gt.Array(t, resources).Length(2)
	gt.Value(t, resources[0].Name).Equal("general")
	gt.Bool(t, *resources[0].IsSelectedForAnalysis).True()
	gt.Value(t, resources[1].IsSelectedForAnalysis).Nil()

	gt.Array(t, *requests).Length(1)
	req := (*requests)[0]
	gt.Value(t, req.method).Equal(http.MethodGet)
	gt.Value(t, req.path).Equal("/api/v1/integrations/slack-main/resources")
	gt.Value(t, req.query).Equal("types=channel%2Cuser")
	gt.Value(t, req.auth).Equal("Bearer secret-token")
}

func TestClient_SelectChannels(t *testing.T) {
	client, requests := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.SelectChannels(context.Background(), "slack-main", []model.ResourceID{"c1", "c2"}, true)
	gt.NoError(t, err).Required()

	req := (*requests)[0]
	gt.Value(t, req.method).Equal(http.MethodPost)
	gt.Value(t, req.path).Equal("/api/v1/integrations/slack-main/channels/select")

	var body wire.SelectRequest
	gt.NoError(t, json.Unmarshal(req.body, &body)).Required()
	gt.Array(t, body.ChannelIDs).Equal([]string{"c1", "c2"})
	gt.Bool(t, body.InstallBot).True()

	gt.NoError(t, client.DeselectChannels(context.Background(), "slack-main", []model.ResourceID{"c3"})).Required()
	gt.Value(t, (*requests)[1].path).Equal("/api/v1/integrations/slack-main/channels/deselect")
}

func TestClient_SyncStatus(t *testing.T) {
	synced := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	client, requests := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/integrations/slack-main/resources/sync":
			w.WriteHeader(http.StatusAccepted)
		default:
			writeJSON(w, http.StatusOK, wire.SyncStatus{Workspace: "slack-main", IsSyncing: true, ChannelCount: 4, LastChannelSync: &synced})
		}
	})
	ctx := context.Background()

	gt.NoError(t, client.SyncResources(ctx, "slack-main", []types.ResourceType{types.ResourceTypeChannel})).Required()
	var body wire.SyncRequest
	gt.NoError(t, json.Unmarshal((*requests)[0].body, &body)).Required()
	gt.Array(t, body.ResourceTypes).Equal([]string{"channel"})

	status, err := client.GetSyncStatus(ctx, "slack-main")
	gt.NoError(t, err).Required()
	gt.Bool(t, status.IsSyncing).True()
	gt.Number(t, status.ChannelCount).Equal(4)
	gt.Value(t, *status.LastChannelSync).Equal(synced)
	gt.Value(t, (*requests)[1].path).Equal("/api/v1/integrations/slack-main/sync-status")
}

func TestClient_Reports(t *testing.T) {
	client, requests := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/teams/platform/reports":
			writeJSON(w, http.StatusCreated, wire.TeamReport{
				ID: "rep-1", TeamID: "platform", ResourceIDs: []string{"r1"},
				Analyses: []wire.ResourceAnalysis{{ResourceID: "r1", Status: "PENDING"}},
			})
		case r.URL.Path == "/api/v1/teams/platform/reports/rep-1/generate":
			w.WriteHeader(http.StatusAccepted)
		default:
			writeJSON(w, http.StatusOK, wire.TeamReport{
				ID: "rep-1", TeamID: "platform", ResourceIDs: []string{"r1"},
				Analyses: []wire.ResourceAnalysis{{ResourceID: "r1", Status: "COMPLETED", Summary: "3 messages from 1 contributors"}},
			})
		}
	})
	ctx := context.Background()

	report, err := client.CreateTeamReport(ctx, model.TeamReportRequest{TeamID: "platform", ResourceIDs: []model.ResourceID{"r1"}})
	gt.NoError(t, err).Required()
	gt.Value(t, report.ID).Equal(model.ReportID("rep-1"))
	gt.Bool(t, report.IsRunning()).True()

	gt.NoError(t, client.GenerateTeamReport(ctx, "platform", report.ID)).Required()

	got, err := client.GetTeamReport(ctx, "platform", report.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Status()).Equal(types.AnalysisStatusCompleted)
	gt.Value(t, (*requests)[2].path).Equal("/api/v1/teams/platform/reports/rep-1")
}

func TestClient_APIError(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/integrations/slack-main/channels/select":
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "unknown channel ids: c9"})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	ctx := context.Background()

	err := client.SelectChannels(ctx, "slack-main", []model.ResourceID{"c9"}, false)
	gt.Value(t, err).NotNil()
	gt.Bool(t, backend.IsStatus(err, http.StatusBadRequest)).True()

	var apiErr *backend.APIError
	gt.Bool(t, errors.As(err, &apiErr)).True()
	gt.Value(t, apiErr.UserMessage()).Equal("unknown channel ids: c9")

	_, err = client.GetSyncStatus(ctx, "slack-main")
	gt.Bool(t, backend.IsStatus(err, http.StatusBadGateway)).True()
	gt.Bool(t, errors.As(err, &apiErr)).True()
	gt.Value(t, apiErr.Message).Equal("Bad Gateway")
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := backend.New("ftp://example.com")
	gt.Value(t, err).NotNil()
	_, err = backend.New("http://localhost:8080/")
	gt.NoError(t, err)
}
