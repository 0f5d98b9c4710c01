package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/domain/wire"
	"github.com/secmon-lab/contribview/pkg/utils/safe"
)

const maxBodySize = 1 << 20

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return goerr.Wrap(errInvalidBody, "failed to read request body", goerr.V("error", err.Error()))
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return goerr.Wrap(errInvalidBody, err.Error())
	}
	return nil
}

func integrationID(r *http.Request) model.IntegrationID {
	return model.IntegrationID(chi.URLParam(r, "integrationID"))
}

func teamID(r *http.Request) types.TeamID {
	return types.TeamID(chi.URLParam(r, "teamID"))
}

func (s *Server) listIntegrations(w http.ResponseWriter, r *http.Request) {
	integrations, err := s.integration.ListIntegrations(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	resp := struct {
		Integrations []wire.Integration `json:"integrations"`
	}{Integrations: make([]wire.Integration, len(integrations))}
	for i, integration := range integrations {
		resp.Integrations[i] = wire.FromIntegration(integration)
	}
	safe.WriteJSON(r.Context(), w, http.StatusOK, resp)
}

func (s *Server) getIntegration(w http.ResponseWriter, r *http.Request) {
	integration, err := s.integration.GetIntegration(r.Context(), integrationID(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	safe.WriteJSON(r.Context(), w, http.StatusOK, wire.FromIntegration(integration))
}

func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	var resourceTypes []types.ResourceType
	if raw := r.URL.Query().Get("types"); raw != "" {
		parsed, err := types.ParseResourceTypes(strings.Split(raw, ","))
		if err != nil {
			writeError(r.Context(), w, goerr.Wrap(errInvalidBody, err.Error()))
			return
		}
		resourceTypes = parsed
	}

	resources, err := s.integration.ListResources(r.Context(), integrationID(r), resourceTypes...)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	resp := wire.ResourceList{Resources: make([]wire.Resource, len(resources))}
	for i, res := range resources {
		resp.Resources[i] = wire.FromResource(res)
	}
	safe.WriteJSON(r.Context(), w, http.StatusOK, resp)
}

func (s *Server) syncResources(w http.ResponseWriter, r *http.Request) {
	var req wire.SyncRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	resourceTypes, err := types.ParseResourceTypes(req.ResourceTypes)
	if err != nil {
		writeError(r.Context(), w, goerr.Wrap(errInvalidBody, err.Error()))
		return
	}

	if err := s.integration.StartSync(r.Context(), integrationID(r), resourceTypes); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	safe.WriteJSON(r.Context(), w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	id := integrationID(r)
	status, err := s.integration.GetSyncStatus(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	safe.WriteJSON(r.Context(), w, http.StatusOK, wire.FromSyncStatus(id, status))
}

func (s *Server) listSelectedChannels(w http.ResponseWriter, r *http.Request) {
	ids, err := s.integration.ListSelectedChannels(r.Context(), integrationID(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	safe.WriteJSON(r.Context(), w, http.StatusOK, wire.ChannelIDs{ChannelIDs: wire.Strings(ids)})
}

func (s *Server) selectChannels(w http.ResponseWriter, r *http.Request) {
	var req wire.SelectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	id := integrationID(r)
	if err := s.integration.SelectChannels(r.Context(), id, wire.ResourceIDs(req.ChannelIDs), req.InstallBot); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	s.listSelectedChannels(w, r)
}

func (s *Server) deselectChannels(w http.ResponseWriter, r *http.Request) {
	var req wire.ChannelIDs
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if err := s.integration.DeselectChannels(r.Context(), integrationID(r), wire.ResourceIDs(req.ChannelIDs)); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	s.listSelectedChannels(w, r)
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.report.ListReports(r.Context(), teamID(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	resp := wire.TeamReportList{Reports: make([]wire.TeamReport, len(reports))}
	for i, report := range reports {
		resp.Reports[i] = wire.FromTeamReport(report)
	}
	safe.WriteJSON(r.Context(), w, http.StatusOK, resp)
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	var req wire.CreateReportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	report, err := s.report.CreateReport(r.Context(), req.Model(teamID(r)))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	safe.WriteJSON(r.Context(), w, http.StatusCreated, wire.FromTeamReport(report))
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.report.GetReport(r.Context(), teamID(r), model.ReportID(chi.URLParam(r, "reportID")))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	safe.WriteJSON(r.Context(), w, http.StatusOK, wire.FromTeamReport(report))
}

func (s *Server) generateReport(w http.ResponseWriter, r *http.Request) {
	if err := s.report.GenerateReport(r.Context(), teamID(r), model.ReportID(chi.URLParam(r, "reportID"))); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	safe.WriteJSON(r.Context(), w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
