// Package wire defines the JSON payloads of the REST API shared by the server
// controller and the backend client.
package wire

import (
	"time"

	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

type Integration struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ServiceType string         `json:"service_type"`
	Status      string         `json:"status"`
	TeamID      string         `json:"team_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func FromIntegration(i *model.Integration) Integration {
	return Integration{
		ID:          i.ID.String(),
		Name:        i.Name,
		ServiceType: i.ServiceType.String(),
		Status:      i.Status.Normalize().String(),
		TeamID:      i.TeamID.String(),
		Metadata:    i.Metadata,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

func (i Integration) Model() *model.Integration {
	return &model.Integration{
		ID:          model.IntegrationID(i.ID),
		Name:        i.Name,
		ServiceType: types.ServiceType(i.ServiceType),
		Status:      types.IntegrationStatus(i.Status),
		TeamID:      types.TeamID(i.TeamID),
		Metadata:    i.Metadata,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

type Resource struct {
	ID                    string         `json:"id"`
	IntegrationID         string         `json:"integration_id"`
	ExternalID            string         `json:"external_id"`
	Name                  string         `json:"name"`
	ResourceType          string         `json:"resource_type"`
	Metadata              map[string]any `json:"metadata,omitempty"`
	LastSyncedAt          *time.Time     `json:"last_synced_at,omitempty"`
	IsSelectedForAnalysis *bool          `json:"is_selected_for_analysis,omitempty"`
}

type ResourceList struct {
	Resources []Resource `json:"resources"`
}

func FromResource(r *model.Resource) Resource {
	return Resource{
		ID:                    r.ID.String(),
		IntegrationID:         r.IntegrationID.String(),
		ExternalID:            r.ExternalID,
		Name:                  r.Name,
		ResourceType:          r.ResourceType.String(),
		Metadata:              r.Metadata,
		LastSyncedAt:          r.LastSyncedAt,
		IsSelectedForAnalysis: r.IsSelectedForAnalysis,
	}
}

func (r Resource) Model() *model.Resource {
	return &model.Resource{
		ID:                    model.ResourceID(r.ID),
		IntegrationID:         model.IntegrationID(r.IntegrationID),
		ExternalID:            r.ExternalID,
		Name:                  r.Name,
		ResourceType:          types.ResourceType(r.ResourceType),
		Metadata:              r.Metadata,
		LastSyncedAt:          r.LastSyncedAt,
		IsSelectedForAnalysis: r.IsSelectedForAnalysis,
	}
}

type SyncRequest struct {
	ResourceTypes []string `json:"resource_types,omitempty"`
}

// SyncStatus reports the sync state. Workspace carries the integration ID.
type SyncStatus struct {
	Workspace       string     `json:"workspace"`
	IsSyncing       bool       `json:"is_syncing"`
	ChannelCount    int        `json:"channel_count"`
	LastChannelSync *time.Time `json:"last_channel_sync"`
	LastUserSync    *time.Time `json:"last_user_sync"`
	LastAttempt     *time.Time `json:"last_attempt,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

func FromSyncStatus(id model.IntegrationID, s *model.SyncStatus) SyncStatus {
	return SyncStatus{
		Workspace:       id.String(),
		IsSyncing:       s.IsSyncing,
		ChannelCount:    s.ChannelCount,
		LastChannelSync: s.LastChannelSync,
		LastUserSync:    s.LastUserSync,
		LastAttempt:     s.LastAttempt,
		LastError:       s.LastError,
	}
}

func (s SyncStatus) Model() *model.SyncStatus {
	return &model.SyncStatus{
		IsSyncing:       s.IsSyncing,
		ChannelCount:    s.ChannelCount,
		LastChannelSync: s.LastChannelSync,
		LastUserSync:    s.LastUserSync,
		LastAttempt:     s.LastAttempt,
		LastError:       s.LastError,
	}
}

type ChannelIDs struct {
	ChannelIDs []string `json:"channel_ids"`
}

type SelectRequest struct {
	ChannelIDs []string `json:"channel_ids"`
	InstallBot bool     `json:"install_bot"`
}

type Contributor struct {
	ExternalID    string `json:"external_id"`
	Name          string `json:"name"`
	Contributions int    `json:"contributions"`
}

type ResourceAnalysis struct {
	ResourceID   string        `json:"resource_id"`
	ResourceName string        `json:"resource_name"`
	ResourceType string        `json:"resource_type"`
	Status       string        `json:"status"`
	Summary      string        `json:"summary,omitempty"`
	Contributors []Contributor `json:"contributors,omitempty"`
	Highlights   []string      `json:"highlights,omitempty"`
	Error        string        `json:"error,omitempty"`
	AnalyzedAt   *time.Time    `json:"analyzed_at,omitempty"`
}

type TeamReport struct {
	ID          string             `json:"id"`
	TeamID      string             `json:"team_id"`
	Title       string             `json:"title"`
	ResourceIDs []string           `json:"resource_ids"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	Status      string             `json:"status"`
	Analyses    []ResourceAnalysis `json:"analyses"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type TeamReportList struct {
	Reports []TeamReport `json:"reports"`
}

func FromTeamReport(r *model.TeamReport) TeamReport {
	resp := TeamReport{
		ID:          r.ID.String(),
		TeamID:      r.TeamID.String(),
		Title:       r.Title,
		ResourceIDs: make([]string, len(r.ResourceIDs)),
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Status:      r.Status().String(),
		Analyses:    make([]ResourceAnalysis, len(r.Analyses)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for i, id := range r.ResourceIDs {
		resp.ResourceIDs[i] = id.String()
	}
	for i, a := range r.Analyses {
		analysis := ResourceAnalysis{
			ResourceID:   a.ResourceID.String(),
			ResourceName: a.ResourceName,
			ResourceType: a.ResourceType.String(),
			Status:       a.Status.Normalize().String(),
			Summary:      a.Summary,
			Highlights:   a.Highlights,
			Error:        a.Error,
			AnalyzedAt:   a.AnalyzedAt,
		}
		for _, c := range a.Contributors {
			analysis.Contributors = append(analysis.Contributors, Contributor(c))
		}
		resp.Analyses[i] = analysis
	}
	return resp
}

func (r TeamReport) Model() *model.TeamReport {
	report := &model.TeamReport{
		ID:          model.ReportID(r.ID),
		TeamID:      types.TeamID(r.TeamID),
		Title:       r.Title,
		ResourceIDs: make([]model.ResourceID, len(r.ResourceIDs)),
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Analyses:    make([]model.ResourceAnalysis, len(r.Analyses)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for i, id := range r.ResourceIDs {
		report.ResourceIDs[i] = model.ResourceID(id)
	}
	for i, a := range r.Analyses {
		analysis := model.ResourceAnalysis{
			ResourceID:   model.ResourceID(a.ResourceID),
			ResourceName: a.ResourceName,
			ResourceType: types.ResourceType(a.ResourceType),
			Status:       types.AnalysisStatus(a.Status).Normalize(),
			Summary:      a.Summary,
			Highlights:   a.Highlights,
			Error:        a.Error,
			AnalyzedAt:   a.AnalyzedAt,
		}
		for _, c := range a.Contributors {
			analysis.Contributors = append(analysis.Contributors, model.Contributor(c))
		}
		report.Analyses[i] = analysis
	}
	return report
}

// CreateReportRequest omits dates that are not set
type CreateReportRequest struct {
	Title       string     `json:"title,omitempty"`
	ResourceIDs []string   `json:"resource_ids"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

func FromReportRequest(req model.TeamReportRequest) CreateReportRequest {
	body := CreateReportRequest{
		Title:       req.Title,
		ResourceIDs: make([]string, len(req.ResourceIDs)),
	}
	for i, id := range req.ResourceIDs {
		body.ResourceIDs[i] = id.String()
	}
	if !req.StartDate.IsZero() {
		body.StartDate = &req.StartDate
	}
	if !req.EndDate.IsZero() {
		body.EndDate = &req.EndDate
	}
	return body
}

func (r CreateReportRequest) Model(teamID types.TeamID) model.TeamReportRequest {
	req := model.TeamReportRequest{
		TeamID:      teamID,
		Title:       r.Title,
		ResourceIDs: make([]model.ResourceID, len(r.ResourceIDs)),
	}
	for i, id := range r.ResourceIDs {
		req.ResourceIDs[i] = model.ResourceID(id)
	}
	if r.StartDate != nil {
		req.StartDate = *r.StartDate
	}
	if r.EndDate != nil {
		req.EndDate = *r.EndDate
	}
	return req
}

// ResourceIDs converts raw IDs of a request body
func ResourceIDs(ids []string) []model.ResourceID {
	result := make([]model.ResourceID, len(ids))
	for i, id := range ids {
		result[i] = model.ResourceID(id)
	}
	return result
}

// Strings converts resource IDs for a request body
func Strings(ids []model.ResourceID) []string {
	result := make([]string, len(ids))
	for i, id := range ids {
		result[i] = id.String()
	}
	return result
}
