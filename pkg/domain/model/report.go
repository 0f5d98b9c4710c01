package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

// ErrReportNotFound is returned when a team report does not exist
var ErrReportNotFound = goerr.New("report not found")

// ReportID identifies a cross-resource team report
type ReportID string

// NewReportID generates a new UUID v4 ReportID
func NewReportID() ReportID {
	return ReportID(uuid.New().String())
}

func (id ReportID) String() string {
	return string(id)
}

// Contributor is a participant counted by an analysis
type Contributor struct {
	ExternalID    string
	Name          string
	Contributions int
}

// ResourceAnalysis is the per-resource sub-record of a team report
type ResourceAnalysis struct {
	ResourceID   ResourceID
	ResourceName string
	ResourceType types.ResourceType
	Status       types.AnalysisStatus
	Summary      string
	Contributors []Contributor
	Highlights   []string
	Error        string
	AnalyzedAt   *time.Time
}

// TeamReport aggregates analyses over multiple selected resources
type TeamReport struct {
	ID          ReportID
	TeamID      types.TeamID
	Title       string
	ResourceIDs []ResourceID
	StartDate   time.Time
	EndDate     time.Time
	Analyses    []ResourceAnalysis
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the report before creation
func (r *TeamReport) Validate() error {
	if err := r.TeamID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid team ID")
	}
	if len(r.ResourceIDs) == 0 {
		return goerr.New("report requires at least one resource", goerr.V("team_id", r.TeamID))
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return goerr.New("report end date is before start date",
			goerr.V("start", r.StartDate), goerr.V("end", r.EndDate))
	}
	return nil
}

// Progress returns the number of terminal analyses and the total
func (r *TeamReport) Progress() (done, total int) {
	for _, a := range r.Analyses {
		if a.Status.Normalize().IsTerminal() {
			done++
		}
	}
	return done, len(r.Analyses)
}

// IsRunning reports whether any analysis is still pending
func (r *TeamReport) IsRunning() bool {
	done, total := r.Progress()
	return done < total
}

// Status summarizes the analyses: PENDING while any is pending, FAILED when all failed,
// COMPLETED otherwise.
func (r *TeamReport) Status() types.AnalysisStatus {
	if r.IsRunning() {
		return types.AnalysisStatusPending
	}
	if len(r.Analyses) == 0 {
		return types.AnalysisStatusCompleted
	}
	for _, a := range r.Analyses {
		if a.Status != types.AnalysisStatusFailed {
			return types.AnalysisStatusCompleted
		}
	}
	return types.AnalysisStatusFailed
}

// Analysis returns the analysis for resourceID
func (r *TeamReport) Analysis(resourceID ResourceID) (*ResourceAnalysis, bool) {
	for i := range r.Analyses {
		if r.Analyses[i].ResourceID == resourceID {
			return &r.Analyses[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the report
func (r *TeamReport) Clone() *TeamReport {
	copied := *r
	copied.ResourceIDs = append([]ResourceID(nil), r.ResourceIDs...)
	copied.Analyses = make([]ResourceAnalysis, len(r.Analyses))
	for i, a := range r.Analyses {
		copied.Analyses[i] = a.Clone()
	}
	return &copied
}

// Clone returns a deep copy of the analysis
func (a ResourceAnalysis) Clone() ResourceAnalysis {
	a.Contributors = append([]Contributor(nil), a.Contributors...)
	a.Highlights = append([]string(nil), a.Highlights...)
	a.AnalyzedAt = cloneTime(a.AnalyzedAt)
	return a
}

// TeamReportRequest is the input for creating a team report
type TeamReportRequest struct {
	TeamID      types.TeamID
	Title       string
	ResourceIDs []ResourceID
	StartDate   time.Time
	EndDate     time.Time
}
