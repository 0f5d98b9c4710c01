package interfaces

import (
	"context"

	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

// ReportRepository persists team reports
type ReportRepository interface {
	// Create stores a new report. ID, CreatedAt and UpdatedAt are assigned when empty.
	Create(ctx context.Context, report *model.TeamReport) (*model.TeamReport, error)

	// Get retrieves a report of a team
	Get(ctx context.Context, teamID types.TeamID, id model.ReportID) (*model.TeamReport, error)

	// List retrieves reports of a team, newest first
	List(ctx context.Context, teamID types.TeamID) ([]*model.TeamReport, error)

	// UpdateAnalysis replaces the analysis of one resource inside a report.
	// Concurrent updates of different resources of the same report must not overwrite each other.
	UpdateAnalysis(ctx context.Context, teamID types.TeamID, id model.ReportID, analysis model.ResourceAnalysis) error
}
