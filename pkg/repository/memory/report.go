package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

type reportRepository struct {
	mu      sync.RWMutex
	reports map[types.TeamID]map[model.ReportID]*model.TeamReport
}

func newReportRepository() *reportRepository {
	return &reportRepository{
		reports: make(map[types.TeamID]map[model.ReportID]*model.TeamReport),
	}
}

func (r *reportRepository) Create(ctx context.Context, report *model.TeamReport) (*model.TeamReport, error) {
	if err := report.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid report")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	created := report.Clone()
	if created.ID == "" {
		created.ID = model.NewReportID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	if created.UpdatedAt.IsZero() {
		created.UpdatedAt = now
	}

	team, ok := r.reports[created.TeamID]
	if !ok {
		team = make(map[model.ReportID]*model.TeamReport)
		r.reports[created.TeamID] = team
	}
	team[created.ID] = created
	return created.Clone(), nil
}

func (r *reportRepository) Get(ctx context.Context, teamID types.TeamID, id model.ReportID) (*model.TeamReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[teamID][id]
	if !ok {
		return nil, goerr.Wrap(model.ErrReportNotFound, "report not found",
			goerr.V("team_id", teamID), goerr.V("id", id))
	}
	return report.Clone(), nil
}

func (r *reportRepository) List(ctx context.Context, teamID types.TeamID) ([]*model.TeamReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.TeamReport, 0, len(r.reports[teamID]))
	for _, report := range r.reports[teamID] {
		result = append(result, report.Clone())
	}
	slices.SortFunc(result, func(a, b *model.TeamReport) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result, nil
}

func (r *reportRepository) UpdateAnalysis(ctx context.Context, teamID types.TeamID, id model.ReportID, analysis model.ResourceAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[teamID][id]
	if !ok {
		return goerr.Wrap(model.ErrReportNotFound, "report not found",
			goerr.V("team_id", teamID), goerr.V("id", id))
	}

	target, ok := report.Analysis(analysis.ResourceID)
	if !ok {
		return goerr.Wrap(model.ErrResourceNotFound, "resource is not part of the report",
			goerr.V("report_id", id), goerr.V("resource_id", analysis.ResourceID))
	}

	*target = analysis.Clone()
	report.UpdatedAt = time.Now().UTC()
	return nil
}
