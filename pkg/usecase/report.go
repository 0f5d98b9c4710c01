package usecase

import (
	"context"
	"slices"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
)

// DefaultReportPeriod is the analysis range used when a report request has no start date
const DefaultReportPeriod = 30 * 24 * time.Hour

// ReportGenerator analyzes the resources of a report in the background
type ReportGenerator interface {
	// TryStart returns false when the report is already being generated
	TryStart(ctx context.Context, report *model.TeamReport) (bool, error)
}

// ReportUseCase creates and generates cross-resource team reports
type ReportUseCase struct {
	repo      interfaces.Repository
	generator ReportGenerator
}

// NewReportUseCase creates a ReportUseCase. generator may be nil, in which case
// GenerateReport fails with ErrUnsupportedService.
func NewReportUseCase(repo interfaces.Repository, generator ReportGenerator) *ReportUseCase {
	return &ReportUseCase{
		repo:      repo,
		generator: generator,
	}
}

// CreateReport stores a report with one PENDING analysis per distinct resource
func (uc *ReportUseCase) CreateReport(ctx context.Context, req model.TeamReportRequest) (*model.TeamReport, error) {
	if err := req.TeamID.Validate(); err != nil {
		return nil, goerr.Wrap(ErrInvalidRequest, err.Error(), goerr.V(TeamIDKey, req.TeamID))
	}

	var ids []model.ResourceID
	for _, id := range req.ResourceIDs {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, goerr.Wrap(ErrEmptyReport, "at least one resource is required", goerr.V(TeamIDKey, req.TeamID))
	}

	resources, err := uc.repo.Resource().GetByIDs(ctx, ids)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get report resources", goerr.V(TeamIDKey, req.TeamID))
	}
	var unknown []model.ResourceID
	for _, id := range ids {
		if _, ok := resources[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return nil, goerr.Wrap(ErrUnknownResources, "unknown resource ids",
			goerr.V(TeamIDKey, req.TeamID), goerr.V(ResourceIDsKey, unknown))
	}

	end := req.EndDate
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := req.StartDate
	if start.IsZero() {
		start = end.Add(-DefaultReportPeriod)
	}

	title := req.Title
	if title == "" {
		title = "Team report " + start.Format(time.DateOnly) + " - " + end.Format(time.DateOnly)
	}

	report := &model.TeamReport{
		TeamID:      req.TeamID,
		Title:       title,
		ResourceIDs: ids,
		StartDate:   start,
		EndDate:     end,
		Analyses:    make([]model.ResourceAnalysis, 0, len(ids)),
	}
	for _, id := range ids {
		r := resources[id]
		report.Analyses = append(report.Analyses, model.ResourceAnalysis{
			ResourceID:   r.ID,
			ResourceName: r.Name,
			ResourceType: r.ResourceType,
			Status:       types.AnalysisStatusPending,
		})
	}

	if err := report.Validate(); err != nil {
		return nil, goerr.Wrap(ErrInvalidRequest, err.Error(), goerr.V(TeamIDKey, req.TeamID))
	}

	created, err := uc.repo.Report().Create(ctx, report)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create report", goerr.V(TeamIDKey, req.TeamID))
	}

	logging.From(ctx).Info("Team report created",
		"team_id", created.TeamID,
		"report_id", created.ID,
		"resources", len(created.ResourceIDs))
	return created, nil
}

// GenerateReport starts the background analysis of a report
func (uc *ReportUseCase) GenerateReport(ctx context.Context, teamID types.TeamID, id model.ReportID) error {
	report, err := uc.GetReport(ctx, teamID, id)
	if err != nil {
		return err
	}
	if uc.generator == nil {
		return goerr.Wrap(ErrUnsupportedService, "report generation is not configured", goerr.V(ReportIDKey, id))
	}

	started, err := uc.generator.TryStart(ctx, report)
	if err != nil {
		return goerr.Wrap(err, "failed to start report generation",
			goerr.V(TeamIDKey, teamID), goerr.V(ReportIDKey, id))
	}
	if !started {
		return goerr.Wrap(ErrGenerationRunning, "report is already being generated",
			goerr.V(TeamIDKey, teamID), goerr.V(ReportIDKey, id))
	}
	return nil
}

func (uc *ReportUseCase) GetReport(ctx context.Context, teamID types.TeamID, id model.ReportID) (*model.TeamReport, error) {
	report, err := uc.repo.Report().Get(ctx, teamID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get report", goerr.V(TeamIDKey, teamID), goerr.V(ReportIDKey, id))
	}
	return report, nil
}

func (uc *ReportUseCase) ListReports(ctx context.Context, teamID types.TeamID) ([]*model.TeamReport, error) {
	reports, err := uc.repo.Report().List(ctx, teamID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list reports", goerr.V(TeamIDKey, teamID))
	}
	return reports, nil
}
