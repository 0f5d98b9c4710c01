package worker

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/utils/async"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultAnalysisConcurrency bounds the number of resources analyzed at once
const DefaultAnalysisConcurrency = 4

// ReportAnalysisWorker computes the per-resource analyses of team reports
type ReportAnalysisWorker struct {
	repo        interfaces.Repository
	sources     Sources
	concurrency int

	mu      sync.Mutex
	running map[model.ReportID]bool
	wg      sync.WaitGroup
}

// NewReportAnalysisWorker creates a worker. concurrency <= 0 uses DefaultAnalysisConcurrency.
func NewReportAnalysisWorker(repo interfaces.Repository, sources Sources, concurrency int) *ReportAnalysisWorker {
	if concurrency <= 0 {
		concurrency = DefaultAnalysisConcurrency
	}
	return &ReportAnalysisWorker{
		repo:        repo,
		sources:     sources,
		concurrency: concurrency,
		running:     make(map[model.ReportID]bool),
	}
}

// IsGenerating reports whether the report is being analyzed
func (w *ReportAnalysisWorker) IsGenerating(id model.ReportID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running[id]
}

// Wait blocks until every generation started so far has finished
func (w *ReportAnalysisWorker) Wait() {
	w.wg.Wait()
}

// TryStart resets every analysis of the report to PENDING and generates them in the background.
// It returns false without starting when the report is already being generated.
func (w *ReportAnalysisWorker) TryStart(ctx context.Context, report *model.TeamReport) (bool, error) {
	w.mu.Lock()
	if w.running[report.ID] {
		w.mu.Unlock()
		return false, nil
	}
	w.running[report.ID] = true
	w.mu.Unlock()

	release := func() {
		w.mu.Lock()
		delete(w.running, report.ID)
		w.mu.Unlock()
	}

	for _, a := range report.Analyses {
		if a.Status == types.AnalysisStatusPending {
			continue
		}
		pending := model.ResourceAnalysis{
			ResourceID:   a.ResourceID,
			ResourceName: a.ResourceName,
			ResourceType: a.ResourceType,
			Status:       types.AnalysisStatusPending,
		}
		if err := w.repo.Report().UpdateAnalysis(ctx, report.TeamID, report.ID, pending); err != nil {
			release()
			return false, goerr.Wrap(err, "failed to reset analysis",
				goerr.V("report_id", report.ID), goerr.V("resource_id", a.ResourceID))
		}
	}

	w.wg.Add(1)
	async.Dispatch(ctx, func(ctx context.Context) error {
		defer w.wg.Done()
		defer release()
		return w.Generate(ctx, report)
	})
	return true, nil
}

// Generate analyzes every resource of the report with bounded concurrency.
// Each analysis ends COMPLETED or FAILED on its own; only storage failures are returned.
func (w *ReportAnalysisWorker) Generate(ctx context.Context, report *model.TeamReport) error {
	startTime := time.Now()
	logger := logging.From(ctx).With("report_id", report.ID, "team_id", report.TeamID)
	logger.Info("Starting report generation", "resources", len(report.Analyses))

	ids := make([]model.ResourceID, 0, len(report.Analyses))
	for _, a := range report.Analyses {
		ids = append(ids, a.ResourceID)
	}
	resources, err := w.repo.Resource().GetByIDs(ctx, ids)
	if err != nil {
		err = goerr.Wrap(err, "failed to get report resources", goerr.V("report_id", report.ID))
		w.failRemaining(ctx, report, nil, err)
		return err
	}

	integrations := make(map[model.IntegrationID]*model.Integration)
	for _, r := range resources {
		if _, ok := integrations[r.IntegrationID]; ok {
			continue
		}
		integration, err := w.repo.Integration().Get(ctx, r.IntegrationID)
		if err != nil {
			// analyses of this integration fail individually below
			logger.Warn("Integration of report resource is unavailable",
				"integration_id", r.IntegrationID, "error", err.Error())
			integrations[r.IntegrationID] = nil
			continue
		}
		integrations[r.IntegrationID] = integration
	}

	end := report.EndDate
	if end.IsZero() {
		end = startTime.UTC()
	}

	var writtenMu sync.Mutex
	written := make(map[model.ResourceID]bool, len(report.Analyses))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(w.concurrency)

	for _, a := range report.Analyses {
		eg.Go(func() error {
			result := w.analyze(egCtx, resources[a.ResourceID], integrations, a, report.StartDate, end)
			if err := w.repo.Report().UpdateAnalysis(egCtx, report.TeamID, report.ID, result); err != nil {
				return goerr.Wrap(err, "failed to save analysis",
					goerr.V("report_id", report.ID), goerr.V("resource_id", a.ResourceID))
			}
			writtenMu.Lock()
			written[a.ResourceID] = true
			writtenMu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		w.failRemaining(ctx, report, written, err)
		return err
	}

	logger.Info("Report generation completed", "duration", time.Since(startTime).String())
	return nil
}

// failRemaining marks every analysis not in written as FAILED so the report stops running.
// Write errors are logged only.
func (w *ReportAnalysisWorker) failRemaining(ctx context.Context, report *model.TeamReport, written map[model.ResourceID]bool, cause error) {
	ctx = context.WithoutCancel(ctx)
	now := time.Now().UTC()

	for _, a := range report.Analyses {
		if written[a.ResourceID] {
			continue
		}
		failed := model.ResourceAnalysis{
			ResourceID:   a.ResourceID,
			ResourceName: a.ResourceName,
			ResourceType: a.ResourceType,
			Status:       types.AnalysisStatusFailed,
			Error:        cause.Error(),
			AnalyzedAt:   &now,
		}
		if err := w.repo.Report().UpdateAnalysis(ctx, report.TeamID, report.ID, failed); err != nil {
			logging.From(ctx).Error("Failed to mark analysis as failed",
				"report_id", report.ID, "resource_id", a.ResourceID, "error", err.Error())
		}
	}
}

func (w *ReportAnalysisWorker) analyze(ctx context.Context, resource *model.Resource, integrations map[model.IntegrationID]*model.Integration, pending model.ResourceAnalysis, start, end time.Time) model.ResourceAnalysis {
	now := time.Now().UTC()
	failed := func(err error) model.ResourceAnalysis {
		logging.From(ctx).Warn("Resource analysis failed",
			"resource_id", pending.ResourceID, "error", err.Error())
		return model.ResourceAnalysis{
			ResourceID:   pending.ResourceID,
			ResourceName: pending.ResourceName,
			ResourceType: pending.ResourceType,
			Status:       types.AnalysisStatusFailed,
			Error:        err.Error(),
			AnalyzedAt:   &now,
		}
	}

	if resource == nil {
		return failed(goerr.Wrap(model.ErrResourceNotFound, "resource no longer exists",
			goerr.V("resource_id", pending.ResourceID)))
	}
	integration := integrations[resource.IntegrationID]
	if integration == nil {
		return failed(goerr.Wrap(model.ErrIntegrationNotFound, "integration no longer exists",
			goerr.V("integration_id", resource.IntegrationID)))
	}

	src, err := w.sources.Get(integration.ServiceType)
	if err != nil {
		return failed(err)
	}

	analysis, err := src.Analyze(ctx, integration, resource, start, end)
	if err != nil {
		return failed(err)
	}

	analysis.ResourceID = resource.ID
	analysis.ResourceName = resource.Name
	analysis.ResourceType = resource.ResourceType
	analysis.Status = types.AnalysisStatusCompleted
	analysis.Error = ""
	analysis.AnalyzedAt = &now
	return *analysis
}
