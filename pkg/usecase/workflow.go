package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

// SyncWorkflow starts a resource sync and watches it until the backend reports completion
type SyncWorkflow struct {
	backend  interfaces.Backend
	notifier interfaces.Notifier
	pollOpts []PollerOption
}

// NewSyncWorkflow creates a SyncWorkflow. pollOpts are applied to every poller it starts.
func NewSyncWorkflow(backend interfaces.Backend, notifier interfaces.Notifier, pollOpts ...PollerOption) *SyncWorkflow {
	return &SyncWorkflow{
		backend:  backend,
		notifier: notifier,
		pollOpts: pollOpts,
	}
}

// Start requests a sync of resourceTypes and returns the started poller.
// When the sync finishes the resources are fetched once and handed to onRefresh.
func (w *SyncWorkflow) Start(ctx context.Context, integrationID model.IntegrationID, resourceTypes []types.ResourceType, onRefresh func([]*model.Resource)) (*JobPoller, error) {
	if err := w.Request(ctx, integrationID, resourceTypes); err != nil {
		return nil, err
	}
	return w.Watch(ctx, integrationID, onRefresh), nil
}

// Request asks the backend to sync resourceTypes without watching it
func (w *SyncWorkflow) Request(ctx context.Context, integrationID model.IntegrationID, resourceTypes []types.ResourceType) error {
	if err := w.backend.SyncResources(ctx, integrationID, resourceTypes); err != nil {
		notify(ctx, w.notifier, model.Notification{
			Level:   model.NotificationFailure,
			Title:   "Failed to start sync",
			Message: userMessage(err, "Failed to start resource sync"),
		})
		return goerr.Wrap(err, "failed to start sync", goerr.V(IntegrationIDKey, integrationID))
	}

	notify(ctx, w.notifier, model.Notification{
		Level:   model.NotificationInfo,
		Title:   "Sync started",
		Message: fmt.Sprintf("Syncing %s", joinTypes(resourceTypes)),
	})
	return nil
}

// Watch polls a sync that is already running, for example one found on load
func (w *SyncWorkflow) Watch(ctx context.Context, integrationID model.IntegrationID, onRefresh func([]*model.Resource)) *JobPoller {
	refresh := func(ctx context.Context) error {
		resources, err := w.backend.ListResources(ctx, integrationID)
		if err != nil {
			return goerr.Wrap(err, "failed to refresh resources", goerr.V(IntegrationIDKey, integrationID))
		}
		if onRefresh != nil {
			onRefresh(resources)
		}
		return nil
	}

	opts := append([]PollerOption{
		WithPollNotifier(w.notifier),
		WithCompletionTitle("Sync completed"),
	}, w.pollOpts...)
	opts = append(opts, WithOnComplete(refresh))

	poller := NewSyncStatusPoller(w.backend, integrationID, opts...)
	poller.Start(ctx)
	return poller
}

func joinTypes(resourceTypes []types.ResourceType) string {
	if len(resourceTypes) == 0 {
		return "all resources"
	}
	names := make([]string, len(resourceTypes))
	for i, rt := range resourceTypes {
		names[i] = rt.String() + "s"
	}
	return strings.Join(names, ", ")
}

// ReportWorkflow creates team reports and follows their generation
type ReportWorkflow struct {
	backend  interfaces.Backend
	notifier interfaces.Notifier
	pollOpts []PollerOption
}

// NewReportWorkflow creates a ReportWorkflow
func NewReportWorkflow(backend interfaces.Backend, notifier interfaces.Notifier, pollOpts ...PollerOption) *ReportWorkflow {
	return &ReportWorkflow{
		backend:  backend,
		notifier: notifier,
		pollOpts: pollOpts,
	}
}

// Create creates a report whose analyses are all pending
func (w *ReportWorkflow) Create(ctx context.Context, req model.TeamReportRequest) (*model.TeamReport, error) {
	report, err := w.backend.CreateTeamReport(ctx, req)
	if err != nil {
		notify(ctx, w.notifier, model.Notification{
			Level:   model.NotificationFailure,
			Title:   "Failed to create report",
			Message: userMessage(err, "Failed to create team report"),
		})
		return nil, goerr.Wrap(err, "failed to create team report", goerr.V(TeamIDKey, req.TeamID))
	}

	notify(ctx, w.notifier, model.Notification{
		Level:   model.NotificationSuccess,
		Title:   "Report created",
		Message: fmt.Sprintf("%s (%d resources)", report.Title, len(report.ResourceIDs)),
	})
	return report, nil
}

// Generate starts the analysis of a report and watches it
func (w *ReportWorkflow) Generate(ctx context.Context, teamID types.TeamID, reportID model.ReportID, onRefresh func(*model.TeamReport)) (*JobPoller, error) {
	if err := w.backend.GenerateTeamReport(ctx, teamID, reportID); err != nil {
		notify(ctx, w.notifier, model.Notification{
			Level:   model.NotificationFailure,
			Title:   "Failed to generate report",
			Message: userMessage(err, "Failed to start report generation"),
		})
		return nil, goerr.Wrap(err, "failed to generate team report",
			goerr.V(TeamIDKey, teamID),
			goerr.V(ReportIDKey, reportID))
	}

	notify(ctx, w.notifier, model.Notification{
		Level:   model.NotificationInfo,
		Title:   "Report generation started",
		Message: reportID.String(),
	})

	return w.Watch(ctx, teamID, reportID, onRefresh), nil
}

// Watch polls a report until no analysis is pending, then fetches it once for onRefresh
func (w *ReportWorkflow) Watch(ctx context.Context, teamID types.TeamID, reportID model.ReportID, onRefresh func(*model.TeamReport)) *JobPoller {
	refresh := func(ctx context.Context) error {
		report, err := w.backend.GetTeamReport(ctx, teamID, reportID)
		if err != nil {
			return goerr.Wrap(err, "failed to refresh team report",
				goerr.V(TeamIDKey, teamID),
				goerr.V(ReportIDKey, reportID))
		}
		if onRefresh != nil {
			onRefresh(report)
		}
		return nil
	}

	opts := append([]PollerOption{
		WithPollNotifier(w.notifier),
		WithCompletionTitle("Report generated"),
	}, w.pollOpts...)
	opts = append(opts, WithOnComplete(refresh))

	poller := NewReportPoller(w.backend, teamID, reportID, opts...)
	poller.Start(ctx)
	return poller
}
