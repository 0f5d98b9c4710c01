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

// ResourceSyncWorker synchronizes resources of integrations from their third-party service
// into the repository.
//
// Architecture assumptions:
// - Single server instance (the per-integration lock is in memory)
// - For horizontal scaling, the IsSyncing flag must become a distributed lock
type ResourceSyncWorker struct {
	repo     interfaces.Repository
	sources  Sources
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}

	mu      sync.Mutex
	running map[model.IntegrationID]bool
	wg      sync.WaitGroup
}

// NewResourceSyncWorker creates a new sync worker. interval <= 0 disables periodic refresh;
// jobs then only run through TryStart.
func NewResourceSyncWorker(repo interfaces.Repository, sources Sources, interval time.Duration) *ResourceSyncWorker {
	return &ResourceSyncWorker{
		repo:     repo,
		sources:  sources,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		running:  make(map[model.IntegrationID]bool),
	}
}

// Start begins the periodic refresh loop in a background goroutine.
// It does not block server startup.
func (w *ResourceSyncWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		close(w.doneCh)
		return nil
	}

	logging.Default().Info("Resource sync worker starting", "interval", w.interval.String())
	go w.run(ctx)
	return nil
}

// Stop signals the worker to stop and waits for the loop and in-flight jobs
func (w *ResourceSyncWorker) Stop() {
	logging.Default().Info("Resource sync worker stopping")
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	<-w.doneCh
	w.wg.Wait()
	logging.Default().Info("Resource sync worker stopped")
}

// Wait blocks until every job started so far has finished
func (w *ResourceSyncWorker) Wait() {
	w.wg.Wait()
}

// IsSyncing reports whether a job for the integration is in flight
func (w *ResourceSyncWorker) IsSyncing(id model.IntegrationID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running[id]
}

func (w *ResourceSyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.refreshAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.refreshAll(ctx)

		case <-w.stopCh:
			logging.Default().Info("Resource sync worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("Resource sync worker context cancelled")
			return
		}
	}
}

// refreshAll starts a sync of every active integration that has a source
func (w *ResourceSyncWorker) refreshAll(ctx context.Context) {
	integrations, err := w.repo.Integration().List(ctx)
	if err != nil {
		logging.Default().Error("Failed to list integrations for periodic sync (will retry next interval)",
			"error", err.Error())
		return
	}

	for _, integration := range integrations {
		if integration.Status.Normalize() != types.IntegrationStatusActive {
			continue
		}
		if _, err := w.sources.Get(integration.ServiceType); err != nil {
			continue
		}
		if _, err := w.TryStart(ctx, integration, nil); err != nil {
			logging.Default().Error("Failed to start periodic sync",
				"integration_id", integration.ID, "error", err.Error())
		}
	}
}

// TryStart claims the integration and runs a sync job in the background.
// It returns false without starting when a job for the integration is already running.
// An empty resourceTypes syncs every type the source supports.
func (w *ResourceSyncWorker) TryStart(ctx context.Context, integration *model.Integration, resourceTypes []types.ResourceType) (bool, error) {
	src, err := w.sources.Get(integration.ServiceType)
	if err != nil {
		return false, err
	}

	resourceTypes, err = resolveResourceTypes(src, resourceTypes)
	if err != nil {
		return false, goerr.Wrap(err, "invalid resource types", goerr.V("integration_id", integration.ID))
	}

	w.mu.Lock()
	if w.running[integration.ID] {
		w.mu.Unlock()
		return false, nil
	}
	w.running[integration.ID] = true
	w.mu.Unlock()

	release := func() {
		w.mu.Lock()
		delete(w.running, integration.ID)
		w.mu.Unlock()
	}

	startTime := time.Now().UTC()
	status, err := w.repo.SyncStatus().Get(ctx, integration.ID)
	if err != nil {
		release()
		return false, goerr.Wrap(err, "failed to get sync status", goerr.V("integration_id", integration.ID))
	}
	status.IsSyncing = true
	status.LastAttempt = &startTime
	if err := w.repo.SyncStatus().Save(ctx, integration.ID, status); err != nil {
		release()
		return false, goerr.Wrap(err, "failed to save sync attempt", goerr.V("integration_id", integration.ID))
	}

	w.wg.Add(1)
	async.Dispatch(ctx, func(ctx context.Context) error {
		defer w.wg.Done()
		defer release()
		return w.Sync(ctx, integration, src, resourceTypes)
	})

	return true, nil
}

func resolveResourceTypes(src Source, requested []types.ResourceType) ([]types.ResourceType, error) {
	if len(requested) == 0 {
		return src.ResourceTypes(), nil
	}
	for _, rt := range requested {
		if !supports(src, rt) {
			return nil, goerr.Wrap(ErrUnsupportedResource, "resource type is not supported by the service",
				goerr.V("resource_type", rt))
		}
	}
	return requested, nil
}

// Sync performs one sync job (Replace strategy per resource type). The sync status always
// ends with IsSyncing=false; LastError keeps the failure message.
func (w *ResourceSyncWorker) Sync(ctx context.Context, integration *model.Integration, src Source, resourceTypes []types.ResourceType) error {
	startTime := time.Now().UTC()
	logger := logging.From(ctx).With("integration_id", integration.ID)
	logger.Info("Starting resource sync", "types", resourceTypes)

	counts := make([]int, len(resourceTypes))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, rt := range resourceTypes {
		eg.Go(func() error {
			n, err := w.syncType(egCtx, integration, src, rt, startTime)
			counts[i] = n
			return err
		})
	}
	syncErr := eg.Wait()

	if err := w.finish(ctx, integration.ID, func(status *model.SyncStatus) {
		if syncErr != nil {
			status.LastError = syncErr.Error()
			return
		}
		for i, rt := range resourceTypes {
			switch rt {
			case types.ResourceTypeChannel:
				status.ChannelCount = counts[i]
				status.LastChannelSync = &startTime
			case types.ResourceTypeUser:
				status.LastUserSync = &startTime
			}
		}
	}); err != nil {
		return err
	}

	if syncErr != nil {
		return goerr.Wrap(syncErr, "resource sync failed", goerr.V("integration_id", integration.ID))
	}

	logger.Info("Resource sync completed",
		"counts", counts,
		"duration", time.Since(startTime).String())
	return nil
}

// finish always persists IsSyncing=false, even when the job context is cancelled or the
// previous status cannot be read
func (w *ResourceSyncWorker) finish(ctx context.Context, integrationID model.IntegrationID, apply func(*model.SyncStatus)) error {
	ctx = context.WithoutCancel(ctx)

	status, getErr := w.repo.SyncStatus().Get(ctx, integrationID)
	if getErr != nil {
		logging.From(ctx).Warn("Failed to read sync status, saving result over an empty status",
			"integration_id", integrationID, "error", getErr.Error())
		status = &model.SyncStatus{}
	}
	status.IsSyncing = false
	status.LastError = ""
	apply(status)

	if err := w.repo.SyncStatus().Save(ctx, integrationID, status); err != nil {
		return goerr.Wrap(err, "failed to save sync result", goerr.V("integration_id", integrationID))
	}
	if getErr != nil {
		return goerr.Wrap(getErr, "failed to get sync status", goerr.V("integration_id", integrationID))
	}
	return nil
}

// syncType replaces the stored resources of one type. The repository keeps the selection
// flag of resources that still exist.
func (w *ResourceSyncWorker) syncType(ctx context.Context, integration *model.Integration, src Source, resourceType types.ResourceType, syncedAt time.Time) (int, error) {
	fetched, err := src.FetchResources(ctx, integration, resourceType)
	if err != nil {
		return 0, err
	}

	for _, r := range fetched {
		r.IsSelectedForAnalysis = nil
		if r.LastSyncedAt == nil {
			r.LastSyncedAt = &syncedAt
		}
	}

	if err := w.repo.Resource().Replace(ctx, integration.ID, resourceType, fetched); err != nil {
		return 0, goerr.Wrap(err, "failed to replace resources",
			goerr.V("integration_id", integration.ID),
			goerr.V("resource_type", resourceType),
			goerr.V("count", len(fetched)))
	}

	return len(fetched), nil
}
