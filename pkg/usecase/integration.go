package usecase

import (
	"context"
	"errors"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
)

// ResourceSyncer runs resource sync jobs in the background
type ResourceSyncer interface {
	// TryStart returns false when a job for the integration is already running
	TryStart(ctx context.Context, integration *model.Integration, resourceTypes []types.ResourceType) (bool, error)
}

// BotInstaller adds the bot to a channel so its activity can be read
type BotInstaller interface {
	InstallBot(ctx context.Context, integration *model.Integration, resource *model.Resource) error
}

// IntegrationUseCase serves integrations, their resources and the channel selection
type IntegrationUseCase struct {
	repo       interfaces.Repository
	syncer     ResourceSyncer
	installers map[types.ServiceType]BotInstaller
}

// NewIntegrationUseCase creates an IntegrationUseCase. syncer may be nil, in which case
// StartSync fails with ErrUnsupportedService.
func NewIntegrationUseCase(repo interfaces.Repository, syncer ResourceSyncer, installers map[types.ServiceType]BotInstaller) *IntegrationUseCase {
	return &IntegrationUseCase{
		repo:       repo,
		syncer:     syncer,
		installers: installers,
	}
}

// RegisterIntegrations upserts integration descriptors, e.g. from the config file
func (uc *IntegrationUseCase) RegisterIntegrations(ctx context.Context, integrations []*model.Integration) error {
	for _, integration := range integrations {
		if _, err := uc.repo.Integration().Put(ctx, integration); err != nil {
			return goerr.Wrap(err, "failed to register integration", goerr.V(IntegrationIDKey, integration.ID))
		}
		logging.From(ctx).Info("Integration registered",
			"id", integration.ID,
			"service", integration.ServiceType,
			"team", integration.TeamID)
	}
	return nil
}

func (uc *IntegrationUseCase) GetIntegration(ctx context.Context, id model.IntegrationID) (*model.Integration, error) {
	integration, err := uc.repo.Integration().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get integration", goerr.V(IntegrationIDKey, id))
	}
	return integration, nil
}

func (uc *IntegrationUseCase) ListIntegrations(ctx context.Context) ([]*model.Integration, error) {
	integrations, err := uc.repo.Integration().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list integrations")
	}
	return integrations, nil
}

// ListResources returns resources of the integration. Every returned resource carries an
// explicit IsSelectedForAnalysis flag.
func (uc *IntegrationUseCase) ListResources(ctx context.Context, id model.IntegrationID, resourceTypes ...types.ResourceType) ([]*model.Resource, error) {
	if _, err := uc.GetIntegration(ctx, id); err != nil {
		return nil, err
	}

	resources, err := uc.repo.Resource().List(ctx, id, resourceTypes...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list resources", goerr.V(IntegrationIDKey, id))
	}
	for _, r := range resources {
		selected, _ := model.ResolveSelected(r)
		r.IsSelectedForAnalysis = model.Bool(selected)
	}
	return resources, nil
}

func (uc *IntegrationUseCase) ListSelectedChannels(ctx context.Context, id model.IntegrationID) ([]model.ResourceID, error) {
	if _, err := uc.GetIntegration(ctx, id); err != nil {
		return nil, err
	}

	ids, err := uc.repo.Resource().ListSelected(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list selected channels", goerr.V(IntegrationIDKey, id))
	}
	return ids, nil
}

// SelectChannels marks channels as selected. With installBot the bot joins every channel
// first; nothing is persisted when an installation fails.
func (uc *IntegrationUseCase) SelectChannels(ctx context.Context, id model.IntegrationID, channelIDs []model.ResourceID, installBot bool) error {
	integration, err := uc.GetIntegration(ctx, id)
	if err != nil {
		return err
	}

	channels, err := uc.lookupChannels(ctx, integration, channelIDs)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		return nil
	}

	if installBot {
		installer, ok := uc.installers[integration.ServiceType]
		if !ok || installer == nil {
			return goerr.Wrap(ErrUnsupportedService, "bot installation is not available",
				goerr.V(IntegrationIDKey, id), goerr.V("service", integration.ServiceType))
		}
		for _, ch := range channels {
			if err := installer.InstallBot(ctx, integration, ch); err != nil {
				return goerr.Wrap(err, "failed to install bot", goerr.V(IntegrationIDKey, id))
			}
		}
	}

	if err := uc.repo.Resource().SetSelected(ctx, id, ResourceIDs(channels), true); err != nil {
		return goerr.Wrap(err, "failed to select channels", goerr.V(IntegrationIDKey, id))
	}

	logging.From(ctx).Info("Channels selected", "integration_id", id, "count", len(channels), "install_bot", installBot)
	return nil
}

// DeselectChannels removes channels from the selection
func (uc *IntegrationUseCase) DeselectChannels(ctx context.Context, id model.IntegrationID, channelIDs []model.ResourceID) error {
	integration, err := uc.GetIntegration(ctx, id)
	if err != nil {
		return err
	}

	channels, err := uc.lookupChannels(ctx, integration, channelIDs)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		return nil
	}

	if err := uc.repo.Resource().SetSelected(ctx, id, ResourceIDs(channels), false); err != nil {
		return goerr.Wrap(err, "failed to deselect channels", goerr.V(IntegrationIDKey, id))
	}

	logging.From(ctx).Info("Channels deselected", "integration_id", id, "count", len(channels))
	return nil
}

// lookupChannels resolves ids to channels of the integration. Duplicates are removed.
// Unknown IDs fail with ErrUnknownResources listing every one of them.
func (uc *IntegrationUseCase) lookupChannels(ctx context.Context, integration *model.Integration, ids []model.ResourceID) ([]*model.Resource, error) {
	var unique []model.ResourceID
	for _, id := range ids {
		if !slices.Contains(unique, id) {
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return nil, nil
	}

	found, err := uc.repo.Resource().GetByIDs(ctx, unique)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get resources", goerr.V(IntegrationIDKey, integration.ID))
	}

	var unknown, notChannel []model.ResourceID
	channels := make([]*model.Resource, 0, len(unique))
	for _, id := range unique {
		r, ok := found[id]
		switch {
		case !ok || r.IntegrationID != integration.ID:
			unknown = append(unknown, id)
		case !r.IsChannel():
			notChannel = append(notChannel, id)
		default:
			channels = append(channels, r)
		}
	}

	if len(unknown) > 0 {
		return nil, goerr.Wrap(ErrUnknownResources, "unknown channel ids",
			goerr.V(IntegrationIDKey, integration.ID), goerr.V(ResourceIDsKey, unknown))
	}
	if len(notChannel) > 0 {
		return nil, goerr.Wrap(ErrNotChannel, "only channels can be selected",
			goerr.V(IntegrationIDKey, integration.ID), goerr.V(ResourceIDsKey, notChannel))
	}
	return channels, nil
}

// StartSync starts a background sync job. A running job fails with ErrSyncInProgress.
func (uc *IntegrationUseCase) StartSync(ctx context.Context, id model.IntegrationID, resourceTypes []types.ResourceType) error {
	integration, err := uc.GetIntegration(ctx, id)
	if err != nil {
		return err
	}
	if uc.syncer == nil {
		return goerr.Wrap(ErrUnsupportedService, "resource sync is not configured", goerr.V(IntegrationIDKey, id))
	}

	for _, rt := range resourceTypes {
		if !rt.IsValid() {
			return goerr.Wrap(ErrInvalidRequest, "invalid resource type",
				goerr.V(IntegrationIDKey, id), goerr.V("resource_type", rt))
		}
	}

	started, err := uc.syncer.TryStart(ctx, integration, resourceTypes)
	if err != nil {
		return goerr.Wrap(err, "failed to start resource sync", goerr.V(IntegrationIDKey, id))
	}
	if !started {
		return goerr.Wrap(ErrSyncInProgress, "resource sync is already running", goerr.V(IntegrationIDKey, id))
	}
	return nil
}

func (uc *IntegrationUseCase) GetSyncStatus(ctx context.Context, id model.IntegrationID) (*model.SyncStatus, error) {
	if _, err := uc.GetIntegration(ctx, id); err != nil {
		return nil, err
	}

	status, err := uc.repo.SyncStatus().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get sync status", goerr.V(IntegrationIDKey, id))
	}
	return status, nil
}

// IntegrationIssue is an inconsistency between declared and stored integrations
type IntegrationIssue struct {
	IntegrationID model.IntegrationID
	Message       string
	Expected      string
	Actual        string
}

// ValidateIntegrations compares declared integrations with the stored ones. Declared
// integrations that are not stored yet are fine; serve registers them.
func (uc *IntegrationUseCase) ValidateIntegrations(ctx context.Context, declared []*model.Integration) ([]IntegrationIssue, error) {
	stored, err := uc.ListIntegrations(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[model.IntegrationID]*model.Integration, len(declared))
	for _, d := range declared {
		byID[d.ID] = d
	}

	var issues []IntegrationIssue
	for _, s := range stored {
		d, ok := byID[s.ID]
		if !ok {
			issues = append(issues, IntegrationIssue{
				IntegrationID: s.ID,
				Message:       "stored integration is not declared",
			})
			continue
		}
		if d.ServiceType != s.ServiceType {
			issues = append(issues, IntegrationIssue{
				IntegrationID: s.ID,
				Message:       "service type differs from the stored integration; its resources would be stale",
				Expected:      d.ServiceType.String(),
				Actual:        s.ServiceType.String(),
			})
		}
		if d.TeamID != s.TeamID {
			issues = append(issues, IntegrationIssue{
				IntegrationID: s.ID,
				Message:       "owner team differs from the stored integration",
				Expected:      d.TeamID.String(),
				Actual:        s.TeamID.String(),
			})
		}
	}
	return issues, nil
}

// ResyncWorkspace starts a sync of resourceType for every active Slack integration of the
// workspace. Integrations without a workspace match any workspace. Integrations already
// syncing are skipped. It returns the IDs of the integrations whose sync started.
func (uc *IntegrationUseCase) ResyncWorkspace(ctx context.Context, workspace string, resourceType types.ResourceType) ([]model.IntegrationID, error) {
	integrations, err := uc.ListIntegrations(ctx)
	if err != nil {
		return nil, err
	}

	var started []model.IntegrationID
	for _, integration := range integrations {
		if integration.ServiceType != types.ServiceTypeSlack ||
			integration.Status.Normalize() != types.IntegrationStatusActive {
			continue
		}
		if ws := integration.MetadataString(model.MetadataKeyWorkspace); ws != "" && ws != workspace {
			continue
		}

		err := uc.StartSync(ctx, integration.ID, []types.ResourceType{resourceType})
		if errors.Is(err, ErrSyncInProgress) {
			logging.From(ctx).Debug("Sync already running, event ignored", "integration_id", integration.ID)
			continue
		}
		if err != nil {
			return started, err
		}
		started = append(started, integration.ID)
	}
	return started, nil
}
