package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
)

// SelectionPhase is the initialization state of a ChannelSelection
type SelectionPhase int

const (
	SelectionUninitialized SelectionPhase = iota
	SelectionInitializing
	SelectionReady
)

func (p SelectionPhase) String() string {
	switch p {
	case SelectionUninitialized:
		return "uninitialized"
	case SelectionInitializing:
		return "initializing"
	case SelectionReady:
		return "ready"
	}
	return fmt.Sprintf("SelectionPhase(%d)", int(p))
}

// SaveResult describes what a Save call did
type SaveResult struct {
	Diff model.SelectionDiff
	// Skipped is true when another save was already in flight and this call did nothing
	Skipped bool
	// Confirmed is true when the persisted selection was re-fetched after saving
	Confirmed bool
}

// ChannelSelection holds a local working copy of the channels selected for
// analysis and reconciles it with the backend. One instance corresponds to one
// channel list of one integration.
type ChannelSelection struct {
	backend       interfaces.Backend
	notifier      interfaces.Notifier
	integrationID model.IntegrationID
	installBot    bool

	mu     sync.Mutex
	phase  SelectionPhase
	local  model.Selection
	server model.Selection
	// known is every channel id this instance has seen; confirmation reads are limited to it
	known  model.Selection
	saving bool
	err    error
}

// ChannelSelectionOption configures a ChannelSelection
type ChannelSelectionOption func(*ChannelSelection)

// WithInstallBot requests the backend to install the bot into newly selected channels
func WithInstallBot(install bool) ChannelSelectionOption {
	return func(c *ChannelSelection) {
		c.installBot = install
	}
}

// WithSelectionNotifier sets the notifier receiving save results
func WithSelectionNotifier(n interfaces.Notifier) ChannelSelectionOption {
	return func(c *ChannelSelection) {
		c.notifier = n
	}
}

// NewChannelSelection creates an uninitialized selection controller
func NewChannelSelection(backend interfaces.Backend, integrationID model.IntegrationID, opts ...ChannelSelectionOption) *ChannelSelection {
	c := &ChannelSelection{
		backend:       backend,
		integrationID: integrationID,
		local:         model.NewSelection(),
		server:        model.NewSelection(),
		known:         model.NewSelection(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize derives the initial selection from resources. It runs at most once
// successfully per instance; later calls return the current local selection
// without touching it, so edits made after initialization are never overwritten
// by a refreshed resource list.
func (c *ChannelSelection) Initialize(ctx context.Context, resources []*model.Resource) (model.Selection, error) {
	c.mu.Lock()
	if c.phase != SelectionUninitialized {
		current := c.local.Clone()
		c.mu.Unlock()
		return current, nil
	}
	c.phase = SelectionInitializing
	c.err = nil
	c.mu.Unlock()

	selected, known, err := c.resolveSelection(ctx, resources)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.phase = SelectionUninitialized
		c.err = err
		return nil, err
	}

	c.local = selected
	c.server = selected.Clone()
	c.known = known
	c.phase = SelectionReady

	logging.From(ctx).Debug("channel selection initialized",
		"integration_id", c.integrationID,
		"channels", known.Len(),
		"selected", selected.Len(),
	)

	return selected.Clone(), nil
}

// resolveSelection applies model.ResolveSelected to every channel and queries the
// persisted selection once for channels that carry no selection information.
func (c *ChannelSelection) resolveSelection(ctx context.Context, resources []*model.Resource) (model.Selection, model.Selection, error) {
	selected := model.NewSelection()
	known := model.NewSelection()
	var unresolved []model.ResourceID

	for _, r := range resources {
		if r == nil || !r.IsChannel() {
			continue
		}
		known.Add(r.ID)

		isSelected, ok := model.ResolveSelected(r)
		if !ok {
			unresolved = append(unresolved, r.ID)
			continue
		}
		if isSelected {
			selected.Add(r.ID)
		}
	}

	if len(unresolved) == 0 {
		return selected, known, nil
	}

	persisted, err := c.backend.ListSelectedChannels(ctx, c.integrationID)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to list selected channels",
			goerr.V(IntegrationIDKey, c.integrationID))
	}
	persistedSet := model.NewSelection(persisted...)
	for _, id := range unresolved {
		if persistedSet.Has(id) {
			selected.Add(id)
		}
	}

	return selected, known, nil
}

func (c *ChannelSelection) requireReady() error {
	if c.phase != SelectionReady {
		return goerr.Wrap(ErrSelectionNotReady, "selection cannot be edited",
			goerr.V(IntegrationIDKey, c.integrationID),
			goerr.V("phase", c.phase.String()))
	}
	return nil
}

// Toggle flips the membership of one channel in the local selection
func (c *ChannelSelection) Toggle(id model.ResourceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return err
	}
	c.local.Toggle(id)
	c.known.Add(id)
	return nil
}

// SelectAll adds ids to the local selection. Callers pass the ids currently visible.
func (c *ChannelSelection) SelectAll(ids []model.ResourceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return err
	}
	c.local.Add(ids...)
	c.known.Add(ids...)
	return nil
}

// DeselectAll removes ids from the local selection
func (c *ChannelSelection) DeselectAll(ids []model.ResourceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return err
	}
	c.local.Remove(ids...)
	c.known.Add(ids...)
	return nil
}

// Diff returns the calls the next Save would make
func (c *ChannelSelection) Diff() model.SelectionDiff {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.DiffSelection(c.local, c.server)
}

// Save reconciles the backend with the local selection. Newly selected channels
// are sent first, then removed ones; the first failing call stops the save.
// A Save issued while another is in flight returns a skipped result.
func (c *ChannelSelection) Save(ctx context.Context) (*SaveResult, error) {
	logger := logging.From(ctx)

	c.mu.Lock()
	if err := c.requireReady(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.saving {
		c.mu.Unlock()
		logger.Debug("save already in flight, dropped", "integration_id", c.integrationID)
		return &SaveResult{Skipped: true}, nil
	}

	diff := model.DiffSelection(c.local, c.server)
	if diff.IsEmpty() {
		c.mu.Unlock()
		return &SaveResult{Diff: diff}, nil
	}

	c.saving = true
	c.err = nil
	target := c.local.Clone()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.saving = false
		c.mu.Unlock()
	}()

	result := &SaveResult{Diff: diff}

	if len(diff.ToSelect) > 0 {
		if err := c.backend.SelectChannels(ctx, c.integrationID, diff.ToSelect, c.installBot); err != nil {
			return nil, c.saveFailed(ctx, goerr.Wrap(err, "failed to select channels",
				goerr.V(IntegrationIDKey, c.integrationID),
				goerr.V(ResourceIDsKey, diff.ToSelect)))
		}
		c.mu.Lock()
		c.server.Add(diff.ToSelect...)
		c.mu.Unlock()
	}

	if len(diff.ToDeselect) > 0 {
		if err := c.backend.DeselectChannels(ctx, c.integrationID, diff.ToDeselect); err != nil {
			return nil, c.saveFailed(ctx, goerr.Wrap(err, "failed to deselect channels",
				goerr.V(IntegrationIDKey, c.integrationID),
				goerr.V(ResourceIDsKey, diff.ToDeselect)))
		}
	}

	c.mu.Lock()
	c.server = target.Clone()
	c.mu.Unlock()

	result.Confirmed = c.confirm(ctx, target)

	notify(ctx, c.notifier, model.Notification{
		Level:   model.NotificationSuccess,
		Title:   "Channel selection saved",
		Message: fmt.Sprintf("%d selected, %d deselected", len(diff.ToSelect), len(diff.ToDeselect)),
	})

	return result, nil
}

// confirm re-fetches the persisted selection and adopts it as the server state.
// A failure here does not fail the save because both calls already succeeded.
func (c *ChannelSelection) confirm(ctx context.Context, target model.Selection) bool {
	logger := logging.From(ctx)

	persisted, err := c.backend.ListSelectedChannels(ctx, c.integrationID)
	if err != nil {
		logger.Warn("failed to confirm saved selection",
			"integration_id", c.integrationID,
			"error", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	confirmed := model.NewSelection()
	for _, id := range persisted {
		if c.known.Has(id) {
			confirmed.Add(id)
		}
	}
	if !confirmed.Equal(target) {
		logger.Warn("persisted selection differs from saved selection",
			"integration_id", c.integrationID,
			"unexpected", confirmed.Minus(target),
			"missing", target.Minus(confirmed))
	}
	c.server = confirmed
	return true
}

func (c *ChannelSelection) saveFailed(ctx context.Context, err error) error {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()

	logging.From(ctx).Warn("failed to save channel selection", "error", err)
	notify(ctx, c.notifier, model.Notification{
		Level:   model.NotificationFailure,
		Title:   "Failed to save channel selection",
		Message: userMessage(err, "Failed to save channel selection"),
	})
	return err
}

// Selected returns a copy of the local selection
func (c *ChannelSelection) Selected() model.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local.Clone()
}

// IsSelected reports whether id is in the local selection
func (c *ChannelSelection) IsSelected(id model.ResourceID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local.Has(id)
}

// IsSaving reports whether a save is in flight
func (c *ChannelSelection) IsSaving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saving
}

// Loading reports whether initialization is in progress
func (c *ChannelSelection) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == SelectionInitializing
}

// Phase returns the initialization state
func (c *ChannelSelection) Phase() SelectionPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Err returns the error of the last failed initialization or save
func (c *ChannelSelection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
