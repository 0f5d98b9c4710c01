package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
)

const (
	DefaultPollInterval         = 5 * time.Second
	DefaultPollMaxBackoff       = 60 * time.Second
	DefaultMaxConsecutiveErrors = 5
	DefaultPollTimeout          = 30 * time.Minute
)

// StatusFunc reports one observation of a backend job
type StatusFunc func(ctx context.Context) (*model.JobProgress, error)

// PollerState is the state of a JobPoller
type PollerState int

const (
	PollerIdle PollerState = iota
	PollerPolling
)

func (s PollerState) String() string {
	if s == PollerPolling {
		return "polling"
	}
	return "idle"
}

// JobPoller watches an asynchronous backend job until it reports that it is no
// longer running. The first status request is issued immediately on Start and
// every following one is scheduled only after the previous response arrived, so
// at most one timer is pending at any time.
type JobPoller struct {
	name       string
	status     StatusFunc
	interval   time.Duration
	maxBackoff time.Duration
	maxErrors  int
	timeout    time.Duration
	onComplete func(ctx context.Context) error
	onProgress func(*model.JobProgress)
	notifier   interfaces.Notifier
	doneTitle  string

	mu        sync.Mutex
	state     PollerState
	running   bool
	completed bool
	progress  *model.JobProgress
	lastErr   error
	calls     int
	cancel    context.CancelFunc
	done      chan struct{}
}

// PollerOption configures a JobPoller
type PollerOption func(*JobPoller)

// WithPollInterval sets the delay between two status requests
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *JobPoller) {
		p.interval = d
	}
}

// WithPollMaxBackoff caps the delay used after failed status requests
func WithPollMaxBackoff(d time.Duration) PollerOption {
	return func(p *JobPoller) {
		p.maxBackoff = d
	}
}

// WithMaxConsecutiveErrors aborts polling after n failed requests in a row. Zero disables the limit.
func WithMaxConsecutiveErrors(n int) PollerOption {
	return func(p *JobPoller) {
		p.maxErrors = n
	}
}

// WithPollTimeout bounds the whole polling session. Zero disables the limit.
func WithPollTimeout(d time.Duration) PollerOption {
	return func(p *JobPoller) {
		p.timeout = d
	}
}

// WithOnComplete sets the refresh callback run once when the job is done
func WithOnComplete(fn func(ctx context.Context) error) PollerOption {
	return func(p *JobPoller) {
		p.onComplete = fn
	}
}

// WithOnProgress sets a callback receiving every successful observation
func WithOnProgress(fn func(*model.JobProgress)) PollerOption {
	return func(p *JobPoller) {
		p.onProgress = fn
	}
}

// WithPollNotifier sets the notifier receiving the completion or abort message
func WithPollNotifier(n interfaces.Notifier) PollerOption {
	return func(p *JobPoller) {
		p.notifier = n
	}
}

// WithCompletionTitle overrides the title of the completion notification
func WithCompletionTitle(title string) PollerOption {
	return func(p *JobPoller) {
		p.doneTitle = title
	}
}

// NewJobPoller creates an idle poller named name
func NewJobPoller(name string, status StatusFunc, opts ...PollerOption) *JobPoller {
	p := &JobPoller{
		name:       name,
		status:     status,
		interval:   DefaultPollInterval,
		maxBackoff: DefaultPollMaxBackoff,
		maxErrors:  DefaultMaxConsecutiveErrors,
		timeout:    DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.interval <= 0 {
		p.interval = DefaultPollInterval
	}
	if p.maxBackoff < p.interval {
		p.maxBackoff = p.interval
	}
	if p.doneTitle == "" {
		p.doneTitle = fmt.Sprintf("%s completed", p.name)
	}
	return p
}

// NewSyncStatusPoller polls the sync status of an integration. The job is
// running while the backend reports is_syncing.
func NewSyncStatusPoller(backend interfaces.Backend, integrationID model.IntegrationID, opts ...PollerOption) *JobPoller {
	status := func(ctx context.Context) (*model.JobProgress, error) {
		st, err := backend.GetSyncStatus(ctx, integrationID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get sync status", goerr.V(IntegrationIDKey, integrationID))
		}
		return &model.JobProgress{
			Running:   st.IsSyncing,
			Completed: st.ChannelCount,
			Message:   fmt.Sprintf("%d channels", st.ChannelCount),
		}, nil
	}
	return NewJobPoller("Resource sync", status, opts...)
}

// NewReportPoller polls a team report until no analysis is pending
func NewReportPoller(backend interfaces.Backend, teamID types.TeamID, reportID model.ReportID, opts ...PollerOption) *JobPoller {
	status := func(ctx context.Context) (*model.JobProgress, error) {
		report, err := backend.GetTeamReport(ctx, teamID, reportID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get team report",
				goerr.V(TeamIDKey, teamID),
				goerr.V(ReportIDKey, reportID))
		}
		done, total := report.Progress()
		return &model.JobProgress{
			Running:   report.IsRunning(),
			Completed: done,
			Total:     total,
			Message:   fmt.Sprintf("%d/%d analyses finished", done, total),
		}, nil
	}
	return NewJobPoller("Report generation", status, opts...)
}

// Start begins polling in the background. It returns false without doing
// anything when the poller is already polling.
func (p *JobPoller) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == PollerPolling {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	if p.timeout > 0 {
		var cancelTimeout context.CancelFunc
		loopCtx, cancelTimeout = context.WithTimeoutCause(loopCtx, p.timeout, ErrPollTimeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}

	p.state = PollerPolling
	p.running = true
	p.completed = false
	p.progress = nil
	p.lastErr = nil
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(loopCtx, cancel, p.done)
	return true
}

func (p *JobPoller) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()
	defer func() {
		p.mu.Lock()
		p.state = PollerIdle
		p.running = false
		p.mu.Unlock()
	}()

	logger := logging.From(ctx).With("poller", p.name)

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.interval
	eb.MaxInterval = p.maxBackoff
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.2
	eb.Reset()

	consecutive := 0

	for {
		p.mu.Lock()
		p.calls++
		p.mu.Unlock()

		progress, err := p.status(ctx)
		if ctx.Err() != nil {
			p.stopped(ctx, logger)
			return
		}

		delay := p.interval
		if err != nil {
			consecutive++
			logger.Warn("status request failed", "error", err, "consecutive", consecutive)

			p.mu.Lock()
			p.lastErr = err
			p.mu.Unlock()

			if p.maxErrors > 0 && consecutive >= p.maxErrors {
				p.abort(ctx, goerr.Wrap(ErrPollAborted, "too many failed status requests",
					goerr.V("poller", p.name),
					goerr.V("consecutive", consecutive),
					goerr.V("last_error", err.Error())))
				return
			}
			delay = eb.NextBackOff()
		} else {
			consecutive = 0
			eb.Reset()

			p.mu.Lock()
			p.progress = progress
			p.running = progress.Running
			p.lastErr = nil
			if !progress.Running {
				p.completed = true
			}
			p.mu.Unlock()

			if p.onProgress != nil {
				p.onProgress(progress)
			}

			if !progress.Running {
				p.complete(ctx, logger, progress)
				return
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.stopped(ctx, logger)
			return
		case <-timer.C:
		}
	}
}

// complete runs the refresh callback and sends exactly one notification
func (p *JobPoller) complete(ctx context.Context, logger *slog.Logger, progress *model.JobProgress) {
	logger.Info("job completed", "message", progress.Message)

	if p.onComplete != nil {
		if err := p.onComplete(ctx); err != nil {
			wrapped := goerr.Wrap(err, "failed to refresh after completion", goerr.V("poller", p.name))
			p.mu.Lock()
			p.lastErr = wrapped
			p.mu.Unlock()

			logger.Warn("refresh after completion failed", "error", err)
			notify(ctx, p.notifier, model.Notification{
				Level:   model.NotificationFailure,
				Title:   p.doneTitle,
				Message: userMessage(err, "Failed to refresh after completion"),
			})
			return
		}
	}

	notify(ctx, p.notifier, model.Notification{
		Level:   model.NotificationSuccess,
		Title:   p.doneTitle,
		Message: progress.Message,
	})
}

func (p *JobPoller) abort(ctx context.Context, err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()

	logging.From(ctx).Error("polling aborted", "poller", p.name, "error", err)
	notify(ctx, p.notifier, model.Notification{
		Level:   model.NotificationFailure,
		Title:   fmt.Sprintf("%s status unavailable", p.name),
		Message: userMessage(err, "Stopped checking status after repeated errors"),
	})
}

// stopped handles cancellation. A timeout is reported; an explicit Stop is silent.
func (p *JobPoller) stopped(ctx context.Context, logger *slog.Logger) {
	if !errors.Is(context.Cause(ctx), ErrPollTimeout) {
		logger.Info("polling stopped")
		return
	}

	err := goerr.Wrap(ErrPollTimeout, "job did not finish in time",
		goerr.V("poller", p.name),
		goerr.V("timeout", p.timeout.String()))
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()

	logger.Warn("polling timed out", "timeout", p.timeout)
	notify(context.WithoutCancel(ctx), p.notifier, model.Notification{
		Level:   model.NotificationFailure,
		Title:   fmt.Sprintf("%s timed out", p.name),
		Message: fmt.Sprintf("Stopped waiting after %s", p.timeout),
	})
}

// Stop cancels any pending status request or timer and waits for the polling
// loop to exit. No status request is issued after Stop returns.
func (p *JobPoller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until polling ends or ctx is done and returns the last error
func (p *JobPoller) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// IsRunning reports whether the job is believed to be running: true from Start
// until a response says otherwise or polling ends.
func (p *JobPoller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// IsPolling reports whether the polling loop is active
func (p *JobPoller) IsPolling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == PollerPolling
}

// Completed reports whether the last session observed the job finishing
func (p *JobPoller) Completed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

// Progress returns the last successful observation, or nil
func (p *JobPoller) Progress() *model.JobProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.progress == nil {
		return nil
	}
	copied := *p.progress
	return &copied
}

// Calls returns the number of status requests issued so far
func (p *JobPoller) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Err returns the error that ended the last session, if any
func (p *JobPoller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
