package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/usecase"
)

// scriptedStatus answers status requests from a fixed script; the last entry repeats
type scriptedStatus struct {
	mu     sync.Mutex
	script []bool
	errs   map[int]error
	calls  int
}

func (s *scriptedStatus) fn(ctx context.Context) (*model.JobProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	s.calls++
	if err, ok := s.errs[idx]; ok {
		return nil, err
	}
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	return &model.JobProgress{Running: s.script[idx]}, nil
}

func (s *scriptedStatus) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func waitPoller(t *testing.T, p *usecase.JobPoller) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("poller did not finish")
	}
	return err
}

func TestJobPoller_CompletesOnce(t *testing.T) {
	status := &scriptedStatus{script: []bool{true, true, false}}
	notifier := &mockNotifier{}
	var refreshes int
	var mu sync.Mutex

	p := usecase.NewJobPoller("sync", status.fn,
		usecase.WithPollInterval(time.Millisecond),
		usecase.WithPollNotifier(notifier),
		usecase.WithOnComplete(func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			refreshes++
			return nil
		}),
	)

	gt.B(t, p.Start(context.Background())).True()
	gt.NoError(t, waitPoller(t, p))

	gt.Number(t, status.Calls()).Equal(3)
	gt.Number(t, p.Calls()).Equal(3)
	gt.Number(t, refreshes).Equal(1)
	gt.B(t, p.Completed()).True()
	gt.B(t, p.IsPolling()).False()
	gt.B(t, p.IsRunning()).False()

	notifications := notifier.All()
	gt.Array(t, notifications).Length(1)
	gt.Value(t, notifications[0].Level).Equal(model.NotificationSuccess)

	// no further requests after completion
	time.Sleep(20 * time.Millisecond)
	gt.Number(t, status.Calls()).Equal(3)
}

func TestJobPoller_IndicatorFollowsResponses(t *testing.T) {
	status := &scriptedStatus{script: []bool{true, true, true, false}}
	var mu sync.Mutex
	var indicator []bool
	var refreshes int

	var p *usecase.JobPoller
	p = usecase.NewJobPoller("sync", status.fn,
		usecase.WithPollInterval(time.Millisecond),
		usecase.WithOnProgress(func(*model.JobProgress) {
			mu.Lock()
			defer mu.Unlock()
			indicator = append(indicator, p.IsRunning())
		}),
		usecase.WithOnComplete(func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			refreshes++
			return nil
		}),
	)

	gt.B(t, p.Start(context.Background())).True()
	gt.NoError(t, waitPoller(t, p))

	gt.Array(t, indicator).Equal([]bool{true, true, true, false})
	gt.Number(t, refreshes).Equal(1)
}

func TestJobPoller_FirstRequestIsImmediate(t *testing.T) {
	status := &scriptedStatus{script: []bool{false}}
	p := usecase.NewJobPoller("sync", status.fn, usecase.WithPollInterval(time.Hour))

	p.Start(context.Background())
	gt.NoError(t, waitPoller(t, p))
	gt.Number(t, status.Calls()).Equal(1)
}

func TestJobPoller_StopPreventsFurtherRequests(t *testing.T) {
	status := &scriptedStatus{script: []bool{true}}
	notifier := &mockNotifier{}
	p := usecase.NewJobPoller("sync", status.fn,
		usecase.WithPollInterval(time.Millisecond),
		usecase.WithPollNotifier(notifier),
	)

	p.Start(context.Background())
	for status.Calls() < 3 {
		time.Sleep(time.Millisecond)
	}

	p.Stop()
	stoppedAt := status.Calls()
	gt.B(t, p.IsPolling()).False()
	gt.B(t, p.IsRunning()).False()

	time.Sleep(30 * time.Millisecond)
	gt.Number(t, status.Calls()).Equal(stoppedAt)
	gt.B(t, p.Completed()).False()
	gt.Array(t, notifier.All()).Length(0)

	// stopping twice is harmless
	p.Stop()
}

func TestJobPoller_StartWhilePollingIsNoop(t *testing.T) {
	status := &scriptedStatus{script: []bool{true}}
	p := usecase.NewJobPoller("sync", status.fn, usecase.WithPollInterval(time.Hour))

	gt.B(t, p.Start(context.Background())).True()
	gt.B(t, p.Start(context.Background())).False()
	gt.B(t, p.Start(context.Background())).False()

	for status.Calls() < 1 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	gt.Number(t, status.Calls()).Equal(1)

	p.Stop()

	// a stopped poller can be started again
	gt.B(t, p.Start(context.Background())).True()
	p.Stop()
}

func TestJobPoller_ContextCancel(t *testing.T) {
	status := &scriptedStatus{script: []bool{true}}
	p := usecase.NewJobPoller("sync", status.fn, usecase.WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	for status.Calls() < 2 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	gt.NoError(t, waitPoller(t, p))
	gt.B(t, p.IsPolling()).False()
}

func TestJobPoller_Errors(t *testing.T) {
	t.Run("aborts after consecutive errors", func(t *testing.T) {
		fail := errors.New("503 service unavailable")
		status := &scriptedStatus{
			script: []bool{true},
			errs:   map[int]error{0: fail, 1: fail, 2: fail, 3: fail},
		}
		notifier := &mockNotifier{}
		p := usecase.NewJobPoller("sync", status.fn,
			usecase.WithPollInterval(time.Millisecond),
			usecase.WithPollMaxBackoff(2*time.Millisecond),
			usecase.WithMaxConsecutiveErrors(3),
			usecase.WithPollNotifier(notifier),
		)

		p.Start(context.Background())
		err := waitPoller(t, p)
		gt.Error(t, err).Is(usecase.ErrPollAborted)
		gt.Number(t, status.Calls()).Equal(3)
		gt.B(t, p.Completed()).False()

		notifications := notifier.All()
		gt.Array(t, notifications).Length(1)
		gt.Value(t, notifications[0].Level).Equal(model.NotificationFailure)
	})

	t.Run("success resets the error count", func(t *testing.T) {
		fail := errors.New("timeout")
		status := &scriptedStatus{
			script: []bool{true, true, true, true, true, false},
			errs:   map[int]error{0: fail, 1: fail, 3: fail, 4: fail},
		}
		var refreshes int
		p := usecase.NewJobPoller("sync", status.fn,
			usecase.WithPollInterval(time.Millisecond),
			usecase.WithPollMaxBackoff(2*time.Millisecond),
			usecase.WithMaxConsecutiveErrors(3),
			usecase.WithOnComplete(func(ctx context.Context) error {
				refreshes++
				return nil
			}),
		)

		p.Start(context.Background())
		gt.NoError(t, waitPoller(t, p))
		gt.Number(t, status.Calls()).Equal(6)
		gt.Number(t, refreshes).Equal(1)
		gt.B(t, p.Completed()).True()
	})

	t.Run("refresh failure is reported once", func(t *testing.T) {
		status := &scriptedStatus{script: []bool{false}}
		notifier := &mockNotifier{}
		p := usecase.NewJobPoller("sync", status.fn,
			usecase.WithPollNotifier(notifier),
			usecase.WithOnComplete(func(ctx context.Context) error {
				return &userError{detail: "integration not found"}
			}),
		)

		p.Start(context.Background())
		gt.Value(t, waitPoller(t, p)).NotNil()

		notifications := notifier.All()
		gt.Array(t, notifications).Length(1)
		gt.Value(t, notifications[0].Level).Equal(model.NotificationFailure)
		gt.Value(t, notifications[0].Message).Equal("integration not found")
	})
}

func TestJobPoller_Timeout(t *testing.T) {
	status := &scriptedStatus{script: []bool{true}}
	notifier := &mockNotifier{}
	p := usecase.NewJobPoller("sync", status.fn,
		usecase.WithPollInterval(time.Millisecond),
		usecase.WithPollTimeout(20*time.Millisecond),
		usecase.WithPollNotifier(notifier),
	)

	p.Start(context.Background())
	gt.Error(t, waitPoller(t, p)).Is(usecase.ErrPollTimeout)
	gt.Array(t, notifier.All()).Length(1)
}

func TestNewSyncStatusPoller(t *testing.T) {
	var mu sync.Mutex
	responses := []bool{true, true, false}
	backend := &mockBackend{
		getSyncStatusFn: func(ctx context.Context, id model.IntegrationID) (*model.SyncStatus, error) {
			mu.Lock()
			defer mu.Unlock()
			gt.Value(t, id).Equal(model.IntegrationID("ws-1"))
			syncing := responses[0]
			if len(responses) > 1 {
				responses = responses[1:]
			}
			return &model.SyncStatus{IsSyncing: syncing, ChannelCount: 12}, nil
		},
	}

	var refreshed int
	p := usecase.NewSyncStatusPoller(backend, "ws-1",
		usecase.WithPollInterval(time.Millisecond),
		usecase.WithOnComplete(func(ctx context.Context) error {
			_, err := backend.ListResources(ctx, "ws-1")
			refreshed++
			return err
		}),
	)

	p.Start(context.Background())
	gt.NoError(t, waitPoller(t, p))

	gt.Number(t, backend.CallCount("GetSyncStatus")).Equal(3)
	gt.Number(t, backend.CallCount("ListResources")).Equal(1)
	gt.Number(t, refreshed).Equal(1)
	gt.Number(t, p.Progress().Completed).Equal(12)
}

func TestNewReportPoller(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	backend := &mockBackend{
		getTeamReportFn: func(ctx context.Context, teamID types.TeamID, reportID model.ReportID) (*model.TeamReport, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			second := types.AnalysisStatusPending
			if calls >= 2 {
				second = types.AnalysisStatusFailed
			}
			return &model.TeamReport{
				ID:     reportID,
				TeamID: teamID,
				Analyses: []model.ResourceAnalysis{
					{ResourceID: "a", Status: types.AnalysisStatusCompleted},
					{ResourceID: "b", Status: second},
				},
			}, nil
		},
	}

	var progress []model.JobProgress
	p := usecase.NewReportPoller(backend, "team-1", "r-1",
		usecase.WithPollInterval(time.Millisecond),
		usecase.WithOnProgress(func(jp *model.JobProgress) {
			progress = append(progress, *jp)
		}),
	)

	p.Start(context.Background())
	gt.NoError(t, waitPoller(t, p))

	gt.Array(t, progress).Length(2)
	gt.Number(t, progress[0].Completed).Equal(1)
	gt.Number(t, progress[0].Total).Equal(2)
	gt.B(t, progress[0].Running).True()
	gt.Number(t, progress[1].Completed).Equal(2)
	gt.B(t, progress[1].Running).False()
}
