package worker_test

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/secmon-lab/contribview/pkg/service/github"
	"github.com/secmon-lab/contribview/pkg/service/notion"
	"github.com/secmon-lab/contribview/pkg/service/slack"
)

// mockSlackService is a function-field implementation of slack.Service
type mockSlackService struct {
	mu    sync.Mutex
	calls map[string]int

	listChannelsFn           func(ctx context.Context) ([]slack.Channel, error)
	listUsersFn              func(ctx context.Context) ([]*slack.User, error)
	getUserNamesFn           func(ctx context.Context, ids []string) (map[string]string, error)
	getConversationHistoryFn func(ctx context.Context, channelID string, oldest, latest time.Time) ([]slack.Message, error)
	joinChannelFn            func(ctx context.Context, channelID string) error
}

func (m *mockSlackService) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *mockSlackService) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockSlackService) ListChannels(ctx context.Context) ([]slack.Channel, error) {
	m.record("ListChannels")
	if m.listChannelsFn != nil {
		return m.listChannelsFn(ctx)
	}
	return nil, nil
}

func (m *mockSlackService) ListUsers(ctx context.Context) ([]*slack.User, error) {
	m.record("ListUsers")
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx)
	}
	return nil, nil
}

func (m *mockSlackService) GetUserNames(ctx context.Context, ids []string) (map[string]string, error) {
	m.record("GetUserNames")
	if m.getUserNamesFn != nil {
		return m.getUserNamesFn(ctx, ids)
	}
	return map[string]string{}, nil
}

func (m *mockSlackService) GetConversationHistory(ctx context.Context, channelID string, oldest, latest time.Time) ([]slack.Message, error) {
	m.record("GetConversationHistory")
	if m.getConversationHistoryFn != nil {
		return m.getConversationHistoryFn(ctx, channelID, oldest, latest)
	}
	return nil, nil
}

func (m *mockSlackService) JoinChannel(ctx context.Context, channelID string) error {
	m.record("JoinChannel")
	if m.joinChannelFn != nil {
		return m.joinChannelFn(ctx, channelID)
	}
	return nil
}

func (m *mockSlackService) PostMessage(ctx context.Context, channelID, text string) error {
	m.record("PostMessage")
	return nil
}

type mockGitHubService struct {
	getRepositoryFn func(ctx context.Context, owner, repo string) (*github.Repository, error)
	activities      []*github.Activity
	activitiesErr   error
}

func (m *mockGitHubService) GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error) {
	if m.getRepositoryFn != nil {
		return m.getRepositoryFn(ctx, owner, repo)
	}
	return &github.Repository{Owner: owner, Name: repo, FullName: owner + "/" + repo}, nil
}

func (m *mockGitHubService) FetchActivities(ctx context.Context, owner, repo string, since, until time.Time) iter.Seq2[*github.Activity, error] {
	return func(yield func(*github.Activity, error) bool) {
		if m.activitiesErr != nil {
			yield(nil, m.activitiesErr)
			return
		}
		for _, a := range m.activities {
			if !yield(a, nil) {
				return
			}
		}
	}
}

type mockNotionService struct {
	databases map[string]*notion.Database
	pages     []*notion.Page
}

func (m *mockNotionService) GetDatabase(ctx context.Context, dbID string) (*notion.Database, error) {
	db, ok := m.databases[dbID]
	if !ok {
		return nil, errNotFound
	}
	return db, nil
}

func (m *mockNotionService) QueryUpdatedPages(ctx context.Context, dbID string, since, until time.Time) iter.Seq2[*notion.Page, error] {
	return func(yield func(*notion.Page, error) bool) {
		for _, p := range m.pages {
			if !yield(p, nil) {
				return
			}
		}
	}
}
