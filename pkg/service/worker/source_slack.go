package worker

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/service/slack"
)

const maxSlackHighlights = 3

// SlackSource syncs channels and users of a Slack workspace
type SlackSource struct {
	svc slack.Service
}

// NewSlackSource creates a Source backed by the Slack Web API
func NewSlackSource(svc slack.Service) *SlackSource {
	return &SlackSource{svc: svc}
}

func (s *SlackSource) ResourceTypes() []types.ResourceType {
	return []types.ResourceType{types.ResourceTypeChannel, types.ResourceTypeUser}
}

func (s *SlackSource) FetchResources(ctx context.Context, integration *model.Integration, resourceType types.ResourceType) ([]*model.Resource, error) {
	now := time.Now().UTC()

	switch resourceType {
	case types.ResourceTypeChannel:
		channels, err := s.svc.ListChannels(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list Slack channels", goerr.V("integration_id", integration.ID))
		}
		resources := make([]*model.Resource, 0, len(channels))
		for _, ch := range channels {
			resources = append(resources, newResource(integration, resourceType, ch.ID, ch.Name, map[string]any{
				model.MetadataKeyMemberCount: ch.NumMembers,
				model.MetadataKeyIsPrivate:   ch.IsPrivate,
				model.MetadataKeyTopic:       ch.Topic,
				"is_member":                  ch.IsMember,
			}, now))
		}
		return resources, nil

	case types.ResourceTypeUser:
		users, err := s.svc.ListUsers(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list Slack users", goerr.V("integration_id", integration.ID))
		}
		resources := make([]*model.Resource, 0, len(users))
		for _, u := range users {
			resources = append(resources, newResource(integration, resourceType, u.ID, u.DisplayName(), map[string]any{
				"name":      u.Name,
				"real_name": u.RealName,
				"email":     u.Email,
				"image_url": u.ImageURL,
			}, now))
		}
		return resources, nil
	}

	return nil, goerr.Wrap(ErrUnsupportedResource, "Slack cannot sync resource type",
		goerr.V("resource_type", resourceType))
}

// Analyze counts messages per author in the channel history. Threads with the most
// replies become highlights.
func (s *SlackSource) Analyze(ctx context.Context, integration *model.Integration, resource *model.Resource, start, end time.Time) (*model.ResourceAnalysis, error) {
	if !resource.IsChannel() {
		return nil, goerr.Wrap(ErrUnsupportedResource, "only channels can be analyzed",
			goerr.V("resource_id", resource.ID), goerr.V("resource_type", resource.ResourceType))
	}

	messages, err := s.svc.GetConversationHistory(ctx, resource.ExternalID, start, end)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read channel history", goerr.V("resource_id", resource.ID))
	}

	counter := newContributionCounter()
	for _, msg := range messages {
		counter.add(msg.UserID, "")
	}

	names, err := s.svc.GetUserNames(ctx, counter.ids())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve Slack user names", goerr.V("resource_id", resource.ID))
	}
	for id, name := range names {
		counter.names[id] = name
	}

	threads := make([]slack.Message, 0)
	for _, msg := range messages {
		if msg.ReplyCount > 0 {
			threads = append(threads, msg)
		}
	}
	slices.SortStableFunc(threads, func(a, b slack.Message) int {
		return b.ReplyCount - a.ReplyCount
	})

	var highlights []string
	for _, msg := range threads[:min(len(threads), maxSlackHighlights)] {
		highlights = append(highlights, fmt.Sprintf("Thread with %d replies: %s", msg.ReplyCount, truncate(msg.Text, 80)))
	}

	contributors := counter.contributors()
	return &model.ResourceAnalysis{
		Summary:      fmt.Sprintf("%d messages from %d contributors", len(messages), len(contributors)),
		Contributors: contributors,
		Highlights:   highlights,
	}, nil
}

// InstallBot joins the bot to the channel so its history can be read
func (s *SlackSource) InstallBot(ctx context.Context, integration *model.Integration, resource *model.Resource) error {
	if err := s.svc.JoinChannel(ctx, resource.ExternalID); err != nil {
		return goerr.Wrap(err, "failed to install bot",
			goerr.V("integration_id", integration.ID), goerr.V("resource_id", resource.ID))
	}
	return nil
}
