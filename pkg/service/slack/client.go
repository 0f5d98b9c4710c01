package slack

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

const (
	// DefaultCacheTTL is the default TTL for user name cache
	DefaultCacheTTL = 10 * time.Minute

	historyPageSize = 200
)

// cacheEntry holds a cached user name with expiration
type cacheEntry struct {
	name      string
	expiresAt time.Time
}

// client implements Service interface
type client struct {
	api      *slack.Client
	apiURL   string
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// Option is a functional option for client configuration
type Option func(*client)

// WithCacheTTL sets the TTL for user name cache
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *client) {
		c.cacheTTL = ttl
	}
}

// WithAPIURL overrides the Slack API endpoint. The URL must end with a slash.
func WithAPIURL(url string) Option {
	return func(c *client) {
		c.apiURL = url
	}
}

// New creates a new Slack service with the provided bot token
func New(token string, opts ...Option) (Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	c := &client{
		cacheTTL: DefaultCacheTTL,
		cache:    make(map[string]cacheEntry),
	}

	for _, opt := range opts {
		opt(c)
	}

	var apiOpts []slack.Option
	if c.apiURL != "" {
		apiOpts = append(apiOpts, slack.OptionAPIURL(c.apiURL))
	}
	c.api = slack.New(token, apiOpts...)

	return c, nil
}

// ListChannels retrieves non-archived channels visible to the bot
func (c *client) ListChannels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	var cursor string

	for {
		params := &slack.GetConversationsParameters{
			// private_channel requires groups:read scope; channels without access are not returned
			Types:           []string{"public_channel", "private_channel"},
			ExcludeArchived: true,
			Limit:           200,
			Cursor:          cursor,
		}

		convs, nextCursor, err := c.api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get conversations")
		}

		for _, conv := range convs {
			channels = append(channels, Channel{
				ID:         conv.ID,
				Name:       conv.Name,
				Topic:      conv.Topic.Value,
				IsPrivate:  conv.IsPrivate,
				IsMember:   conv.IsMember,
				NumMembers: conv.NumMembers,
			})
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	return channels, nil
}

// ListUsers retrieves all non-deleted, non-bot users in the workspace
func (c *client) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := c.api.GetUsersContext(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list users")
	}

	result := make([]*User, 0, len(users))
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range users {
		// Skip deleted users and bots
		if u.Deleted || u.IsBot {
			continue
		}

		user := &User{
			ID:       u.ID,
			Name:     u.Name,
			RealName: u.RealName,
			Email:    u.Profile.Email,
			ImageURL: u.Profile.Image48,
		}
		result = append(result, user)
		c.cache[u.ID] = cacheEntry{name: user.DisplayName(), expiresAt: now.Add(c.cacheTTL)}
	}

	return result, nil
}

// GetUserNames resolves user names with caching
func (c *client) GetUserNames(ctx context.Context, ids []string) (map[string]string, error) {
	result := make(map[string]string)
	var missingIDs []string

	now := time.Now()

	// Check cache first
	c.mu.RLock()
	for _, id := range ids {
		if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
			result[id] = entry.name
		} else {
			missingIDs = append(missingIDs, id)
		}
	}
	c.mu.RUnlock()

	if len(missingIDs) == 0 {
		return result, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range missingIDs {
		// Double-check cache after acquiring write lock
		if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
			result[id] = entry.name
			continue
		}

		info, err := c.api.GetUserInfoContext(ctx, id)
		if err != nil {
			// The caller falls back to the user ID
			continue
		}

		user := User{Name: info.Name, RealName: info.RealName}
		name := user.DisplayName()
		result[id] = name
		c.cache[id] = cacheEntry{
			name:      name,
			expiresAt: now.Add(c.cacheTTL),
		}
	}

	return result, nil
}

// GetConversationHistory retrieves messages of a channel within [oldest, latest)
func (c *client) GetConversationHistory(ctx context.Context, channelID string, oldest, latest time.Time) ([]Message, error) {
	var messages []Message
	var cursor string

	for {
		resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channelID,
			Oldest:    formatTimestamp(oldest),
			Latest:    formatTimestamp(latest),
			Limit:     historyPageSize,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get conversation history",
				goerr.V("channel_id", channelID),
				goerr.V("oldest", oldest),
				goerr.V("latest", latest))
		}

		for _, msg := range resp.Messages {
			// Skip bot posts and channel events such as joins
			if msg.BotID != "" || msg.SubType != "" || msg.User == "" {
				continue
			}
			ts, err := parseTimestamp(msg.Timestamp)
			if err != nil {
				return nil, goerr.Wrap(err, "invalid message timestamp",
					goerr.V("channel_id", channelID),
					goerr.V("ts", msg.Timestamp))
			}
			messages = append(messages, Message{
				UserID:     msg.User,
				Text:       msg.Text,
				Timestamp:  ts,
				ThreadTS:   msg.ThreadTimestamp,
				ReplyCount: msg.ReplyCount,
			})
		}

		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			break
		}
		cursor = resp.ResponseMetaData.NextCursor
	}

	return messages, nil
}

// JoinChannel adds the bot to a channel
func (c *client) JoinChannel(ctx context.Context, channelID string) error {
	if _, _, _, err := c.api.JoinConversationContext(ctx, channelID); err != nil {
		return goerr.Wrap(err, "failed to join Slack channel", goerr.V("channel_id", channelID))
	}
	return nil
}

// PostMessage posts a plain text message
func (c *client) PostMessage(ctx context.Context, channelID, text string) error {
	if _, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false)); err != nil {
		return goerr.Wrap(err, "failed to post Slack message", goerr.V("channel_id", channelID))
	}
	return nil
}

// formatTimestamp converts t into the "seconds.micros" form used by the Slack API
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

func parseTimestamp(ts string) (time.Time, error) {
	secPart, microPart, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "failed to parse seconds")
	}
	var micro int64
	if microPart != "" {
		micro, err = strconv.ParseInt(microPart, 10, 64)
		if err != nil {
			return time.Time{}, goerr.Wrap(err, "failed to parse microseconds")
		}
	}
	return time.Unix(sec, micro*1000).UTC(), nil
}
