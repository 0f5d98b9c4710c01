package slack

import (
	"context"
	"time"
)

// Service provides interface to Slack API for resource sync and activity analysis
type Service interface {
	// ListChannels retrieves non-archived public and private channels visible to the bot
	ListChannels(ctx context.Context) ([]Channel, error)

	// ListUsers retrieves all non-deleted, non-bot users in the workspace
	ListUsers(ctx context.Context) ([]*User, error)

	// GetUserNames resolves display names for user IDs (with caching).
	// Users that cannot be resolved are omitted from the result.
	GetUserNames(ctx context.Context, ids []string) (map[string]string, error)

	// GetConversationHistory retrieves messages posted in [oldest, latest), following pagination
	GetConversationHistory(ctx context.Context, channelID string, oldest, latest time.Time) ([]Message, error)

	// JoinChannel adds the bot to a public channel. Joining a channel twice is not an error.
	JoinChannel(ctx context.Context, channelID string) error

	// PostMessage posts a plain text message to a channel
	PostMessage(ctx context.Context, channelID, text string) error
}

// Channel represents a Slack channel
type Channel struct {
	ID         string
	Name       string
	Topic      string
	IsPrivate  bool
	IsMember   bool
	NumMembers int
}

// User represents a Slack user
type User struct {
	ID       string
	Name     string
	RealName string
	Email    string
	ImageURL string
}

// DisplayName returns the real name when set, otherwise the account name
func (u *User) DisplayName() string {
	if u.RealName != "" {
		return u.RealName
	}
	return u.Name
}

// Message is one message of a conversation
type Message struct {
	UserID     string
	Text       string
	Timestamp  time.Time
	ThreadTS   string
	ReplyCount int
}
