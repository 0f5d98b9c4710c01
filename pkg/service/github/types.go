package github

import (
	"context"
	"iter"
	"time"
)

// Service provides interface to GitHub API for repository sync and activity analysis
type Service interface {
	// GetRepository retrieves repository metadata
	GetRepository(ctx context.Context, owner, repo string) (*Repository, error)

	// FetchActivities returns issues and pull requests updated within [since, until],
	// with their comments and reviews
	FetchActivities(ctx context.Context, owner, repo string, since, until time.Time) iter.Seq2[*Activity, error]
}

// Repository is the metadata of a GitHub repository
type Repository struct {
	Owner            string
	Name             string
	FullName         string
	Description      string
	URL              string
	IsPrivate        bool
	IsArchived       bool
	StargazerCount   int
	PullRequestCount int
	IssueCount       int
}

// Activity is an issue or pull request with its discussion
type Activity struct {
	Number    int
	Title     string
	Author    string
	State     string
	URL       string
	IsPR      bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Comments  []Comment
	Reviews   []Review
}

// Comment represents a comment on a GitHub issue or PR
type Comment struct {
	Author    string
	CreatedAt time.Time
}

// Review represents a PR review
type Review struct {
	Author    string
	State     string
	CreatedAt time.Time
}
