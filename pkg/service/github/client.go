package github

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"os"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/shurcooL/githubv4"
)

const searchPageSize = 50

type client struct {
	gql *githubv4.Client
}

// New creates a new GitHub Service using GitHub App authentication.
// privateKey can be a PEM string or a file path to a PEM file.
func New(appID, installationID int64, privateKey string) (Service, error) {
	var key []byte

	// Try reading as file path first
	// #nosec G304 -- path comes from CLI flag, not user input
	if data, err := os.ReadFile(privateKey); err == nil {
		key = data
	} else {
		// Treat as PEM string
		key = []byte(privateKey)
	}

	tr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport")
	}

	return &client{gql: githubv4.NewClient(&http.Client{Transport: tr})}, nil
}

// NewWithHTTPClient creates a Service sending GraphQL requests to endpoint with httpClient.
// Used for GitHub Enterprise Server and tests.
func NewWithHTTPClient(endpoint string, httpClient *http.Client) Service {
	return &client{gql: githubv4.NewEnterpriseClient(endpoint, httpClient)}
}

// GetRepository retrieves repository metadata
func (c *client) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	var q repositoryQuery
	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(repo),
	}

	if err := c.gql.Query(ctx, &q, variables); err != nil {
		return nil, goerr.Wrap(err, "failed to get repository",
			goerr.V("owner", owner), goerr.V("repo", repo))
	}

	r := q.Repository
	return &Repository{
		Owner:            owner,
		Name:             repo,
		FullName:         fmt.Sprintf("%s/%s", owner, repo),
		Description:      string(r.Description),
		URL:              string(r.URL),
		IsPrivate:        bool(r.IsPrivate),
		IsArchived:       bool(r.IsArchived),
		StargazerCount:   int(r.StargazerCount),
		PullRequestCount: int(r.PullRequests.TotalCount),
		IssueCount:       int(r.Issues.TotalCount),
	}, nil
}

// FetchActivities searches issues and PRs updated in the range using GitHub GraphQL search
func (c *client) FetchActivities(ctx context.Context, owner, repo string, since, until time.Time) iter.Seq2[*Activity, error] {
	return func(yield func(*Activity, error) bool) {
		query := fmt.Sprintf("repo:%s/%s updated:%s..%s sort:updated-asc",
			owner, repo, since.UTC().Format(time.RFC3339), until.UTC().Format(time.RFC3339))
		var cursor *githubv4.String

		for {
			var q searchActivityQuery
			variables := map[string]interface{}{
				"query":  githubv4.String(query),
				"first":  githubv4.Int(searchPageSize),
				"cursor": cursor,
			}

			if err := c.gql.Query(ctx, &q, variables); err != nil {
				yield(nil, goerr.Wrap(err, "failed to search activities",
					goerr.V("owner", owner), goerr.V("repo", repo)))
				return
			}

			for _, edge := range q.Search.Edges {
				var activity *Activity
				switch edge.Node.Typename {
				case "PullRequest":
					activity = convertPullRequest(edge.Node.PullRequest)
				case "Issue":
					activity = convertIssue(edge.Node.Issue)
				default:
					continue
				}

				if !yield(activity, nil) {
					return
				}
			}

			if !q.Search.PageInfo.HasNextPage {
				return
			}
			cursor = &q.Search.PageInfo.EndCursor
		}
	}
}

// GraphQL query types

type searchActivityQuery struct {
	Search struct {
		Edges []struct {
			Node struct {
				Typename    githubv4.String `graphql:"__typename"`
				PullRequest prFragment      `graphql:"... on PullRequest"`
				Issue       issueFragment   `graphql:"... on Issue"`
			}
		}
		PageInfo pageInfo
	} `graphql:"search(query: $query, type: ISSUE, first: $first, after: $cursor)"`
}

type prFragment struct {
	Number    githubv4.Int
	Title     githubv4.String
	State     githubv4.String
	URL       githubv4.String
	CreatedAt githubv4.DateTime
	UpdatedAt githubv4.DateTime
	Author    struct {
		Login githubv4.String
	}
	Comments struct {
		Nodes []commentNode
	} `graphql:"comments(first: 100)"`
	Reviews struct {
		Nodes []reviewNode
	} `graphql:"reviews(first: 100)"`
}

type issueFragment struct {
	Number    githubv4.Int
	Title     githubv4.String
	State     githubv4.String
	URL       githubv4.String
	CreatedAt githubv4.DateTime
	UpdatedAt githubv4.DateTime
	Author    struct {
		Login githubv4.String
	}
	Comments struct {
		Nodes []commentNode
	} `graphql:"comments(first: 100)"`
}

type commentNode struct {
	Author struct {
		Login githubv4.String
	}
	CreatedAt githubv4.DateTime
}

type reviewNode struct {
	Author struct {
		Login githubv4.String
	}
	State     githubv4.String
	CreatedAt githubv4.DateTime
}

type pageInfo struct {
	HasNextPage bool
	EndCursor   githubv4.String
}

type repositoryQuery struct {
	Repository struct {
		Description    githubv4.String
		URL            githubv4.String
		IsPrivate      githubv4.Boolean
		IsArchived     githubv4.Boolean
		StargazerCount githubv4.Int
		PullRequests   struct {
			TotalCount githubv4.Int
		} `graphql:"pullRequests"`
		Issues struct {
			TotalCount githubv4.Int
		}
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// Conversion helpers

func convertComments(nodes []commentNode) []Comment {
	comments := make([]Comment, 0, len(nodes))
	for _, c := range nodes {
		comments = append(comments, Comment{
			Author:    string(c.Author.Login),
			CreatedAt: c.CreatedAt.Time,
		})
	}
	return comments
}

func convertPullRequest(pr prFragment) *Activity {
	reviews := make([]Review, 0, len(pr.Reviews.Nodes))
	for _, r := range pr.Reviews.Nodes {
		reviews = append(reviews, Review{
			Author:    string(r.Author.Login),
			State:     string(r.State),
			CreatedAt: r.CreatedAt.Time,
		})
	}

	return &Activity{
		Number:    int(pr.Number),
		Title:     string(pr.Title),
		Author:    string(pr.Author.Login),
		State:     string(pr.State),
		URL:       string(pr.URL),
		IsPR:      true,
		CreatedAt: pr.CreatedAt.Time,
		UpdatedAt: pr.UpdatedAt.Time,
		Comments:  convertComments(pr.Comments.Nodes),
		Reviews:   reviews,
	}
}

func convertIssue(issue issueFragment) *Activity {
	return &Activity{
		Number:    int(issue.Number),
		Title:     string(issue.Title),
		Author:    string(issue.Author.Login),
		State:     string(issue.State),
		URL:       string(issue.URL),
		CreatedAt: issue.CreatedAt.Time,
		UpdatedAt: issue.UpdatedAt.Time,
		Comments:  convertComments(issue.Comments.Nodes),
	}
}
