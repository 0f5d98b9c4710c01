package github_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/contribview/pkg/service/github"
)

// newGraphQLServer responds to every GraphQL request with the result of respond
func newGraphQLServer(t *testing.T, respond func(query string, variables map[string]any) any) github.Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		gt.NoError(t, err)

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		gt.NoError(t, json.Unmarshal(body, &req))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": respond(req.Query, req.Variables)})
	}))
	t.Cleanup(srv.Close)

	return github.NewWithHTTPClient(srv.URL, srv.Client())
}

func TestGetRepository(t *testing.T) {
	svc := newGraphQLServer(t, func(query string, variables map[string]any) any {
		gt.Value(t, variables["owner"]).Equal("octo")
		gt.Value(t, variables["name"]).Equal("widgets")
		return map[string]any{
			"repository": map[string]any{
				"description":    "Widget factory",
				"url":            "https://github.com/octo/widgets",
				"isPrivate":      true,
				"isArchived":     false,
				"stargazerCount": 42,
				"pullRequests":   map[string]any{"totalCount": 7},
				"issues":         map[string]any{"totalCount": 3},
			},
		}
	})

	repo, err := svc.GetRepository(context.Background(), "octo", "widgets")
	gt.NoError(t, err).Required()

	gt.Value(t, repo.FullName).Equal("octo/widgets")
	gt.Value(t, repo.Description).Equal("Widget factory")
	gt.B(t, repo.IsPrivate).True()
	gt.Number(t, repo.StargazerCount).Equal(42)
	gt.Number(t, repo.PullRequestCount).Equal(7)
	gt.Number(t, repo.IssueCount).Equal(3)
}

func TestFetchActivities(t *testing.T) {
	var queries []string
	svc := newGraphQLServer(t, func(query string, variables map[string]any) any {
		queries = append(queries, variables["query"].(string))

		if variables["cursor"] == nil {
			return map[string]any{
				"search": map[string]any{
					"edges": []map[string]any{
						{"node": map[string]any{
							"__typename": "PullRequest",
							"number":     12,
							"title":      "Add gears",
							"state":      "MERGED",
							"url":        "https://github.com/octo/widgets/pull/12",
							"createdAt":  "2024-05-02T10:00:00Z",
							"updatedAt":  "2024-05-03T10:00:00Z",
							"author":     map[string]any{"login": "alice"},
							"comments": map[string]any{"nodes": []map[string]any{
								{"author": map[string]any{"login": "bob"}, "createdAt": "2024-05-02T11:00:00Z"},
							}},
							"reviews": map[string]any{"nodes": []map[string]any{
								{"author": map[string]any{"login": "carol"}, "state": "APPROVED", "createdAt": "2024-05-02T12:00:00Z"},
							}},
						}},
					},
					"pageInfo": map[string]any{"hasNextPage": true, "endCursor": "c1"},
				},
			}
		}
		return map[string]any{
			"search": map[string]any{
				"edges": []map[string]any{
					{"node": map[string]any{
						"__typename": "Issue",
						"number":     13,
						"title":      "Gears squeak",
						"state":      "OPEN",
						"url":        "https://github.com/octo/widgets/issues/13",
						"createdAt":  "2024-05-04T10:00:00Z",
						"updatedAt":  "2024-05-04T10:00:00Z",
						"author":     map[string]any{"login": "dave"},
						"comments":   map[string]any{"nodes": []map[string]any{}},
					}},
				},
				"pageInfo": map[string]any{"hasNextPage": false, "endCursor": ""},
			},
		}
	})

	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	var activities []*github.Activity
	for a, err := range svc.FetchActivities(context.Background(), "octo", "widgets", since, until) {
		gt.NoError(t, err).Required()
		activities = append(activities, a)
	}

	gt.Array(t, activities).Length(2)
	gt.B(t, activities[0].IsPR).True()
	gt.Value(t, activities[0].Author).Equal("alice")
	gt.Array(t, activities[0].Comments).Length(1)
	gt.Value(t, activities[0].Reviews[0].Author).Equal("carol")
	gt.B(t, activities[1].IsPR).False()
	gt.Number(t, activities[1].Number).Equal(13)

	gt.Array(t, queries).Length(2)
	gt.String(t, queries[0]).Contains("repo:octo/widgets")
	gt.String(t, queries[0]).Contains("updated:2024-05-01T00:00:00Z..2024-06-01T00:00:00Z")
}

func TestFetchActivities_StopsOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	svc := github.NewWithHTTPClient(srv.URL, srv.Client())

	count := 0
	for a, err := range svc.FetchActivities(context.Background(), "octo", "widgets", time.Now().Add(-time.Hour), time.Now()) {
		count++
		gt.Value(t, a).Nil()
		gt.Value(t, err).NotNil()
	}
	gt.Number(t, count).Equal(1)
}

func TestIntegration(t *testing.T) {
	appIDStr := os.Getenv("TEST_GITHUB_APP_ID")
	installationIDStr := os.Getenv("TEST_GITHUB_APP_INSTALLATION_ID")
	privateKey := os.Getenv("TEST_GITHUB_APP_PRIVATE_KEY")
	repository := os.Getenv("TEST_GITHUB_REPOSITORY")
	if appIDStr == "" || installationIDStr == "" || privateKey == "" || repository == "" {
		t.Skip("TEST_GITHUB_APP_ID, TEST_GITHUB_APP_INSTALLATION_ID, TEST_GITHUB_APP_PRIVATE_KEY and TEST_GITHUB_REPOSITORY are required")
	}

	appID, err := strconv.ParseInt(appIDStr, 10, 64)
	gt.NoError(t, err).Required()
	installationID, err := strconv.ParseInt(installationIDStr, 10, 64)
	gt.NoError(t, err).Required()

	svc, err := github.New(appID, installationID, privateKey)
	gt.NoError(t, err).Required()

	owner, repo, _ := strings.Cut(repository, "/")
	ctx := context.Background()

	info, err := svc.GetRepository(ctx, owner, repo)
	gt.NoError(t, err).Required()
	t.Logf("Repository: %s (PRs=%d, Issues=%d)", info.FullName, info.PullRequestCount, info.IssueCount)

	count := 0
	for a, err := range svc.FetchActivities(ctx, owner, repo, time.Now().Add(-30*24*time.Hour), time.Now()) {
		gt.NoError(t, err).Required()
		count++
		t.Logf("#%d %s by %s", a.Number, a.Title, a.Author)
	}
	t.Logf("Activities in the last 30 days: %d", count)
}
