package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/service/github"
	"golang.org/x/sync/errgroup"
)

const (
	githubFetchConcurrency = 4
	maxGitHubHighlights    = 5
)

// GitHubSource syncs the repositories listed in the integration metadata
type GitHubSource struct {
	svc github.Service
}

// NewGitHubSource creates a Source backed by the GitHub GraphQL API
func NewGitHubSource(svc github.Service) *GitHubSource {
	return &GitHubSource{svc: svc}
}

func (s *GitHubSource) ResourceTypes() []types.ResourceType {
	return []types.ResourceType{types.ResourceTypeRepository}
}

func (s *GitHubSource) FetchResources(ctx context.Context, integration *model.Integration, resourceType types.ResourceType) ([]*model.Resource, error) {
	if resourceType != types.ResourceTypeRepository {
		return nil, goerr.Wrap(ErrUnsupportedResource, "GitHub cannot sync resource type",
			goerr.V("resource_type", resourceType))
	}

	refs := integration.MetadataStrings(model.MetadataKeyRepositories)
	resources := make([]*model.Resource, len(refs))
	now := time.Now().UTC()

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(githubFetchConcurrency)

	for i, ref := range refs {
		eg.Go(func() error {
			owner, name, err := model.ParseGitHubRepo(ref)
			if err != nil {
				return goerr.Wrap(err, "invalid repository in integration metadata",
					goerr.V("integration_id", integration.ID), goerr.V("repository", ref))
			}

			repo, err := s.svc.GetRepository(ctx, owner, name)
			if err != nil {
				return err
			}

			resources[i] = newResource(integration, resourceType, repo.FullName, repo.FullName, map[string]any{
				model.MetadataKeyURL:       repo.URL,
				model.MetadataKeyIsPrivate: repo.IsPrivate,
				"description":              repo.Description,
				"is_archived":              repo.IsArchived,
				"stargazers":               repo.StargazerCount,
				"pull_requests":            repo.PullRequestCount,
				"issues":                   repo.IssueCount,
			}, now)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, goerr.Wrap(err, "failed to fetch GitHub repositories", goerr.V("integration_id", integration.ID))
	}
	return resources, nil
}

// Analyze counts authors, commenters and reviewers of issues and pull requests in range
func (s *GitHubSource) Analyze(ctx context.Context, integration *model.Integration, resource *model.Resource, start, end time.Time) (*model.ResourceAnalysis, error) {
	if resource.ResourceType != types.ResourceTypeRepository {
		return nil, goerr.Wrap(ErrUnsupportedResource, "only repositories can be analyzed",
			goerr.V("resource_id", resource.ID), goerr.V("resource_type", resource.ResourceType))
	}

	owner, name, err := model.ParseGitHubRepo(resource.ExternalID)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid repository resource", goerr.V("resource_id", resource.ID))
	}

	counter := newContributionCounter()
	var prs, issues, discussions int
	var highlights []string

	for activity, err := range s.svc.FetchActivities(ctx, owner, name, start, end) {
		if err != nil {
			return nil, goerr.Wrap(err, "failed to fetch repository activities", goerr.V("resource_id", resource.ID))
		}

		if inRange(activity.CreatedAt, start, end) {
			counter.add(activity.Author, activity.Author)
			if activity.IsPR {
				prs++
			} else {
				issues++
			}
		}
		for _, c := range activity.Comments {
			if inRange(c.CreatedAt, start, end) {
				counter.add(c.Author, c.Author)
				discussions++
			}
		}
		for _, r := range activity.Reviews {
			if inRange(r.CreatedAt, start, end) {
				counter.add(r.Author, r.Author)
				discussions++
			}
		}

		if activity.IsPR && activity.State == "MERGED" && len(highlights) < maxGitHubHighlights {
			highlights = append(highlights, fmt.Sprintf("#%d %s", activity.Number, activity.Title))
		}
	}

	return &model.ResourceAnalysis{
		Summary: fmt.Sprintf("%d pull requests, %d issues, %d comments and reviews",
			prs, issues, discussions),
		Contributors: counter.contributors(),
		Highlights:   highlights,
	}, nil
}
