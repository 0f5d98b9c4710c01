package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

func newPendingReport(teamID types.TeamID, ids ...model.ResourceID) *model.TeamReport {
	analyses := make([]model.ResourceAnalysis, len(ids))
	for i, id := range ids {
		analyses[i] = model.ResourceAnalysis{
			ResourceID:   id,
			ResourceName: "resource " + string(id),
			ResourceType: types.ResourceTypeChannel,
			Status:       types.AnalysisStatusPending,
		}
	}
	return &model.TeamReport{
		TeamID:      teamID,
		Title:       "Q2 activity",
		ResourceIDs: ids,
		StartDate:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Analyses:    analyses,
	}
}

func runReportRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Create assigns ID and Get returns it", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Report().Create(ctx, newPendingReport("platform", "r1", "r2"))
		gt.NoError(t, err).Required()
		gt.String(t, string(created.ID)).NotEqual("")
		gt.Bool(t, created.CreatedAt.IsZero()).False()

		got, err := repo.Report().Get(ctx, "platform", created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Title).Equal("Q2 activity")
		gt.Array(t, got.ResourceIDs).Equal([]model.ResourceID{"r1", "r2"})
		gt.Array(t, got.Analyses).Length(2)
		gt.Value(t, got.Status()).Equal(types.AnalysisStatusPending)
		gt.Bool(t, got.StartDate.Equal(created.StartDate)).True()
	})

	t.Run("Create rejects a report without resources", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Report().Create(context.Background(), newPendingReport("platform"))
		gt.Value(t, err).NotNil()
	})

	t.Run("Get is scoped by team", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Report().Create(ctx, newPendingReport("platform", "r1"))
		gt.NoError(t, err).Required()

		_, err = repo.Report().Get(ctx, "security", created.ID)
		gt.Error(t, err).Is(model.ErrReportNotFound)
	})

	t.Run("UpdateAnalysis replaces one analysis", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Report().Create(ctx, newPendingReport("platform", "r1", "r2"))
		gt.NoError(t, err).Required()

		analyzedAt := time.Now().UTC().Truncate(time.Millisecond)
		gt.NoError(t, repo.Report().UpdateAnalysis(ctx, "platform", created.ID, model.ResourceAnalysis{
			ResourceID:   "r1",
			ResourceName: "resource r1",
			ResourceType: types.ResourceTypeChannel,
			Status:       types.AnalysisStatusCompleted,
			Summary:      "10 messages from 2 contributors",
			Contributors: []model.Contributor{{ExternalID: "U1", Name: "alice", Contributions: 7}},
			Highlights:   []string{"Thread with 4 replies: launch"},
			AnalyzedAt:   &analyzedAt,
		})).Required()

		got, err := repo.Report().Get(ctx, "platform", created.ID)
		gt.NoError(t, err).Required()

		done, total := got.Progress()
		gt.Number(t, done).Equal(1)
		gt.Number(t, total).Equal(2)

		a, ok := got.Analysis("r1")
		gt.Bool(t, ok).True()
		gt.Value(t, a.Status).Equal(types.AnalysisStatusCompleted)
		gt.Array(t, a.Contributors).Length(1)
		gt.Number(t, a.Contributors[0].Contributions).Equal(7)
		gt.Array(t, a.Highlights).Equal([]string{"Thread with 4 replies: launch"})

		b, ok := got.Analysis("r2")
		gt.Bool(t, ok).True()
		gt.Value(t, b.Status).Equal(types.AnalysisStatusPending)
	})

	t.Run("UpdateAnalysis fails for a resource outside the report", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Report().Create(ctx, newPendingReport("platform", "r1"))
		gt.NoError(t, err).Required()

		err = repo.Report().UpdateAnalysis(ctx, "platform", created.ID, model.ResourceAnalysis{
			ResourceID: "r9",
			Status:     types.AnalysisStatusCompleted,
		})
		gt.Error(t, err).Is(model.ErrResourceNotFound)
	})

	t.Run("Concurrent UpdateAnalysis keeps every update", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ids := []model.ResourceID{"r1", "r2", "r3", "r4"}

		created, err := repo.Report().Create(ctx, newPendingReport("platform", ids...))
		gt.NoError(t, err).Required()

		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				gt.NoError(t, repo.Report().UpdateAnalysis(ctx, "platform", created.ID, model.ResourceAnalysis{
					ResourceID: id,
					Status:     types.AnalysisStatusCompleted,
				}))
			}()
		}
		wg.Wait()

		got, err := repo.Report().Get(ctx, "platform", created.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, got.IsRunning()).False()
		gt.Value(t, got.Status()).Equal(types.AnalysisStatusCompleted)
	})

	t.Run("List returns newest first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		team := types.TeamID("list-team")

		older := newPendingReport(team, "r1")
		older.CreatedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
		_, err := repo.Report().Create(ctx, older)
		gt.NoError(t, err).Required()

		newer, err := repo.Report().Create(ctx, newPendingReport(team, "r2"))
		gt.NoError(t, err).Required()

		list, err := repo.Report().List(ctx, team)
		gt.NoError(t, err).Required()
		gt.Array(t, list).Length(2)
		gt.Value(t, list[0].ID).Equal(newer.ID)
	})
}
