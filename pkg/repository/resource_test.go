package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

func runResourceRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Replace and List ordered by name", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := newIntegrationID(t)

		gt.NoError(t, repo.Resource().Replace(ctx, id, types.ResourceTypeChannel, []*model.Resource{
			newChannel(id, "C2", "random"),
			newChannel(id, "C1", "general"),
		})).Required()

		now := time.Now().UTC()
		gt.NoError(t, repo.Resource().Replace(ctx, id, types.ResourceTypeUser, []*model.Resource{
			{
				ID:           model.NewResourceID(id, types.ResourceTypeUser, "U1"),
				ExternalID:   "U1",
				Name:         "alice",
				LastSyncedAt: &now,
			},
		})).Required()

		all, err := repo.Resource().List(ctx, id)
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(3)
		gt.Value(t, all[0].Name).Equal("alice")
		gt.Value(t, all[0].ResourceType).Equal(types.ResourceTypeUser)
		gt.Value(t, all[0].IntegrationID).Equal(id)

		channels, err := repo.Resource().List(ctx, id, types.ResourceTypeChannel)
		gt.NoError(t, err).Required()
		gt.Array(t, channels).Length(2)
		gt.Value(t, channels[0].Name).Equal("general")
		gt.Value(t, channels[1].Name).Equal("random")
		gt.Value(t, channels[0].Metadata[model.MetadataKeyTopic]).Equal("topic of general")
	})

	t.Run("Replace removes resources that disappeared", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := newIntegrationID(t)

		gt.NoError(t, repo.Resource().Replace(ctx, id, types.ResourceTypeChannel, []*model.Resource{
			newChannel(id, "C1", "general"),
			newChannel(id, "C2", "random"),
		})).Required()
		gt.NoError(t, repo.Resource().Replace(ctx, id, types.ResourceTypeChannel, []*model.Resource{
			newChannel(id, "C2", "random-renamed"),
		})).Required()

		channels, err := repo.Resource().List(ctx, id, types.ResourceTypeChannel)
		gt.NoError(t, err).Required()
		gt.Array(t, channels).Length(1)
		gt.Value(t, channels[0].Name).Equal("random-renamed")
	})

	t.Run("GetByIDs skips missing IDs", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := newIntegrationID(t)
		general := newChannel(id, "C1", "general")

		gt.NoError(t, repo.Resource().Replace(ctx, id, types.ResourceTypeChannel, []*model.Resource{general})).Required()

		got, err := repo.Resource().GetByIDs(ctx, []model.ResourceID{general.ID, "missing"})
		gt.NoError(t, err).Required()
		gt.Number(t, len(got)).Equal(1)
		gt.Value(t, got[general.ID].Name).Equal("general")
	})

	t.Run("SetSelected and ListSelected", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := newIntegrationID(t)
		a := newChannel(id, "CA", "a")
		b := newChannel(id, "CB", "b")
		c := newChannel(id, "CC", "c")

		gt.NoError(t, repo.Resource().Replace(ctx, id, types.ResourceTypeChannel, []*model.Resource{a, b, c})).Required()

		selected, err := repo.Resource().ListSelected(ctx, id)
		gt.NoError(t, err).Required()
		gt.Array(t, selected).Length(0)

		gt.NoError(t, repo.Resource().SetSelected(ctx, id, []model.ResourceID{a.ID, b.ID}, true)).Required()
		gt.NoError(t, repo.Resource().SetSelected(ctx, id, []model.ResourceID{a.ID}, false)).Required()

		selected, err = repo.Resource().ListSelected(ctx, id)
		gt.NoError(t, err).Required()
		gt.Array(t, selected).Equal([]model.ResourceID{b.ID})

		got, err := repo.Resource().GetByIDs(ctx, []model.ResourceID{a.ID, b.ID})
		gt.NoError(t, err).Required()
		gt.Value(t, got[a.ID].IsSelectedForAnalysis).NotNil()
		gt.Bool(t, *got[a.ID].IsSelectedForAnalysis).False()
		gt.Bool(t, *got[b.ID].IsSelectedForAnalysis).True()
	})

	t.Run("SetSelected with unknown ID writes nothing", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := newIntegrationID(t)
		a := newChannel(id, "CA", "a")

		gt.NoError(t, repo.Resource().Replace(ctx, id, types.ResourceTypeChannel, []*model.Resource{a})).Required()

		err := repo.Resource().SetSelected(ctx, id, []model.ResourceID{a.ID, "unknown"}, true)
		gt.Error(t, err).Is(model.ErrResourceNotFound)

		selected, err := repo.Resource().ListSelected(ctx, id)
		gt.NoError(t, err).Required()
		gt.Array(t, selected).Length(0)
	})

	t.Run("SetSelected rejects resources of another integration", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := newIntegrationID(t)
		other := model.IntegrationID(string(id) + "-other")
		foreign := newChannel(other, "CX", "x")

		gt.NoError(t, repo.Resource().Replace(ctx, other, types.ResourceTypeChannel, []*model.Resource{foreign})).Required()

		err := repo.Resource().SetSelected(ctx, id, []model.ResourceID{foreign.ID}, true)
		gt.Error(t, err).Is(model.ErrResourceNotFound)
	})

	t.Run("Replace takes the given selection flag for new resources", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := newIntegrationID(t)
		a := newChannel(id, "CA", "a")
		a.IsSelectedForAnalysis = model.Bool(true)

		gt.NoError(t, repo.Resource().Replace(ctx, id, types.ResourceTypeChannel, []*model.Resource{a})).Required()

		selected, err := repo.Resource().ListSelected(ctx, id)
		gt.NoError(t, err).Required()
		gt.Array(t, selected).Equal([]model.ResourceID{a.ID})
	})

	t.Run("Replace keeps the stored selection flag of existing resources", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := newIntegrationID(t)
		a := newChannel(id, "CA", "a")
		b := newChannel(id, "CB", "b")

		gt.NoError(t, repo.Resource().Replace(ctx, id, types.ResourceTypeChannel, []*model.Resource{a, b})).Required()
		gt.NoError(t, repo.Resource().SetSelected(ctx, id, []model.ResourceID{a.ID}, true)).Required()

		// a sync that read the flags before the selection changed
		staleA := newChannel(id, "CA", "a-renamed")
		staleA.IsSelectedForAnalysis = model.Bool(false)
		staleB := newChannel(id, "CB", "b")
		staleB.IsSelectedForAnalysis = model.Bool(true)
		gt.NoError(t, repo.Resource().Replace(ctx, id, types.ResourceTypeChannel, []*model.Resource{staleA, staleB})).Required()

		selected, err := repo.Resource().ListSelected(ctx, id)
		gt.NoError(t, err).Required()
		gt.Array(t, selected).Equal([]model.ResourceID{a.ID})

		got, err := repo.Resource().GetByIDs(ctx, []model.ResourceID{a.ID})
		gt.NoError(t, err).Required()
		gt.Value(t, got[a.ID].Name).Equal("a-renamed")
	})
}
