package repository_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

func runIntegrationRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Put then Get returns the integration", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := newIntegrationID(t)

		created, err := repo.Integration().Put(ctx, &model.Integration{
			ID:          id,
			Name:        "Engineering Slack",
			ServiceType: types.ServiceTypeSlack,
			TeamID:      "platform",
			Metadata:    map[string]any{model.MetadataKeyWorkspace: "acme"},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, created.Status).Equal(types.IntegrationStatusActive)
		gt.Bool(t, created.CreatedAt.IsZero()).False()

		got, err := repo.Integration().Get(ctx, id)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Name).Equal("Engineering Slack")
		gt.Value(t, got.ServiceType).Equal(types.ServiceTypeSlack)
		gt.Value(t, got.TeamID).Equal(types.TeamID("platform"))
		gt.Value(t, got.Metadata[model.MetadataKeyWorkspace]).Equal("acme")
	})

	t.Run("Put preserves CreatedAt on replace", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		integration := &model.Integration{
			ID:          newIntegrationID(t),
			Name:        "first",
			ServiceType: types.ServiceTypeGitHub,
			TeamID:      "platform",
		}

		first, err := repo.Integration().Put(ctx, integration)
		gt.NoError(t, err).Required()

		integration.Name = "second"
		second, err := repo.Integration().Put(ctx, integration)
		gt.NoError(t, err).Required()

		gt.Value(t, second.Name).Equal("second")
		gt.Bool(t, second.CreatedAt.Equal(first.CreatedAt)).True()
		gt.Bool(t, second.UpdatedAt.Before(first.UpdatedAt)).False()
	})

	t.Run("Put rejects invalid integration", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Integration().Put(context.Background(), &model.Integration{
			ID:          newIntegrationID(t),
			Name:        "bad",
			ServiceType: "mastodon",
			TeamID:      "platform",
		})
		gt.Value(t, err).NotNil()
	})

	t.Run("Get returns ErrIntegrationNotFound", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Integration().Get(context.Background(), newIntegrationID(t))
		gt.Error(t, err).Is(model.ErrIntegrationNotFound)
	})

	t.Run("List includes stored integrations", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := newIntegrationID(t)

		_, err := repo.Integration().Put(ctx, &model.Integration{
			ID:          id,
			Name:        "Docs",
			ServiceType: types.ServiceTypeNotion,
			TeamID:      "platform",
		})
		gt.NoError(t, err).Required()

		list, err := repo.Integration().List(ctx)
		gt.NoError(t, err).Required()

		found := false
		for _, i := range list {
			if i.ID == id {
				found = true
			}
		}
		gt.Bool(t, found).True()
	})
}
