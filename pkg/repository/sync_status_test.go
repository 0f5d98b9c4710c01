package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
)

func runSyncStatusRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Get returns zero status before first save", func(t *testing.T) {
		repo := newRepo(t)
		status, err := repo.SyncStatus().Get(context.Background(), newIntegrationID(t))
		gt.NoError(t, err).Required()
		gt.Bool(t, status.IsSyncing).False()
		gt.Number(t, status.ChannelCount).Equal(0)
		gt.Value(t, status.LastChannelSync).Nil()
	})

	t.Run("Save then Get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := newIntegrationID(t)
		now := time.Now().UTC().Truncate(time.Millisecond)

		gt.NoError(t, repo.SyncStatus().Save(ctx, id, &model.SyncStatus{
			IsSyncing:       true,
			ChannelCount:    12,
			LastChannelSync: &now,
			LastAttempt:     &now,
			LastError:       "rate limited",
		})).Required()

		status, err := repo.SyncStatus().Get(ctx, id)
		gt.NoError(t, err).Required()
		gt.Bool(t, status.IsSyncing).True()
		gt.Number(t, status.ChannelCount).Equal(12)
		gt.Value(t, status.LastChannelSync).NotNil()
		gt.Bool(t, status.LastChannelSync.Equal(now)).True()
		gt.Value(t, status.LastUserSync).Nil()
		gt.Value(t, status.LastError).Equal("rate limited")
	})
}
