package firestore

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type syncStatusRepository struct {
	collections
}

var _ interfaces.SyncStatusRepository = &syncStatusRepository{}

type syncStatusDoc struct {
	IsSyncing       bool       `firestore:"is_syncing"`
	ChannelCount    int        `firestore:"channel_count"`
	LastChannelSync *time.Time `firestore:"last_channel_sync"`
	LastUserSync    *time.Time `firestore:"last_user_sync"`
	LastAttempt     *time.Time `firestore:"last_attempt"`
	LastError       string     `firestore:"last_error"`
}

// Get returns a zero status if none was saved yet
func (r *syncStatusRepository) Get(ctx context.Context, integrationID model.IntegrationID) (*model.SyncStatus, error) {
	snap, err := r.collection(syncStatusCollection).Doc(string(integrationID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &model.SyncStatus{}, nil
		}
		return nil, goerr.Wrap(err, "failed to get sync status", goerr.V("integration_id", integrationID))
	}

	var doc syncStatusDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal sync status", goerr.V("integration_id", integrationID))
	}

	return &model.SyncStatus{
		IsSyncing:       doc.IsSyncing,
		ChannelCount:    doc.ChannelCount,
		LastChannelSync: doc.LastChannelSync,
		LastUserSync:    doc.LastUserSync,
		LastAttempt:     doc.LastAttempt,
		LastError:       doc.LastError,
	}, nil
}

func (r *syncStatusRepository) Save(ctx context.Context, integrationID model.IntegrationID, s *model.SyncStatus) error {
	doc := &syncStatusDoc{
		IsSyncing:       s.IsSyncing,
		ChannelCount:    s.ChannelCount,
		LastChannelSync: s.LastChannelSync,
		LastUserSync:    s.LastUserSync,
		LastAttempt:     s.LastAttempt,
		LastError:       s.LastError,
	}
	if _, err := r.collection(syncStatusCollection).Doc(string(integrationID)).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to save sync status", goerr.V("integration_id", integrationID))
	}
	return nil
}
