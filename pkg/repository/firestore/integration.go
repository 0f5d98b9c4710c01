package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type integrationRepository struct {
	collections
}

var _ interfaces.IntegrationRepository = &integrationRepository{}

type integrationDoc struct {
	ID          string         `firestore:"id"`
	Name        string         `firestore:"name"`
	ServiceType string         `firestore:"service_type"`
	Status      string         `firestore:"status"`
	TeamID      string         `firestore:"team_id"`
	Metadata    map[string]any `firestore:"metadata"`
	CreatedAt   time.Time      `firestore:"created_at"`
	UpdatedAt   time.Time      `firestore:"updated_at"`
}

func integrationToDoc(i *model.Integration) *integrationDoc {
	return &integrationDoc{
		ID:          string(i.ID),
		Name:        i.Name,
		ServiceType: string(i.ServiceType),
		Status:      string(i.Status.Normalize()),
		TeamID:      string(i.TeamID),
		Metadata:    i.Metadata,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

func integrationFromDoc(doc *integrationDoc) *model.Integration {
	return &model.Integration{
		ID:          model.IntegrationID(doc.ID),
		Name:        doc.Name,
		ServiceType: types.ServiceType(doc.ServiceType),
		Status:      types.IntegrationStatus(doc.Status),
		TeamID:      types.TeamID(doc.TeamID),
		Metadata:    doc.Metadata,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func (r *integrationRepository) Put(ctx context.Context, integration *model.Integration) (*model.Integration, error) {
	if err := integration.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid integration")
	}

	ref := r.collection(integrationsCollection).Doc(string(integration.ID))
	stored := integration.Clone()

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now().UTC()
		stored.CreatedAt = now
		stored.UpdatedAt = now

		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to get integration")
		}
		if err == nil {
			var existing integrationDoc
			if err := snap.DataTo(&existing); err != nil {
				return goerr.Wrap(err, "failed to unmarshal integration")
			}
			stored.CreatedAt = existing.CreatedAt
		}

		return tx.Set(ref, integrationToDoc(stored))
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to put integration", goerr.V("id", integration.ID))
	}

	stored.Status = stored.Status.Normalize()
	return stored, nil
}

func (r *integrationRepository) Get(ctx context.Context, id model.IntegrationID) (*model.Integration, error) {
	snap, err := r.collection(integrationsCollection).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrIntegrationNotFound, "integration not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get integration", goerr.V("id", id))
	}

	var doc integrationDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal integration", goerr.V("id", id))
	}
	return integrationFromDoc(&doc), nil
}

func (r *integrationRepository) List(ctx context.Context) ([]*model.Integration, error) {
	iter := r.collection(integrationsCollection).OrderBy("id", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var result []*model.Integration
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate integrations")
		}

		var doc integrationDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal integration", goerr.V("docID", snap.Ref.ID))
		}
		result = append(result, integrationFromDoc(&doc))
	}
	return result, nil
}
