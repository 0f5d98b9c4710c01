package firestore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"google.golang.org/api/iterator"
)

type resourceRepository struct {
	collections
}

var _ interfaces.ResourceRepository = &resourceRepository{}

type resourceDoc struct {
	ID                    string         `firestore:"id"`
	IntegrationID         string         `firestore:"integration_id"`
	ExternalID            string         `firestore:"external_id"`
	Name                  string         `firestore:"name"`
	ResourceType          string         `firestore:"resource_type"`
	Metadata              map[string]any `firestore:"metadata"`
	LastSyncedAt          *time.Time     `firestore:"last_synced_at"`
	IsSelectedForAnalysis bool           `firestore:"is_selected_for_analysis"`
}

func resourceToDoc(r *model.Resource) *resourceDoc {
	selected, _ := model.ResolveSelected(r)
	return &resourceDoc{
		ID:                    string(r.ID),
		IntegrationID:         string(r.IntegrationID),
		ExternalID:            r.ExternalID,
		Name:                  r.Name,
		ResourceType:          string(r.ResourceType),
		Metadata:              r.Metadata,
		LastSyncedAt:          r.LastSyncedAt,
		IsSelectedForAnalysis: selected,
	}
}

func resourceFromDoc(doc *resourceDoc) *model.Resource {
	return &model.Resource{
		ID:                    model.ResourceID(doc.ID),
		IntegrationID:         model.IntegrationID(doc.IntegrationID),
		ExternalID:            doc.ExternalID,
		Name:                  doc.Name,
		ResourceType:          types.ResourceType(doc.ResourceType),
		Metadata:              doc.Metadata,
		LastSyncedAt:          doc.LastSyncedAt,
		IsSelectedForAnalysis: model.Bool(doc.IsSelectedForAnalysis),
	}
}

func (r *resourceRepository) query(ctx context.Context, q firestore.Query) ([]*model.Resource, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var result []*model.Resource
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate resources")
		}

		var doc resourceDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal resource", goerr.V("docID", snap.Ref.ID))
		}
		result = append(result, resourceFromDoc(&doc))
	}
	return result, nil
}

func (r *resourceRepository) List(ctx context.Context, integrationID model.IntegrationID, resourceTypes ...types.ResourceType) ([]*model.Resource, error) {
	q := r.collection(resourcesCollection).Where("integration_id", "==", string(integrationID))
	if len(resourceTypes) == 1 {
		q = q.Where("resource_type", "==", string(resourceTypes[0]))
	}

	all, err := r.query(ctx, q)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list resources", goerr.V("integration_id", integrationID))
	}

	result := make([]*model.Resource, 0, len(all))
	for _, res := range all {
		if len(resourceTypes) > 0 && !slices.Contains(resourceTypes, res.ResourceType) {
			continue
		}
		result = append(result, res)
	}
	slices.SortFunc(result, func(a, b *model.Resource) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

// GetByIDs splits ids into batches of firestoreGetAllLimit
func (r *resourceRepository) GetByIDs(ctx context.Context, ids []model.ResourceID) (map[model.ResourceID]*model.Resource, error) {
	result := make(map[model.ResourceID]*model.Resource, len(ids))

	for batch := range slices.Chunk(ids, firestoreGetAllLimit) {
		refs := make([]*firestore.DocumentRef, len(batch))
		for i, id := range batch {
			refs[i] = r.collection(resourcesCollection).Doc(string(id))
		}

		snaps, err := r.client.GetAll(ctx, refs)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to batch get resources", goerr.V("count", len(batch)))
		}

		for i, snap := range snaps {
			if !snap.Exists() {
				// Missing resources are not included in the result map (not an error)
				continue
			}

			var doc resourceDoc
			if err := snap.DataTo(&doc); err != nil {
				return nil, goerr.Wrap(err, "failed to unmarshal resource", goerr.V("id", batch[i]))
			}
			result[batch[i]] = resourceFromDoc(&doc)
		}
	}

	return result, nil
}

// resourceSyncFields are written by Replace on documents that already exist.
// is_selected_for_analysis is left out so a concurrent SetSelected is never overwritten.
var resourceSyncFields = []firestore.FieldPath{
	{"id"},
	{"integration_id"},
	{"external_id"},
	{"name"},
	{"resource_type"},
	{"metadata"},
	{"last_synced_at"},
}

// Replace overwrites every given resource and deletes stored resources of the type that
// are no longer present. Documents already stored keep their selection flag.
func (r *resourceRepository) Replace(ctx context.Context, integrationID model.IntegrationID, resourceType types.ResourceType, resources []*model.Resource) error {
	existing, err := r.query(ctx, r.collection(resourcesCollection).
		Where("integration_id", "==", string(integrationID)).
		Where("resource_type", "==", string(resourceType)))
	if err != nil {
		return goerr.Wrap(err, "failed to list existing resources",
			goerr.V("integration_id", integrationID), goerr.V("resource_type", resourceType))
	}

	keep := make(map[model.ResourceID]bool, len(resources))
	for _, res := range resources {
		keep[res.ID] = true
	}
	stored := make(map[model.ResourceID]bool, len(existing))
	for _, res := range existing {
		stored[res.ID] = true
	}

	// Use BulkWriter which automatically handles batching
	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	for _, res := range existing {
		if keep[res.ID] {
			continue
		}
		if _, err := bulkWriter.Delete(r.collection(resourcesCollection).Doc(string(res.ID))); err != nil {
			return goerr.Wrap(err, "failed to add Delete operation to bulk writer", goerr.V("resource_id", res.ID))
		}
	}

	for _, res := range resources {
		doc := res.Clone()
		doc.IntegrationID = integrationID
		doc.ResourceType = resourceType

		var opts []firestore.SetOption
		if stored[doc.ID] {
			opts = append(opts, firestore.Merge(resourceSyncFields...))
		}
		if _, err := bulkWriter.Set(r.collection(resourcesCollection).Doc(string(doc.ID)), resourceToDoc(doc), opts...); err != nil {
			return goerr.Wrap(err, "failed to add Set operation to bulk writer", goerr.V("resource_id", res.ID))
		}
	}

	// Flush and wait for all operations to complete
	bulkWriter.Flush()
	return nil
}

// SetSelected runs in a transaction so that nothing is written when any ID is unknown
func (r *resourceRepository) SetSelected(ctx context.Context, integrationID model.IntegrationID, ids []model.ResourceID, selected bool) error {
	if len(ids) == 0 {
		return nil
	}

	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = r.collection(resourcesCollection).Doc(string(id))
	}

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return goerr.Wrap(err, "failed to get resources")
		}

		var missing []model.ResourceID
		for i, snap := range snaps {
			if !snap.Exists() {
				missing = append(missing, ids[i])
				continue
			}
			owner, err := snap.DataAt("integration_id")
			if err != nil || owner != string(integrationID) {
				missing = append(missing, ids[i])
			}
		}
		if len(missing) > 0 {
			return goerr.Wrap(model.ErrResourceNotFound, "unknown resources",
				goerr.V("integration_id", integrationID), goerr.V("ids", missing))
		}

		for _, ref := range refs {
			if err := tx.Update(ref, []firestore.Update{
				{Path: "is_selected_for_analysis", Value: selected},
			}); err != nil {
				return goerr.Wrap(err, "failed to update selection", goerr.V("id", ref.ID))
			}
		}
		return nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to set selection",
			goerr.V("integration_id", integrationID), goerr.V("selected", selected))
	}
	return nil
}

func (r *resourceRepository) ListSelected(ctx context.Context, integrationID model.IntegrationID) ([]model.ResourceID, error) {
	resources, err := r.query(ctx, r.collection(resourcesCollection).
		Where("integration_id", "==", string(integrationID)).
		Where("is_selected_for_analysis", "==", true))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list selected resources", goerr.V("integration_id", integrationID))
	}

	result := make([]model.ResourceID, 0, len(resources))
	for _, res := range resources {
		result = append(result, res.ID)
	}
	slices.Sort(result)
	return result, nil
}
