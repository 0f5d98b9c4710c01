package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
)

const (
	integrationsCollection = "integrations"
	resourcesCollection    = "resources"
	syncStatusCollection   = "sync_status"
	teamsCollection        = "teams"
	reportsCollection      = "reports"

	// Firestore batch operation limits
	// Reference: https://cloud.google.com/firestore/docs/query-data/get-data#go
	firestoreGetAllLimit = 30 // Maximum document references per GetAll
)

type Firestore struct {
	client           *firestore.Client
	databaseID       string
	collectionPrefix string

	integration *integrationRepository
	resource    *resourceRepository
	syncStatus  *syncStatusRepository
	report      *reportRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prepends prefix to every top level collection name
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.collectionPrefix = prefix
	}
}

// WithDatabaseID selects a named database instead of "(default)"
func WithDatabaseID(databaseID string) Option {
	return func(f *Firestore) {
		f.databaseID = databaseID
	}
}

func New(ctx context.Context, projectID string, opts ...Option) (*Firestore, error) {
	f := &Firestore{}
	for _, opt := range opts {
		opt(f)
	}

	var client *firestore.Client
	var err error
	if f.databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, f.databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", f.databaseID))
	}

	c := collections{client: client, prefix: f.collectionPrefix}
	f.client = client
	f.integration = &integrationRepository{collections: c}
	f.resource = &resourceRepository{collections: c}
	f.syncStatus = &syncStatusRepository{collections: c}
	f.report = &reportRepository{collections: c}

	return f, nil
}

func (f *Firestore) Integration() interfaces.IntegrationRepository {
	return f.integration
}

func (f *Firestore) Resource() interfaces.ResourceRepository {
	return f.resource
}

func (f *Firestore) SyncStatus() interfaces.SyncStatusRepository {
	return f.syncStatus
}

func (f *Firestore) Report() interfaces.ReportRepository {
	return f.report
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// collections resolves top level collection names with the optional prefix
type collections struct {
	client *firestore.Client
	prefix string
}

func (c collections) collection(name string) *firestore.CollectionRef {
	if c.prefix != "" {
		return c.client.Collection(c.prefix + "_" + name)
	}
	return c.client.Collection(name)
}
