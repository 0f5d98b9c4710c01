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

type reportRepository struct {
	collections
}

var _ interfaces.ReportRepository = &reportRepository{}

type reportDoc struct {
	ID          string        `firestore:"id"`
	TeamID      string        `firestore:"team_id"`
	Title       string        `firestore:"title"`
	ResourceIDs []string      `firestore:"resource_ids"`
	StartDate   time.Time     `firestore:"start_date"`
	EndDate     time.Time     `firestore:"end_date"`
	Analyses    []analysisDoc `firestore:"analyses"`
	CreatedAt   time.Time     `firestore:"created_at"`
	UpdatedAt   time.Time     `firestore:"updated_at"`
}

type analysisDoc struct {
	ResourceID   string           `firestore:"resource_id"`
	ResourceName string           `firestore:"resource_name"`
	ResourceType string           `firestore:"resource_type"`
	Status       string           `firestore:"status"`
	Summary      string           `firestore:"summary"`
	Contributors []contributorDoc `firestore:"contributors"`
	Highlights   []string         `firestore:"highlights"`
	Error        string           `firestore:"error"`
	AnalyzedAt   *time.Time       `firestore:"analyzed_at"`
}

type contributorDoc struct {
	ExternalID    string `firestore:"external_id"`
	Name          string `firestore:"name"`
	Contributions int    `firestore:"contributions"`
}

func analysisToDoc(a model.ResourceAnalysis) analysisDoc {
	contributors := make([]contributorDoc, len(a.Contributors))
	for i, c := range a.Contributors {
		contributors[i] = contributorDoc{ExternalID: c.ExternalID, Name: c.Name, Contributions: c.Contributions}
	}
	return analysisDoc{
		ResourceID:   string(a.ResourceID),
		ResourceName: a.ResourceName,
		ResourceType: string(a.ResourceType),
		Status:       string(a.Status.Normalize()),
		Summary:      a.Summary,
		Contributors: contributors,
		Highlights:   a.Highlights,
		Error:        a.Error,
		AnalyzedAt:   a.AnalyzedAt,
	}
}

func analysisFromDoc(doc analysisDoc) model.ResourceAnalysis {
	contributors := make([]model.Contributor, len(doc.Contributors))
	for i, c := range doc.Contributors {
		contributors[i] = model.Contributor{ExternalID: c.ExternalID, Name: c.Name, Contributions: c.Contributions}
	}
	return model.ResourceAnalysis{
		ResourceID:   model.ResourceID(doc.ResourceID),
		ResourceName: doc.ResourceName,
		ResourceType: types.ResourceType(doc.ResourceType),
		Status:       types.AnalysisStatus(doc.Status).Normalize(),
		Summary:      doc.Summary,
		Contributors: contributors,
		Highlights:   doc.Highlights,
		Error:        doc.Error,
		AnalyzedAt:   doc.AnalyzedAt,
	}
}

func reportToDoc(r *model.TeamReport) *reportDoc {
	doc := &reportDoc{
		ID:          string(r.ID),
		TeamID:      string(r.TeamID),
		Title:       r.Title,
		ResourceIDs: make([]string, len(r.ResourceIDs)),
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Analyses:    make([]analysisDoc, len(r.Analyses)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for i, id := range r.ResourceIDs {
		doc.ResourceIDs[i] = string(id)
	}
	for i, a := range r.Analyses {
		doc.Analyses[i] = analysisToDoc(a)
	}
	return doc
}

func reportFromDoc(doc *reportDoc) *model.TeamReport {
	r := &model.TeamReport{
		ID:          model.ReportID(doc.ID),
		TeamID:      types.TeamID(doc.TeamID),
		Title:       doc.Title,
		ResourceIDs: make([]model.ResourceID, len(doc.ResourceIDs)),
		StartDate:   doc.StartDate,
		EndDate:     doc.EndDate,
		Analyses:    make([]model.ResourceAnalysis, len(doc.Analyses)),
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	for i, id := range doc.ResourceIDs {
		r.ResourceIDs[i] = model.ResourceID(id)
	}
	for i, a := range doc.Analyses {
		r.Analyses[i] = analysisFromDoc(a)
	}
	return r
}

// reports returns teams/{teamID}/reports
func (r *reportRepository) reports(teamID types.TeamID) *firestore.CollectionRef {
	return r.collection(teamsCollection).Doc(string(teamID)).Collection(reportsCollection)
}

func (r *reportRepository) Create(ctx context.Context, report *model.TeamReport) (*model.TeamReport, error) {
	if err := report.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid report")
	}

	now := time.Now().UTC()
	created := report.Clone()
	if created.ID == "" {
		created.ID = model.NewReportID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	if created.UpdatedAt.IsZero() {
		created.UpdatedAt = now
	}

	if _, err := r.reports(created.TeamID).Doc(string(created.ID)).Create(ctx, reportToDoc(created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create report",
			goerr.V("team_id", created.TeamID), goerr.V("id", created.ID))
	}
	return created, nil
}

func (r *reportRepository) Get(ctx context.Context, teamID types.TeamID, id model.ReportID) (*model.TeamReport, error) {
	snap, err := r.reports(teamID).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrReportNotFound, "report not found",
				goerr.V("team_id", teamID), goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get report", goerr.V("team_id", teamID), goerr.V("id", id))
	}

	var doc reportDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal report", goerr.V("id", id))
	}
	return reportFromDoc(&doc), nil
}

func (r *reportRepository) List(ctx context.Context, teamID types.TeamID) ([]*model.TeamReport, error) {
	iter := r.reports(teamID).OrderBy("created_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var result []*model.TeamReport
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate reports", goerr.V("team_id", teamID))
		}

		var doc reportDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal report", goerr.V("docID", snap.Ref.ID))
		}
		result = append(result, reportFromDoc(&doc))
	}
	return result, nil
}

// UpdateAnalysis rewrites the analyses array in a transaction; concurrent updates of the same
// report are retried by Firestore instead of overwriting each other
func (r *reportRepository) UpdateAnalysis(ctx context.Context, teamID types.TeamID, id model.ReportID, analysis model.ResourceAnalysis) error {
	ref := r.reports(teamID).Doc(string(id))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(model.ErrReportNotFound, "report not found",
					goerr.V("team_id", teamID), goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to get report")
		}

		var doc reportDoc
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal report")
		}

		idx := -1
		for i, a := range doc.Analyses {
			if a.ResourceID == string(analysis.ResourceID) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return goerr.Wrap(model.ErrResourceNotFound, "resource is not part of the report",
				goerr.V("report_id", id), goerr.V("resource_id", analysis.ResourceID))
		}

		doc.Analyses[idx] = analysisToDoc(analysis)
		return tx.Update(ref, []firestore.Update{
			{Path: "analyses", Value: doc.Analyses},
			{Path: "updated_at", Value: time.Now().UTC()},
		})
	})
	if err != nil {
		return goerr.Wrap(err, "failed to update analysis",
			goerr.V("team_id", teamID), goerr.V("id", id), goerr.V("resource_id", analysis.ResourceID))
	}
	return nil
}
