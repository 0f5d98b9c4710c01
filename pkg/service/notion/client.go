package notion

import (
	"context"
	"iter"
	"net/http"
	"time"

	"github.com/jomei/notionapi"
	"github.com/m-mizutani/goerr/v2"
)

// client implements Service interface
type client struct {
	api *notionapi.Client
}

// Option is a functional option for client configuration
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient sets the HTTP client used for API calls
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// New creates a new Notion service with the provided API token
func New(token string, opts ...Option) (Service, error) {
	if token == "" {
		return nil, goerr.New("Notion API token is required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []notionapi.ClientOption{
		notionapi.WithRetry(3), // Retry up to 3 times on rate limit (HTTP 429)
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, notionapi.WithHTTPClient(o.httpClient))
	}

	return &client{
		api: notionapi.NewClient(notionapi.Token(token), clientOpts...),
	}, nil
}

// GetDatabase retrieves database metadata
func (c *client) GetDatabase(ctx context.Context, dbID string) (*Database, error) {
	db, err := c.api.Database.Get(ctx, notionapi.DatabaseID(dbID))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get database", goerr.V("dbID", dbID))
	}

	return &Database{
		ID:             db.ID.String(),
		Title:          plainText(db.Title),
		URL:            db.URL,
		CreatedTime:    time.Time(db.CreatedTime),
		LastEditedTime: time.Time(db.LastEditedTime),
	}, nil
}

// QueryUpdatedPages retrieves pages edited in the range from a database
func (c *client) QueryUpdatedPages(ctx context.Context, dbID string, since, until time.Time) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		var cursor notionapi.Cursor
		onOrAfter := notionapi.Date(since)
		onOrBefore := notionapi.Date(until)

		for {
			resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(dbID), &notionapi.DatabaseQueryRequest{
				Filter: notionapi.AndCompoundFilter{
					&notionapi.TimestampFilter{
						Timestamp:      "last_edited_time",
						LastEditedTime: &notionapi.DateFilterCondition{OnOrAfter: &onOrAfter},
					},
					&notionapi.TimestampFilter{
						Timestamp:      "last_edited_time",
						LastEditedTime: &notionapi.DateFilterCondition{OnOrBefore: &onOrBefore},
					},
				},
				StartCursor: cursor,
				PageSize:    100,
			})
			if err != nil {
				yield(nil, goerr.Wrap(err, "failed to query database",
					goerr.V("dbID", dbID), goerr.V("since", since), goerr.V("until", until)))
				return
			}

			for _, p := range resp.Results {
				page := &Page{
					ID:             p.ID.String(),
					Title:          pageTitle(p.Properties),
					URL:            p.URL,
					CreatedBy:      convertUser(p.CreatedBy),
					LastEditedBy:   convertUser(p.LastEditedBy),
					CreatedTime:    time.Time(p.CreatedTime),
					LastEditedTime: time.Time(p.LastEditedTime),
				}
				if !yield(page, nil) {
					return
				}
			}

			if !resp.HasMore {
				return
			}
			cursor = resp.NextCursor
		}
	}
}
