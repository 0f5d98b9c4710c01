package notion

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// Service provides interface to Notion API
type Service interface {
	// GetDatabase retrieves database metadata
	GetDatabase(ctx context.Context, dbID string) (*Database, error)

	// QueryUpdatedPages retrieves pages of a database last edited within [since, until]
	// Returns an iterator that yields Page and error pairs
	QueryUpdatedPages(ctx context.Context, dbID string, since, until time.Time) iter.Seq2[*Page, error]
}

// Database is the metadata of a Notion database
type Database struct {
	ID             string
	Title          string
	URL            string
	CreatedTime    time.Time
	LastEditedTime time.Time
}

// Page represents a Notion page with the users who created and last edited it
type Page struct {
	ID             string
	Title          string
	URL            string
	CreatedBy      User
	LastEditedBy   User
	CreatedTime    time.Time
	LastEditedTime time.Time
}

// User is a Notion user reference. Name is empty when the integration lacks user read capability.
type User struct {
	ID   string
	Name string
}

func plainText(rts []notionapi.RichText) string {
	var sb strings.Builder
	for _, rt := range rts {
		sb.WriteString(rt.PlainText)
	}
	return sb.String()
}

// pageTitle returns the text of the title property
func pageTitle(props notionapi.Properties) string {
	for _, prop := range props {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			return plainText(title.Title)
		}
	}
	return ""
}

func convertUser(u notionapi.User) User {
	return User{ID: u.ID.String(), Name: u.Name}
}
