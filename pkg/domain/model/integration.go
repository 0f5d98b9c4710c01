package model

import (
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

// ErrIntegrationNotFound is returned when an integration does not exist
var ErrIntegrationNotFound = goerr.New("integration not found")

// IntegrationID identifies a configured connection to a third-party service
type IntegrationID string

func (id IntegrationID) String() string {
	return string(id)
}

// Integration metadata keys understood by the resource fetchers
const (
	MetadataKeyRepositories = "repositories"
	MetadataKeyDatabases    = "databases"
	MetadataKeyWorkspace    = "workspace"
)

// Integration is a connection to a third-party service owned by a team
type Integration struct {
	ID          IntegrationID
	Name        string
	ServiceType types.ServiceType
	Status      types.IntegrationStatus
	TeamID      types.TeamID
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the fields required to persist an integration
func (i *Integration) Validate() error {
	if i.ID == "" {
		return goerr.New("integration ID is required")
	}
	if i.Name == "" {
		return goerr.New("integration name is required", goerr.V("id", i.ID))
	}
	if !i.ServiceType.IsValid() {
		return goerr.New("invalid service type", goerr.V("id", i.ID), goerr.V("service", i.ServiceType))
	}
	if !i.Status.Normalize().IsValid() {
		return goerr.New("invalid integration status", goerr.V("id", i.ID), goerr.V("status", i.Status))
	}
	if err := i.TeamID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid owner team", goerr.V("id", i.ID))
	}
	return nil
}

// MetadataStrings returns a string list stored under key. Both []string and []any
// (as decoded from JSON or TOML) are accepted; non-string elements are formatted.
func (i *Integration) MetadataStrings(key string) []string {
	if i.Metadata == nil {
		return nil
	}
	switch v := i.Metadata[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			} else {
				result = append(result, fmt.Sprint(item))
			}
		}
		return result
	case string:
		return []string{v}
	default:
		return nil
	}
}

// MetadataString returns the string stored under key, or "" when missing or not a string
func (i *Integration) MetadataString(key string) string {
	s, _ := i.Metadata[key].(string)
	return s
}

// Clone returns a deep copy of the integration
func (i *Integration) Clone() *Integration {
	copied := *i
	copied.Metadata = cloneMetadata(i.Metadata)
	return &copied
}

func cloneMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		switch vv := v.(type) {
		case []any:
			dst[k] = append([]any(nil), vv...)
		case []string:
			dst[k] = append([]string(nil), vv...)
		case map[string]any:
			dst[k] = cloneMetadata(vv)
		default:
			dst[k] = v
		}
	}
	return dst
}
