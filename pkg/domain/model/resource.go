package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

// ErrResourceNotFound is returned when a resource does not exist
var ErrResourceNotFound = goerr.New("resource not found")

// ResourceID is the stable identifier of a synchronized resource
type ResourceID string

func (id ResourceID) String() string {
	return string(id)
}

// resourceNamespace scopes the name-based UUIDs derived for resources
var resourceNamespace = uuid.MustParse("6f1c8d0e-52c4-4f6a-9a55-0c4f0a6f3b21")

// NewResourceID derives a stable ID from the integration, type and external ID,
// so repeated syncs of the same external object keep the same identifier.
func NewResourceID(integrationID IntegrationID, resourceType types.ResourceType, externalID string) ResourceID {
	name := string(integrationID) + ":" + string(resourceType) + ":" + externalID
	return ResourceID(uuid.NewSHA1(resourceNamespace, []byte(name)).String())
}

// Resource metadata keys
const (
	MetadataKeySelected    = "is_selected_for_analysis"
	MetadataKeyMemberCount = "num_members"
	MetadataKeyIsPrivate   = "is_private"
	MetadataKeyTopic       = "topic"
	MetadataKeyURL         = "url"
)

// Resource is a syncable object belonging to an integration (channel, user, ...)
type Resource struct {
	ID                    ResourceID
	IntegrationID         IntegrationID
	ExternalID            string
	Name                  string
	ResourceType          types.ResourceType
	Metadata              map[string]any
	LastSyncedAt          *time.Time
	IsSelectedForAnalysis *bool
}

// Clone returns a deep copy of the resource
func (r *Resource) Clone() *Resource {
	copied := *r
	copied.Metadata = cloneMetadata(r.Metadata)
	if r.LastSyncedAt != nil {
		t := *r.LastSyncedAt
		copied.LastSyncedAt = &t
	}
	if r.IsSelectedForAnalysis != nil {
		b := *r.IsSelectedForAnalysis
		copied.IsSelectedForAnalysis = &b
	}
	return &copied
}

// IsChannel reports whether the resource can be selected for analysis
func (r *Resource) IsChannel() bool {
	return r.ResourceType == types.ResourceTypeChannel
}

// ResolveSelected reports whether the resource is selected for analysis.
//
// Lookup precedence:
//  1. the IsSelectedForAnalysis field, when set
//  2. Metadata["is_selected_for_analysis"] as a bool or "true"/"false" string
//
// known is false when neither source carries the flag; the caller must then
// fall back to querying the persisted selection.
func ResolveSelected(r *Resource) (selected bool, known bool) {
	if r == nil {
		return false, false
	}
	if r.IsSelectedForAnalysis != nil {
		return *r.IsSelectedForAnalysis, true
	}
	if r.Metadata == nil {
		return false, false
	}
	switch v := r.Metadata[MetadataKeySelected].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// Bool returns a pointer to b, for optional flags
func Bool(b bool) *bool {
	return &b
}
