package usecase

import (
	"slices"
	"strings"

	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

// ResourceQuery narrows a resource list on the client side
type ResourceQuery struct {
	// Search matches name or external id, case-insensitively
	Search string
	Types  []types.ResourceType
	// SelectedOnly keeps resources in Selection, or resources flagged selected when Selection is nil
	SelectedOnly bool
	Selection    model.Selection
}

// FilterResources returns the resources matching q, preserving their order
func FilterResources(resources []*model.Resource, q ResourceQuery) []*model.Resource {
	search := strings.ToLower(strings.TrimSpace(q.Search))

	result := make([]*model.Resource, 0, len(resources))
	for _, r := range resources {
		if r == nil {
			continue
		}
		if len(q.Types) > 0 && !slices.Contains(q.Types, r.ResourceType) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Name), search) &&
			!strings.Contains(strings.ToLower(r.ExternalID), search) {
			continue
		}
		if q.SelectedOnly && !isSelected(r, q.Selection) {
			continue
		}
		result = append(result, r)
	}
	return result
}

func isSelected(r *model.Resource, selection model.Selection) bool {
	if selection != nil {
		return selection.Has(r.ID)
	}
	selected, _ := model.ResolveSelected(r)
	return selected
}

// ResourceIDs returns the ids of resources in order
func ResourceIDs(resources []*model.Resource) []model.ResourceID {
	ids := make([]model.ResourceID, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ID)
	}
	return ids
}

// Paginate returns the 1-based page of items and the number of pages.
// Out of range pages are clamped; a non-positive pageSize returns everything as one page.
func Paginate[T any](items []T, page, pageSize int) ([]T, int) {
	if pageSize <= 0 || len(items) == 0 {
		return items, 1
	}

	pages := (len(items) + pageSize - 1) / pageSize
	page = max(1, min(page, pages))

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(items))
	return items[start:end], pages
}
