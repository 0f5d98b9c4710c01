package model

import "sort"

// Selection is a set of resource IDs selected for analysis
type Selection map[ResourceID]struct{}

// NewSelection builds a selection from ids
func NewSelection(ids ...ResourceID) Selection {
	s := make(Selection, len(ids))
	s.Add(ids...)
	return s
}

// Has reports whether id is selected
func (s Selection) Has(id ResourceID) bool {
	_, ok := s[id]
	return ok
}

// Toggle flips the membership of id. Applying it twice restores the original set.
func (s Selection) Toggle(id ResourceID) {
	if s.Has(id) {
		delete(s, id)
		return
	}
	s[id] = struct{}{}
}

// Add inserts ids
func (s Selection) Add(ids ...ResourceID) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Remove deletes ids; missing ids are ignored
func (s Selection) Remove(ids ...ResourceID) {
	for _, id := range ids {
		delete(s, id)
	}
}

// Len returns the number of selected ids
func (s Selection) Len() int {
	return len(s)
}

// IDs returns the selected ids in sorted order
func (s Selection) IDs() []ResourceID {
	ids := make([]ResourceID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns an independent copy
func (s Selection) Clone() Selection {
	copied := make(Selection, len(s))
	for id := range s {
		copied[id] = struct{}{}
	}
	return copied
}

// Equal reports whether both sets contain the same ids
func (s Selection) Equal(other Selection) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Minus returns the ids of s that are not in other, sorted
func (s Selection) Minus(other Selection) []ResourceID {
	result := []ResourceID{}
	for _, id := range s.IDs() {
		if !other.Has(id) {
			result = append(result, id)
		}
	}
	return result
}

// SelectionDiff is the set of calls needed to make the server selection equal to a local one
type SelectionDiff struct {
	ToSelect   []ResourceID
	ToDeselect []ResourceID
}

// IsEmpty reports whether no call is needed
func (d SelectionDiff) IsEmpty() bool {
	return len(d.ToSelect) == 0 && len(d.ToDeselect) == 0
}

// DiffSelection computes ToSelect = local - server and ToDeselect = server - local.
// The two lists are always disjoint and never contain ids present in both sets.
func DiffSelection(local, server Selection) SelectionDiff {
	return SelectionDiff{
		ToSelect:   local.Minus(server),
		ToDeselect: server.Minus(local),
	}
}
