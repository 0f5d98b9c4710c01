package types

import "fmt"

// AnalysisStatus is the state of a per-resource analysis inside a team report
type AnalysisStatus string

const (
	AnalysisStatusPending   AnalysisStatus = "PENDING"
	AnalysisStatusCompleted AnalysisStatus = "COMPLETED"
	AnalysisStatusFailed    AnalysisStatus = "FAILED"
)

// AllAnalysisStatuses returns all valid analysis statuses
func AllAnalysisStatuses() []AnalysisStatus {
	return []AnalysisStatus{
		AnalysisStatusPending,
		AnalysisStatusCompleted,
		AnalysisStatusFailed,
	}
}

// IsValid checks if the analysis status is valid
func (s AnalysisStatus) IsValid() bool {
	switch s {
	case AnalysisStatusPending,
		AnalysisStatusCompleted,
		AnalysisStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the analysis will not change anymore
func (s AnalysisStatus) IsTerminal() bool {
	return s == AnalysisStatusCompleted || s == AnalysisStatusFailed
}

// Normalize treats empty as pending
func (s AnalysisStatus) Normalize() AnalysisStatus {
	if s == "" {
		return AnalysisStatusPending
	}
	return s
}

func (s AnalysisStatus) String() string {
	return string(s)
}

// ParseAnalysisStatus parses a string into an AnalysisStatus
func ParseAnalysisStatus(s string) (AnalysisStatus, error) {
	status := AnalysisStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid analysis status: %s", s)
	}
	return status, nil
}
