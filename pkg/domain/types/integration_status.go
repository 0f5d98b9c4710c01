package types

import "fmt"

// IntegrationStatus is the connection state of an integration
type IntegrationStatus string

const (
	IntegrationStatusActive       IntegrationStatus = "active"
	IntegrationStatusDisconnected IntegrationStatus = "disconnected"
	IntegrationStatusError        IntegrationStatus = "error"
)

// IsValid checks if the integration status is valid
func (s IntegrationStatus) IsValid() bool {
	switch s {
	case IntegrationStatusActive,
		IntegrationStatusDisconnected,
		IntegrationStatusError:
		return true
	default:
		return false
	}
}

// Normalize treats empty as active
func (s IntegrationStatus) Normalize() IntegrationStatus {
	if s == "" {
		return IntegrationStatusActive
	}
	return s
}

func (s IntegrationStatus) String() string {
	return string(s)
}

// ParseIntegrationStatus parses a string into an IntegrationStatus
func ParseIntegrationStatus(s string) (IntegrationStatus, error) {
	status := IntegrationStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid integration status: %s", s)
	}
	return status, nil
}
