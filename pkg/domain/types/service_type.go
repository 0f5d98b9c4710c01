package types

import "fmt"

// ServiceType identifies the third-party service an integration connects to
type ServiceType string

const (
	ServiceTypeSlack   ServiceType = "slack"
	ServiceTypeGitHub  ServiceType = "github"
	ServiceTypeNotion  ServiceType = "notion"
	ServiceTypeDiscord ServiceType = "discord"
)

// AllServiceTypes returns all valid service types
func AllServiceTypes() []ServiceType {
	return []ServiceType{
		ServiceTypeSlack,
		ServiceTypeGitHub,
		ServiceTypeNotion,
		ServiceTypeDiscord,
	}
}

// IsValid checks if the service type is valid
func (s ServiceType) IsValid() bool {
	switch s {
	case ServiceTypeSlack,
		ServiceTypeGitHub,
		ServiceTypeNotion,
		ServiceTypeDiscord:
		return true
	default:
		return false
	}
}

func (s ServiceType) String() string {
	return string(s)
}

// ParseServiceType parses a string into a ServiceType
func ParseServiceType(s string) (ServiceType, error) {
	st := ServiceType(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid service type: %s", s)
	}
	return st, nil
}
