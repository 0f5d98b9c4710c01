package types

import "fmt"

// ResourceType is the kind of object synchronized from an integration
type ResourceType string

const (
	ResourceTypeChannel    ResourceType = "channel"
	ResourceTypeUser       ResourceType = "user"
	ResourceTypeRepository ResourceType = "repository"
	ResourceTypeDatabase   ResourceType = "database"
)

// AllResourceTypes returns all valid resource types
func AllResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceTypeChannel,
		ResourceTypeUser,
		ResourceTypeRepository,
		ResourceTypeDatabase,
	}
}

// IsValid checks if the resource type is valid
func (r ResourceType) IsValid() bool {
	switch r {
	case ResourceTypeChannel,
		ResourceTypeUser,
		ResourceTypeRepository,
		ResourceTypeDatabase:
		return true
	default:
		return false
	}
}

func (r ResourceType) String() string {
	return string(r)
}

// ParseResourceType parses a string into a ResourceType
func ParseResourceType(s string) (ResourceType, error) {
	rt := ResourceType(s)
	if !rt.IsValid() {
		return "", fmt.Errorf("invalid resource type: %s", s)
	}
	return rt, nil
}

// ParseResourceTypes parses every element, failing on the first invalid one
func ParseResourceTypes(values []string) ([]ResourceType, error) {
	result := make([]ResourceType, 0, len(values))
	for _, v := range values {
		rt, err := ParseResourceType(v)
		if err != nil {
			return nil, err
		}
		result = append(result, rt)
	}
	return result, nil
}
