package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound        = goerr.New("configuration file not found")
	ErrInvalidConfig         = goerr.New("invalid configuration")
	ErrDuplicateIntegration  = goerr.New("duplicate integration ID")
	ErrMissingName           = goerr.New("name is required")
	ErrInvalidServiceType    = goerr.New("invalid service type")
	ErrMissingResourceSource = goerr.New("integration lists no resources to sync")
)

// Context keys for error values
const (
	ConfigPathKey       = "config_path"
	IntegrationIDKey    = "integration_id"
	IntegrationIndexKey = "integration_index"
	ServiceTypeKey      = "service_type"
)
