package config_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/contribview/pkg/cli/config"
)

func TestConfigErrors_SentinelIdentification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		sentinelError error
		wantMatch     bool
	}{
		{
			name:          "ErrConfigNotFound can be identified",
			err:           goerr.Wrap(config.ErrConfigNotFound, "failed to load config"),
			sentinelError: config.ErrConfigNotFound,
			wantMatch:     true,
		},
		{
			name:          "ErrInvalidConfig can be identified",
			err:           goerr.Wrap(config.ErrInvalidConfig, "validation failed"),
			sentinelError: config.ErrInvalidConfig,
			wantMatch:     true,
		},
		{
			name:          "ErrDuplicateIntegration can be identified",
			err:           goerr.Wrap(config.ErrDuplicateIntegration, "found duplicate"),
			sentinelError: config.ErrDuplicateIntegration,
			wantMatch:     true,
		},
		{
			name:          "ErrMissingName can be identified",
			err:           goerr.Wrap(config.ErrMissingName, "name field is empty"),
			sentinelError: config.ErrMissingName,
			wantMatch:     true,
		},
		{
			name:          "ErrInvalidServiceType can be identified",
			err:           goerr.Wrap(config.ErrInvalidServiceType, "unknown service"),
			sentinelError: config.ErrInvalidServiceType,
			wantMatch:     true,
		},
		{
			name:          "ErrMissingResourceSource can be identified",
			err:           goerr.Wrap(config.ErrMissingResourceSource, "no repositories"),
			sentinelError: config.ErrMissingResourceSource,
			wantMatch:     true,
		},
		{
			name:          "Different sentinel errors do not match",
			err:           goerr.Wrap(config.ErrConfigNotFound, "failed to load config"),
			sentinelError: config.ErrInvalidConfig,
			wantMatch:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched := errors.Is(tt.err, tt.sentinelError)
			gt.Value(t, matched).Equal(tt.wantMatch)
		})
	}
}

func TestConfigErrors_ContextExtraction(t *testing.T) {
	tests := []struct {
		name      string
		buildErr  func() error
		key       string
		wantValue any
	}{
		{
			name: "Extract ConfigPathKey",
			buildErr: func() error {
				return goerr.Wrap(config.ErrConfigNotFound, "config not found",
					goerr.V(config.ConfigPathKey, "/path/to/config.toml"))
			},
			key:       config.ConfigPathKey,
			wantValue: "/path/to/config.toml",
		},
		{
			name: "Extract IntegrationIDKey",
			buildErr: func() error {
				return goerr.Wrap(config.ErrDuplicateIntegration, "duplicate integration",
					goerr.V(config.IntegrationIDKey, "slack-main"))
			},
			key:       config.IntegrationIDKey,
			wantValue: "slack-main",
		},
		{
			name: "Extract ServiceTypeKey",
			buildErr: func() error {
				return goerr.Wrap(config.ErrInvalidServiceType, "invalid service",
					goerr.V(config.ServiceTypeKey, "discord"))
			},
			key:       config.ServiceTypeKey,
			wantValue: "discord",
		},
		{
			name: "Extract IntegrationIndexKey",
			buildErr: func() error {
				return goerr.Wrap(config.ErrMissingName, "invalid integration",
					goerr.V(config.IntegrationIndexKey, 2))
			},
			key:       config.IntegrationIndexKey,
			wantValue: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gErr *goerr.Error
			gt.Bool(t, errors.As(tt.buildErr(), &gErr)).True()
			gt.Value(t, gErr.Values()[tt.key]).Equal(tt.wantValue)
		})
	}
}
