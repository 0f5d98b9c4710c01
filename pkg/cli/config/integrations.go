package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// IntegrationFile is the TOML file declaring the integrations served by the backend
type IntegrationFile struct {
	Integrations []Integration `toml:"integration"`
}

// Integration is one [[integration]] entry
type Integration struct {
	ID           string         `toml:"id"`
	Name         string         `toml:"name"`
	Service      string         `toml:"service"`
	Team         string         `toml:"team"`
	Status       string         `toml:"status"`
	Workspace    string         `toml:"workspace"`
	Repositories []string       `toml:"repositories"`
	Databases    []string       `toml:"databases"`
	Metadata     map[string]any `toml:"metadata"`
}

// Validate checks if the Integration is valid
func (i *Integration) Validate() error {
	if i.ID == "" {
		return goerr.Wrap(ErrInvalidConfig, "integration ID is required")
	}
	if i.Name == "" {
		return goerr.Wrap(ErrMissingName, "integration name is required", goerr.V(IntegrationIDKey, i.ID))
	}

	service, err := types.ParseServiceType(i.Service)
	if err != nil {
		return goerr.Wrap(ErrInvalidServiceType, err.Error(),
			goerr.V(IntegrationIDKey, i.ID), goerr.V(ServiceTypeKey, i.Service))
	}
	if err := types.TeamID(i.Team).Validate(); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid owner team", goerr.V(IntegrationIDKey, i.ID), goerr.V("team", i.Team))
	}
	if !types.IntegrationStatus(i.Status).Normalize().IsValid() {
		return goerr.Wrap(ErrInvalidConfig, "invalid integration status",
			goerr.V(IntegrationIDKey, i.ID), goerr.V("status", i.Status))
	}

	switch service {
	case types.ServiceTypeGitHub:
		if len(i.Repositories) == 0 {
			return goerr.Wrap(ErrMissingResourceSource, "GitHub integration requires repositories", goerr.V(IntegrationIDKey, i.ID))
		}
		for _, repo := range i.Repositories {
			if _, _, err := model.ParseGitHubRepo(repo); err != nil {
				return goerr.Wrap(ErrInvalidConfig, err.Error(), goerr.V(IntegrationIDKey, i.ID), goerr.V("repository", repo))
			}
		}
	case types.ServiceTypeNotion:
		if len(i.Databases) == 0 {
			return goerr.Wrap(ErrMissingResourceSource, "Notion integration requires databases", goerr.V(IntegrationIDKey, i.ID))
		}
		for _, db := range i.Databases {
			if _, err := model.ParseNotionID(db); err != nil {
				return goerr.Wrap(ErrInvalidConfig, err.Error(), goerr.V(IntegrationIDKey, i.ID), goerr.V("database", db))
			}
		}
	}
	return nil
}

// Model converts the entry into a domain integration
func (i *Integration) Model() *model.Integration {
	metadata := make(map[string]any, len(i.Metadata)+3)
	for k, v := range i.Metadata {
		metadata[k] = v
	}
	if i.Workspace != "" {
		metadata[model.MetadataKeyWorkspace] = i.Workspace
	}
	if len(i.Repositories) > 0 {
		metadata[model.MetadataKeyRepositories] = append([]string(nil), i.Repositories...)
	}
	if len(i.Databases) > 0 {
		metadata[model.MetadataKeyDatabases] = append([]string(nil), i.Databases...)
	}

	return &model.Integration{
		ID:          model.IntegrationID(i.ID),
		Name:        i.Name,
		ServiceType: types.ServiceType(i.Service),
		Status:      types.IntegrationStatus(i.Status).Normalize(),
		TeamID:      types.TeamID(i.Team),
		Metadata:    metadata,
	}
}

// Validate checks every entry and rejects duplicate IDs
func (f *IntegrationFile) Validate() error {
	seen := make(map[string]bool)
	for idx, integration := range f.Integrations {
		if err := integration.Validate(); err != nil {
			return goerr.Wrap(err, "invalid integration", goerr.V(IntegrationIndexKey, idx))
		}
		if seen[integration.ID] {
			return goerr.Wrap(ErrDuplicateIntegration, "integration declared twice", goerr.V(IntegrationIDKey, integration.ID))
		}
		seen[integration.ID] = true
	}
	return nil
}

// Models converts every entry
func (f *IntegrationFile) Models() []*model.Integration {
	result := make([]*model.Integration, len(f.Integrations))
	for i := range f.Integrations {
		result[i] = f.Integrations[i].Model()
	}
	return result
}

// LoadIntegrationFile loads and validates the integration declarations from a TOML file
func LoadIntegrationFile(path string) (*IntegrationFile, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, err.Error(), goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var file IntegrationFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config",
			goerr.V(ConfigPathKey, path), goerr.V("error", err.Error()))
	}

	if err := file.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &file, nil
}

// LoadIntegrations loads a TOML file, or every *.toml file of a directory in name order.
// Integration IDs must be unique across all files.
func LoadIntegrations(path string) ([]*model.Integration, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, err.Error(), goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to stat config path", goerr.V(ConfigPathKey, path))
	}

	paths := []string{path}
	if info.IsDir() {
		paths, err = filepath.Glob(filepath.Join(path, "*.toml"))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list config files", goerr.V(ConfigPathKey, path))
		}
		if len(paths) == 0 {
			return nil, goerr.Wrap(ErrConfigNotFound, "no TOML files in config directory", goerr.V(ConfigPathKey, path))
		}
		sort.Strings(paths)
	}

	var merged IntegrationFile
	for _, p := range paths {
		file, err := LoadIntegrationFile(p)
		if err != nil {
			return nil, err
		}
		merged.Integrations = append(merged.Integrations, file.Integrations...)
	}
	if err := merged.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return merged.Models(), nil
}

// Integrations holds the --config flag
type Integrations struct {
	path string
}

func (x *Integrations) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "TOML file, or directory of TOML files, declaring integrations",
			Sources:     cli.EnvVars("CONTRIBVIEW_CONFIG"),
			Destination: &x.path,
		},
	}
}

func (x Integrations) LogValue() slog.Value {
	return slog.GroupValue(slog.String("path", x.path))
}

// Configure loads the file. No path means no integrations are declared.
func (x *Integrations) Configure() ([]*model.Integration, error) {
	if x.path == "" {
		return nil, nil
	}
	return LoadIntegrations(x.path)
}

// Path returns the configured path
func (x *Integrations) Path() string {
	return x.path
}
