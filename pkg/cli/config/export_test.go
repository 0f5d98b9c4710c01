package config

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(botToken, notifyChannel string) *Slack {
	return &Slack{
		botToken:      botToken,
		notifyChannel: notifyChannel,
	}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID string) *Repository {
	return &Repository{
		backend:   backend,
		projectID: projectID,
	}
}

// NewExportForTest creates an Export config for testing purposes
func NewExportForTest(format, dir string) *Export {
	return &Export{
		format: format,
		dir:    dir,
	}
}

// NewIntegrationsForTest creates an Integrations config for testing purposes
func NewIntegrationsForTest(path string) *Integrations {
	return &Integrations{path: path}
}
