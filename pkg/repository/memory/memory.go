package memory

import (
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is an in-process implementation of interfaces.Repository.
// Every returned value is a copy; callers may modify it freely.
type Memory struct {
	integration *integrationRepository
	resource    *resourceRepository
	syncStatus  *syncStatusRepository
	report      *reportRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		integration: newIntegrationRepository(),
		resource:    newResourceRepository(),
		syncStatus:  newSyncStatusRepository(),
		report:      newReportRepository(),
	}
}

func (m *Memory) Integration() interfaces.IntegrationRepository {
	return m.integration
}

func (m *Memory) Resource() interfaces.ResourceRepository {
	return m.resource
}

func (m *Memory) SyncStatus() interfaces.SyncStatusRepository {
	return m.syncStatus
}

func (m *Memory) Report() interfaces.ReportRepository {
	return m.report
}

func (m *Memory) Close() error {
	return nil
}
