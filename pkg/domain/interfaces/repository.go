package interfaces

// Repository defines the storage used by the reference backend
type Repository interface {
	Integration() IntegrationRepository
	Resource() ResourceRepository
	SyncStatus() SyncStatusRepository
	Report() ReportRepository

	Close() error
}
