package usecase

import (
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/types"
)

// UseCases bundles the server side use cases of the reference backend
type UseCases struct {
	repo       interfaces.Repository
	syncer     ResourceSyncer
	generator  ReportGenerator
	installers map[types.ServiceType]BotInstaller

	Integration *IntegrationUseCase
	Report      *ReportUseCase
}

type Option func(*UseCases)

// WithResourceSyncer enables StartSync
func WithResourceSyncer(syncer ResourceSyncer) Option {
	return func(uc *UseCases) {
		uc.syncer = syncer
	}
}

// WithReportGenerator enables GenerateReport
func WithReportGenerator(generator ReportGenerator) Option {
	return func(uc *UseCases) {
		uc.generator = generator
	}
}

// WithBotInstaller enables install_bot on channel selection for the service
func WithBotInstaller(serviceType types.ServiceType, installer BotInstaller) Option {
	return func(uc *UseCases) {
		uc.installers[serviceType] = installer
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:       repo,
		installers: make(map[types.ServiceType]BotInstaller),
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Integration = NewIntegrationUseCase(repo, uc.syncer, uc.installers)
	uc.Report = NewReportUseCase(repo, uc.generator)

	return uc
}
