package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/cli/config"
	"github.com/secmon-lab/contribview/pkg/usecase"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var integrationsCfg config.Integrations
	var repoCfg config.Repository
	var checkDB bool

	var flags []cli.Flag
	flags = append(flags, integrationsCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "check-db",
		Usage:       "Also compare the declared integrations with the stored ones",
		Destination: &checkDB,
	})

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate integration declarations and optionally check DB consistency",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			if integrationsCfg.Path() == "" {
				return goerr.Wrap(config.ErrInvalidConfig, "--config is required")
			}

			// Step 1: Load and validate configuration files
			integrations, err := integrationsCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "configuration validation failed")
			}

			logger.Info("Configuration validation passed", "integration_count", len(integrations))
			for _, integration := range integrations {
				logger.Info("Integration validated",
					"id", integration.ID,
					"name", integration.Name,
					"service", integration.ServiceType,
					"team", integration.TeamID,
				)
			}

			// Step 2: Compare with the repository when requested
			if !checkDB {
				return nil
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			uc := usecase.New(repo)
			issues, err := uc.Integration.ValidateIntegrations(ctx, integrations)
			if err != nil {
				return goerr.Wrap(err, "DB consistency check failed")
			}

			if len(issues) > 0 {
				for _, issue := range issues {
					logger.Warn("DB consistency issue found",
						"integration_id", issue.IntegrationID,
						"message", issue.Message,
						"expected", issue.Expected,
						"actual", issue.Actual,
					)
				}
				return goerr.New("DB consistency check found issues", goerr.V("count", len(issues)))
			}

			logger.Info("DB consistency check passed")
			return nil
		},
	}
}
