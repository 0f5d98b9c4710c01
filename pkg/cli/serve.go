package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/cli/config"
	httpctrl "github.com/secmon-lab/contribview/pkg/controller/http"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/service/worker"
	"github.com/secmon-lab/contribview/pkg/usecase"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var apiToken string
	var integrationsCfg config.Integrations
	var repoCfg config.Repository
	var workerCfg config.Worker
	var slackCfg config.Slack
	var githubCfg config.GitHub
	var notionCfg config.Notion

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("CONTRIBVIEW_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "api-token",
			Usage:       "Require this bearer token on every API request",
			Sources:     cli.EnvVars("CONTRIBVIEW_API_TOKEN"),
			Destination: &apiToken,
		},
	}

	flags = append(flags, integrationsCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, workerCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, githubCfg.Flags()...)
	flags = append(flags, notionCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the reference backend HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			integrations, err := integrationsCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load integrations")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			sources := worker.Sources{}
			var ucOpts []usecase.Option

			slackSvc, err := slackCfg.Configure()
			if err != nil {
				return err
			}
			if slackSvc != nil {
				slackSource := worker.NewSlackSource(slackSvc)
				sources[types.ServiceTypeSlack] = slackSource
				ucOpts = append(ucOpts, usecase.WithBotInstaller(types.ServiceTypeSlack, slackSource))
				logging.Default().Info("Slack source enabled", "slack", slackCfg)
			} else {
				logging.Default().Info("Slack Bot Token not configured, Slack integrations cannot be synced")
			}

			githubSvc, err := githubCfg.Configure()
			if err != nil {
				return err
			}
			if githubSvc != nil {
				sources[types.ServiceTypeGitHub] = worker.NewGitHubSource(githubSvc)
				logging.Default().Info("GitHub source enabled", "github", githubCfg)
			}

			notionSvc, err := notionCfg.Configure()
			if err != nil {
				return err
			}
			if notionSvc != nil {
				sources[types.ServiceTypeNotion] = worker.NewNotionSource(notionSvc)
				logging.Default().Info("Notion source enabled")
			}

			// N+1 Prevention Policy: the sync worker replaces resources per type in one batch
			syncWorker := worker.NewResourceSyncWorker(repo, sources, workerCfg.SyncInterval())
			analysisWorker := worker.NewReportAnalysisWorker(repo, sources, workerCfg.AnalysisConcurrency())
			ucOpts = append(ucOpts,
				usecase.WithResourceSyncer(syncWorker),
				usecase.WithReportGenerator(analysisWorker),
			)

			uc := usecase.New(repo, ucOpts...)
			if err := uc.Integration.RegisterIntegrations(ctx, integrations); err != nil {
				return goerr.Wrap(err, "failed to register integrations")
			}
			logging.Default().Info("Integrations registered", "count", len(integrations))

			if err := syncWorker.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start resource sync worker")
			}
			// In-flight jobs finish before the repository is closed, on every return path
			defer func() {
				syncWorker.Stop()
				analysisWorker.Wait()
			}()

			var httpOpts []httpctrl.Options
			if apiToken != "" {
				httpOpts = append(httpOpts, httpctrl.WithAPIToken(apiToken))
			} else {
				logging.Default().Warn("API token not configured, the API is unauthenticated")
			}
			if secret := slackCfg.SigningSecret(); secret != "" {
				httpOpts = append(httpOpts, httpctrl.WithSlackEvents(secret))
				logging.Default().Info("Slack Events API endpoint enabled")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc.Integration, uc.Report, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, "worker", workerCfg)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
