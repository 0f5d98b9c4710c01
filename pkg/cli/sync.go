package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdSync() *cli.Command {
	var flags clientFlags
	var integrationID string
	var typeNames []string
	var wait bool

	cmdFlags := []cli.Flag{
		integrationFlag(&integrationID),
		&cli.StringSliceFlag{
			Name:        "type",
			Aliases:     []string{"t"},
			Usage:       "Resource type to sync (channel, user, repository, database); all supported types when omitted",
			Destination: &typeNames,
		},
		&cli.BoolFlag{
			Name:        "wait",
			Aliases:     []string{"w"},
			Usage:       "Wait until the sync completes",
			Destination: &wait,
		},
	}

	return &cli.Command{
		Name:  "sync",
		Usage: "Sync resources of an integration from its service",
		Flags: append(cmdFlags, flags.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			resourceTypes, err := types.ParseResourceTypes(typeNames)
			if err != nil {
				return goerr.Wrap(err, "invalid resource type", goerr.V("types", typeNames))
			}

			env, err := flags.configure()
			if err != nil {
				return err
			}

			workflow := usecase.NewSyncWorkflow(env.backend, env.notifier, flags.client.PollerOptions()...)
			if !wait {
				return workflow.Request(ctx, model.IntegrationID(integrationID), resourceTypes)
			}

			poller, err := workflow.Start(ctx, model.IntegrationID(integrationID), resourceTypes, func(resources []*model.Resource) {
				printResourceCounts(env, resources)
			})
			if err != nil {
				return err
			}
			return poller.Wait(ctx)
		},
	}
}

func cmdStatus() *cli.Command {
	var flags clientFlags
	var integrationID string
	var wait bool

	cmdFlags := []cli.Flag{
		integrationFlag(&integrationID),
		&cli.BoolFlag{
			Name:        "wait",
			Aliases:     []string{"w"},
			Usage:       "Wait for a running sync to complete",
			Destination: &wait,
		},
	}

	return &cli.Command{
		Name:  "status",
		Usage: "Show the sync status of an integration",
		Flags: append(cmdFlags, flags.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			env, err := flags.configure()
			if err != nil {
				return err
			}
			id := model.IntegrationID(integrationID)

			status, err := env.backend.GetSyncStatus(ctx, id)
			if err != nil {
				return goerr.Wrap(err, "failed to get sync status", goerr.V("integration_id", id))
			}
			printSyncStatus(env, status)

			if !wait || !status.IsSyncing {
				return nil
			}

			workflow := usecase.NewSyncWorkflow(env.backend, env.notifier, flags.client.PollerOptions()...)
			poller := workflow.Watch(ctx, id, func(resources []*model.Resource) {
				printResourceCounts(env, resources)
			})
			return poller.Wait(ctx)
		},
	}
}

func printSyncStatus(env *clientEnv, status *model.SyncStatus) {
	state := color.GreenString("idle")
	if status.IsSyncing {
		state = color.CyanString("syncing")
	}
	fmt.Fprintf(env.out, "State:         %s\n", state)
	fmt.Fprintf(env.out, "Channels:      %d\n", status.ChannelCount)
	fmt.Fprintf(env.out, "Channel sync:  %s\n", formatTime(status.LastChannelSync))
	fmt.Fprintf(env.out, "User sync:     %s\n", formatTime(status.LastUserSync))
	fmt.Fprintf(env.out, "Last attempt:  %s\n", formatTime(status.LastAttempt))
	if status.LastError != "" {
		fmt.Fprintf(env.out, "Last error:    %s\n", color.RedString(status.LastError))
	}
}

func printResourceCounts(env *clientEnv, resources []*model.Resource) {
	counts := make(map[types.ResourceType]int)
	for _, r := range resources {
		counts[r.ResourceType]++
	}
	for _, rt := range types.AllResourceTypes() {
		if n := counts[rt]; n > 0 {
			fmt.Fprintf(env.out, "%-12s %d\n", rt, n)
		}
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
