package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdChannels() *cli.Command {
	return &cli.Command{
		Name:  "channels",
		Usage: "List and select channels for analysis",
		Commands: []*cli.Command{
			cmdChannelsList(),
			cmdChannelsSelect(),
		},
	}
}

func integrationFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "integration",
		Aliases:     []string{"i"},
		Usage:       "Integration ID",
		Required:    true,
		Sources:     cli.EnvVars("CONTRIBVIEW_INTEGRATION"),
		Destination: dst,
	}
}

func cmdChannelsList() *cli.Command {
	var flags clientFlags
	var integrationID string
	var search string
	var selectedOnly bool
	var page, pageSize int

	cmdFlags := []cli.Flag{
		integrationFlag(&integrationID),
		&cli.StringFlag{
			Name:        "search",
			Aliases:     []string{"q"},
			Usage:       "Only show channels whose name or ID contains this text",
			Destination: &search,
		},
		&cli.BoolFlag{
			Name:        "selected",
			Usage:       "Only show channels selected for analysis",
			Destination: &selectedOnly,
		},
		&cli.IntFlag{
			Name:        "page",
			Value:       1,
			Destination: &page,
		},
		&cli.IntFlag{
			Name:        "page-size",
			Usage:       "Channels per page (0 shows all)",
			Value:       50,
			Destination: &pageSize,
		},
	}

	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List channels with their selection state",
		Flags:   append(cmdFlags, flags.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			env, err := flags.configure()
			if err != nil {
				return err
			}
			id := model.IntegrationID(integrationID)

			resources, err := env.backend.ListResources(ctx, id, types.ResourceTypeChannel)
			if err != nil {
				return goerr.Wrap(err, "failed to list channels", goerr.V("integration_id", id))
			}

			selection := usecase.NewChannelSelection(env.backend, id)
			selected, err := selection.Initialize(ctx, resources)
			if err != nil {
				return err
			}

			filtered := usecase.FilterResources(resources, usecase.ResourceQuery{
				Search:       search,
				SelectedOnly: selectedOnly,
				Selection:    selected,
			})
			items, pages := usecase.Paginate(filtered, page, pageSize)

			printChannels(env, items, selected)
			fmt.Fprintf(env.out, "\n%d of %d channels selected (page %d/%d)\n",
				selected.Len(), len(resources), max(1, min(page, pages)), pages)
			return nil
		},
	}
}

func printChannels(env *clientEnv, channels []*model.Resource, selected model.Selection) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(env.out)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Selected", "Name", "ID", "Members"})
	for _, ch := range channels {
		mark := ""
		if selected.Has(ch.ID) {
			mark = color.GreenString("*")
		}
		tbl.AppendRow(table.Row{mark, "#" + ch.Name, ch.ExternalID, ch.Metadata[model.MetadataKeyMemberCount]})
	}
	tbl.Render()
}

func cmdChannelsSelect() *cli.Command {
	var flags clientFlags
	var integrationID string
	var selectRefs, deselectRefs, toggleRefs []string
	var all, none, installBot bool

	cmdFlags := []cli.Flag{
		integrationFlag(&integrationID),
		&cli.StringSliceFlag{
			Name:        "add",
			Usage:       "Channel to select (name, channel ID or resource ID)",
			Destination: &selectRefs,
		},
		&cli.StringSliceFlag{
			Name:        "remove",
			Usage:       "Channel to deselect (name, channel ID or resource ID)",
			Destination: &deselectRefs,
		},
		&cli.StringSliceFlag{
			Name:        "toggle",
			Usage:       "Channel whose selection is flipped",
			Destination: &toggleRefs,
		},
		&cli.BoolFlag{
			Name:        "all",
			Usage:       "Select every channel",
			Destination: &all,
		},
		&cli.BoolFlag{
			Name:        "none",
			Usage:       "Deselect every channel",
			Destination: &none,
		},
		&cli.BoolFlag{
			Name:        "install-bot",
			Usage:       "Install the bot into newly selected channels",
			Destination: &installBot,
		},
	}

	return &cli.Command{
		Name:  "select",
		Usage: "Change which channels are selected for analysis",
		Flags: append(cmdFlags, flags.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			if all && none {
				return goerr.New("--all and --none are exclusive")
			}

			env, err := flags.configure()
			if err != nil {
				return err
			}
			id := model.IntegrationID(integrationID)

			resources, err := env.backend.ListResources(ctx, id, types.ResourceTypeChannel)
			if err != nil {
				return goerr.Wrap(err, "failed to list channels", goerr.V("integration_id", id))
			}

			selection := usecase.NewChannelSelection(env.backend, id,
				usecase.WithInstallBot(installBot),
				usecase.WithSelectionNotifier(env.notifier),
			)
			if _, err := selection.Initialize(ctx, resources); err != nil {
				return err
			}

			allIDs := usecase.ResourceIDs(resources)
			switch {
			case all:
				err = selection.SelectAll(allIDs)
			case none:
				err = selection.DeselectAll(allIDs)
			}
			if err != nil {
				return err
			}

			toSelect, err := resolveResources(resources, selectRefs)
			if err != nil {
				return err
			}
			toDeselect, err := resolveResources(resources, deselectRefs)
			if err != nil {
				return err
			}
			if err := selection.SelectAll(toSelect); err != nil {
				return err
			}
			if err := selection.DeselectAll(toDeselect); err != nil {
				return err
			}

			toToggle, err := resolveResources(resources, toggleRefs)
			if err != nil {
				return err
			}
			for _, id := range toToggle {
				if err := selection.Toggle(id); err != nil {
					return err
				}
			}

			result, err := selection.Save(ctx)
			if err != nil {
				return err
			}
			if result.Diff.IsEmpty() {
				fmt.Fprintln(env.out, "No changes to save")
				return nil
			}
			if !result.Confirmed {
				fmt.Fprintln(env.out, color.YellowString("Saved, but the backend did not confirm the new selection"))
			}
			return nil
		},
	}
}
