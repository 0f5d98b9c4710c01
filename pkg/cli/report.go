package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/cli/config"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdReport() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Create, generate and export team reports",
		Commands: []*cli.Command{
			cmdReportCreate(),
			cmdReportGenerate(),
			cmdReportGet(),
			cmdReportList(),
			cmdReportExport(),
		},
	}
}

func teamFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "team",
		Usage:       "Team ID",
		Required:    true,
		Sources:     cli.EnvVars("CONTRIBVIEW_TEAM"),
		Destination: dst,
	}
}

func reportIDFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "report",
		Aliases:     []string{"r"},
		Usage:       "Report ID",
		Required:    true,
		Destination: dst,
	}
}

func cmdReportCreate() *cli.Command {
	var flags clientFlags
	var teamID, title, integrationID, start, end string
	var resourceRefs []string
	var generate, wait bool

	cmdFlags := []cli.Flag{
		teamFlag(&teamID),
		&cli.StringFlag{
			Name:        "title",
			Usage:       "Report title (generated from the team and period when empty)",
			Destination: &title,
		},
		&cli.StringFlag{
			Name:        "integration",
			Aliases:     []string{"i"},
			Usage:       "Resolve --resource names in this integration; without --resource, use its selected channels",
			Sources:     cli.EnvVars("CONTRIBVIEW_INTEGRATION"),
			Destination: &integrationID,
		},
		&cli.StringSliceFlag{
			Name:        "resource",
			Usage:       "Resource to analyze (resource ID, or a name when --integration is set)",
			Destination: &resourceRefs,
		},
		&cli.StringFlag{
			Name:        "start",
			Usage:       "Start date (YYYY-MM-DD), 30 days before --end when empty",
			Destination: &start,
		},
		&cli.StringFlag{
			Name:        "end",
			Usage:       "End date (YYYY-MM-DD), now when empty",
			Destination: &end,
		},
		&cli.BoolFlag{
			Name:        "generate",
			Usage:       "Start generating the report right after creating it",
			Destination: &generate,
		},
		&cli.BoolFlag{
			Name:        "wait",
			Aliases:     []string{"w"},
			Usage:       "Wait until generation completes (implies --generate)",
			Destination: &wait,
		},
	}

	return &cli.Command{
		Name:  "create",
		Usage: "Create a team report over selected resources",
		Flags: append(cmdFlags, flags.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			env, err := flags.configure()
			if err != nil {
				return err
			}

			req := model.TeamReportRequest{
				TeamID: types.TeamID(teamID),
				Title:  title,
			}
			if req.StartDate, err = parseDate(start); err != nil {
				return err
			}
			if req.EndDate, err = parseDate(end); err != nil {
				return err
			}

			req.ResourceIDs, err = reportResources(ctx, env, model.IntegrationID(integrationID), resourceRefs)
			if err != nil {
				return err
			}

			workflow := usecase.NewReportWorkflow(env.backend, env.notifier, flags.client.PollerOptions()...)
			report, err := workflow.Create(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.out, "Report ID: %s\n", report.ID)

			if !generate && !wait {
				return nil
			}
			return generateReport(ctx, env, workflow, report.TeamID, report.ID, wait)
		},
	}
}

// reportResources resolves the resources a new report covers
func reportResources(ctx context.Context, env *clientEnv, integrationID model.IntegrationID, refs []string) ([]model.ResourceID, error) {
	if integrationID == "" {
		if len(refs) == 0 {
			return nil, goerr.New("--resource or --integration is required")
		}
		ids := make([]model.ResourceID, len(refs))
		for i, ref := range refs {
			ids[i] = model.ResourceID(ref)
		}
		return ids, nil
	}

	if len(refs) == 0 {
		ids, err := env.backend.ListSelectedChannels(ctx, integrationID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list selected channels", goerr.V("integration_id", integrationID))
		}
		return ids, nil
	}

	resources, err := env.backend.ListResources(ctx, integrationID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list resources", goerr.V("integration_id", integrationID))
	}
	return resolveResources(resources, refs)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "invalid date, expected YYYY-MM-DD", goerr.V("date", s))
	}
	return t, nil
}

func generateReport(ctx context.Context, env *clientEnv, workflow *usecase.ReportWorkflow, teamID types.TeamID, reportID model.ReportID, wait bool) error {
	poller, err := workflow.Generate(ctx, teamID, reportID, func(report *model.TeamReport) {
		printReport(env, report)
	})
	if err != nil {
		return err
	}
	if !wait {
		poller.Stop()
		return nil
	}
	return poller.Wait(ctx)
}

func cmdReportGenerate() *cli.Command {
	var flags clientFlags
	var teamID, reportID string
	var wait bool

	cmdFlags := []cli.Flag{
		teamFlag(&teamID),
		reportIDFlag(&reportID),
		&cli.BoolFlag{
			Name:        "wait",
			Aliases:     []string{"w"},
			Usage:       "Wait until generation completes",
			Destination: &wait,
		},
	}

	return &cli.Command{
		Name:  "generate",
		Usage: "Analyze every resource of a report again",
		Flags: append(cmdFlags, flags.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			env, err := flags.configure()
			if err != nil {
				return err
			}
			workflow := usecase.NewReportWorkflow(env.backend, env.notifier, flags.client.PollerOptions()...)
			return generateReport(ctx, env, workflow, types.TeamID(teamID), model.ReportID(reportID), wait)
		},
	}
}

func cmdReportGet() *cli.Command {
	var flags clientFlags
	var teamID, reportID string
	var wait bool

	cmdFlags := []cli.Flag{
		teamFlag(&teamID),
		reportIDFlag(&reportID),
		&cli.BoolFlag{
			Name:        "wait",
			Aliases:     []string{"w"},
			Usage:       "Wait for pending analyses before printing",
			Destination: &wait,
		},
	}

	return &cli.Command{
		Name:  "get",
		Usage: "Show a report",
		Flags: append(cmdFlags, flags.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			env, err := flags.configure()
			if err != nil {
				return err
			}

			team := types.TeamID(teamID)
			id := model.ReportID(reportID)
			if wait {
				workflow := usecase.NewReportWorkflow(env.backend, env.notifier, flags.client.PollerOptions()...)
				poller := workflow.Watch(ctx, team, id, func(report *model.TeamReport) {
					printReport(env, report)
				})
				return poller.Wait(ctx)
			}

			report, err := env.backend.GetTeamReport(ctx, team, id)
			if err != nil {
				return goerr.Wrap(err, "failed to get report", goerr.V("report_id", id))
			}
			printReport(env, report)
			return nil
		},
	}
}

func cmdReportList() *cli.Command {
	var flags clientFlags
	var teamID string

	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List reports of a team",
		Flags:   append([]cli.Flag{teamFlag(&teamID)}, flags.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			env, err := flags.configure()
			if err != nil {
				return err
			}

			reports, err := env.backend.ListTeamReports(ctx, types.TeamID(teamID))
			if err != nil {
				return goerr.Wrap(err, "failed to list reports", goerr.V("team_id", teamID))
			}

			tbl := table.NewWriter()
			tbl.SetOutputMirror(env.out)
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"ID", "Title", "Status", "Progress", "Created"})
			for _, r := range reports {
				done, total := r.Progress()
				tbl.AppendRow(table.Row{
					r.ID, r.Title, r.Status(), fmt.Sprintf("%d/%d", done, total),
					r.CreatedAt.Local().Format(time.DateTime),
				})
			}
			tbl.Render()
			return nil
		},
	}
}

func cmdReportExport() *cli.Command {
	var flags clientFlags
	var exportCfg config.Export
	var teamID, reportID string

	cmdFlags := []cli.Flag{
		teamFlag(&teamID),
		reportIDFlag(&reportID),
	}
	cmdFlags = append(cmdFlags, exportCfg.Flags()...)

	return &cli.Command{
		Name:  "export",
		Usage: "Export a report as Markdown or JSON to a directory or Cloud Storage",
		Flags: append(cmdFlags, flags.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			env, err := flags.configure()
			if err != nil {
				return err
			}

			exporter, closer, err := exportCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer closer()

			report, err := env.backend.GetTeamReport(ctx, types.TeamID(teamID), model.ReportID(reportID))
			if err != nil {
				return goerr.Wrap(err, "failed to get report", goerr.V("report_id", reportID))
			}
			if report.IsRunning() {
				return goerr.New("report is still being generated", goerr.V("report_id", reportID))
			}

			location, err := exporter.Export(ctx, report)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.out, "Exported to %s\n", location)
			return nil
		},
	}
}

func printReport(env *clientEnv, report *model.TeamReport) {
	done, total := report.Progress()
	fmt.Fprintf(env.out, "%s\n", color.New(color.Bold).Sprint(report.Title))
	fmt.Fprintf(env.out, "Period:  %s - %s\n",
		report.StartDate.Format(time.DateOnly), report.EndDate.Format(time.DateOnly))
	fmt.Fprintf(env.out, "Status:  %s (%d/%d)\n\n", report.Status(), done, total)

	for _, a := range report.Analyses {
		switch a.Status {
		case types.AnalysisStatusCompleted:
			fmt.Fprintf(env.out, "%s %s: %s\n", color.GreenString("[ok]"), a.ResourceName, a.Summary)
			for _, c := range a.Contributors {
				fmt.Fprintf(env.out, "    %-24s %d\n", c.Name, c.Contributions)
			}
		case types.AnalysisStatusFailed:
			fmt.Fprintf(env.out, "%s %s: %s\n", color.RedString("[failed]"), a.ResourceName, a.Error)
		default:
			fmt.Fprintf(env.out, "%s %s\n", color.CyanString("[%s]", a.Status), a.ResourceName)
		}
	}
}
