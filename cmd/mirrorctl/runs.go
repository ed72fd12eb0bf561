package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mirror/internal/client"
)

func (c *cli) runsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "runs", Short: "Inspect stored runs"}
	cmd.AddCommand(c.runsListCmd())
	cmd.AddCommand(c.runsShowCmd())
	cmd.AddCommand(c.runsDecisionsCmd())
	cmd.AddCommand(c.runsModulesCmd())
	return cmd
}

func (c *cli) runsListCmd() *cobra.Command {
	var opts client.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := c.client().ListRuns(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(page)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(c.out)
			tw.AppendHeader(table.Row{"Run ID", "Project", "Branch", "Commit", "Created", "Req", "Tmp", "Tests", "Gate"})
			for _, r := range page.Items {
				tw.AppendRow(table.Row{
					r.RunID, r.Project, r.Branch, shortSHA(r.Commit), r.CreatedAt,
					pct(r.Coverage.Requirement), pct(r.Coverage.Temporal),
					c.glyph(r.Verdict.TestsPassed), c.glyph(r.Verdict.GateOK),
				})
			}
			tw.AppendFooter(table.Row{fmt.Sprintf("page %d", page.Page), "", "", "", fmt.Sprintf("%d total", page.Total)})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Project, "project", "", "filter by project slug")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "filter by branch")
	cmd.Flags().StringVar(&opts.From, "from", "", "only runs created at or after (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "only runs created at or before (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "page number, 1-based")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "runs per page")
	return cmd
}

func (c *cli) runsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := c.client().GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(run)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(c.out)
			tw.AppendRows([]table.Row{
				{"Run ID", run.Run.RunID},
				{"Project", run.Run.Project},
				{"Commit", run.Run.Commit},
				{"Branch", run.Run.Branch},
				{"Created", run.Run.CreatedAt},
			})
			if ci := run.Run.CI; ci != nil {
				tw.AppendRow(table.Row{"CI", strings.TrimSpace(ci.Provider + " " + ci.Workflow)})
				if ci.RunURL != "" {
					tw.AppendRow(table.Row{"CI run", ci.RunURL})
				}
			}
			tw.AppendSeparator()
			tw.AppendRows([]table.Row{
				{"Requirement coverage", pct(run.Coverage.Requirement)},
				{"Temporal coverage", pct(run.Coverage.Temporal)},
				{"Interface coverage", pct(run.Coverage.Interface)},
				{"Risk coverage", pct(run.Coverage.Risk)},
				{"Decisions", run.DecisionsCount},
			})
			tw.AppendSeparator()
			tw.AppendRows([]table.Row{
				{"Tests", fmt.Sprintf("%s (%s)", c.glyph(run.Verdict.TestsPassed), run.Verdict.TestsSource)},
				{"Coverage gate", fmt.Sprintf("%s (req >= %s, tmp >= %s)",
					c.glyph(run.Verdict.GateOK),
					pct(&run.Verdict.RequirementThreshold), pct(&run.Verdict.TemporalThreshold))},
			})
			if s := run.ManifestSummary; s.Schema != "" {
				tw.AppendSeparator()
				tw.AppendRows([]table.Row{
					{"Manifest", s.Schema},
					{"Events", s.Events},
					{"Artifacts", s.Artifacts},
				})
			}
			tw.Render()
			return nil
		},
	}
}

func (c *cli) runsDecisionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decisions RUN_ID",
		Short: "List the oracle decisions of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decisions, err := c.client().ListDecisions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(decisions)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(c.out)
			tw.AppendHeader(table.Row{"", "Oracle", "Result", "Satisfies", "Message"})
			for _, d := range decisions {
				msg := ""
				if d.Message != nil {
					msg = *d.Message
				}
				tw.AppendRow(table.Row{c.glyph(d.Result == "pass"), d.Oracle, d.Result, strings.Join(d.Satisfies, ", "), msg})
			}
			tw.Render()
			return nil
		},
	}
}

func (c *cli) runsModulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules RUN_ID",
		Short: "Show requirement coverage per module and interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := c.client().ModuleCoverage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(rows)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(c.out)
			tw.AppendHeader(table.Row{"Module", "Interface", "Covered", "Coverage", "Risk weighted"})
			for _, r := range rows {
				tw.AppendRow(table.Row{
					r.Module, r.Interface,
					fmt.Sprintf("%d/%d", r.CoveredReqs, r.TotalReqs),
					r.CoveragePct, r.RiskWeightedPct,
				})
			}
			tw.Render()
			return nil
		},
	}
}

func pct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *v*100)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
