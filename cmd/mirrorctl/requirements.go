package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mirror/internal/client"
	"github.com/ericfisherdev/mirror/internal/payload"
)

func (c *cli) requirementsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "requirements", Short: "Manage a project's requirement catalog"}
	cmd.PersistentFlags().String("project", "", "project slug (owner/repo)")
	_ = c.v.BindPFlag("project", cmd.PersistentFlags().Lookup("project"))
	cmd.AddCommand(c.requirementsImportCmd())
	cmd.AddCommand(c.requirementsListCmd())
	return cmd
}

func (c *cli) project() (string, error) {
	project := c.v.GetString("project")
	if project == "" {
		return "", fmt.Errorf("--project required")
	}
	return project, nil
}

func (c *cli) requirementsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import requirements from a YAML or JSON list",
		Long: `Import upserts every entry of FILE into the project's catalog. Each entry
has an id, module, interface and optional risk_weight:

  - id: REQ-AUTH-1
    module: auth
    interface: http
    risk_weight: 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := c.project()
			if err != nil {
				return err
			}
			specs, err := readRequirements(args[0])
			if err != nil {
				return err
			}

			n, err := c.client().ImportRequirements(cmd.Context(), project, specs)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(map[string]any{"project": project, "imported": n})
			}
			fmt.Fprintf(c.out, "%s imported %d requirements into %s\n", c.glyph(true), n, project)
			return nil
		},
	}
}

func (c *cli) requirementsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the project's requirements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			project, err := c.project()
			if err != nil {
				return err
			}
			specs, err := c.client().ListRequirements(cmd.Context(), project)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(specs)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(c.out)
			tw.AppendHeader(table.Row{"ID", "Module", "Interface", "Risk weight"})
			for _, s := range specs {
				weight := 1.0
				if s.RiskWeight != nil {
					weight = *s.RiskWeight
				}
				tw.AppendRow(table.Row{s.ID, s.Module, s.Interface, weight})
			}
			tw.Render()
			return nil
		},
	}
}

func readRequirements(path string) ([]client.RequirementSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var specs []client.RequirementSpec
	if err := payload.DecodeYAML(f, &specs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, s := range specs {
		if s.ID == "" {
			return nil, fmt.Errorf("parse %s: entry %d has no id", path, i)
		}
	}
	return specs, nil
}
