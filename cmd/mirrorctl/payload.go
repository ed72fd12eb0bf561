package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mirror/internal/payload"
)

func (c *cli) payloadCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "payload", Short: "Build run payloads"}
	cmd.AddCommand(c.payloadBuildCmd())
	return cmd
}

func (c *cli) payloadBuildCmd() *cobra.Command {
	var (
		dir    string
		out    string
		submit bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a payload from a report directory and CI environment variables",
		Long: `Build reads run-manifest.json, coverage.json and decisions.json from the
report directory, hashes every file under its artifacts/ subdirectory, and
fills the run block from CI variables (GITHUB_* on GitHub Actions, otherwise
RUN_ID, PROJECT, COMMIT, BRANCH and WORKFLOW with CI_PROVIDER naming the
provider).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := payload.Builder{}.Build(dir)
			if err != nil {
				return err
			}

			if !submit || out != "" {
				if err := writePayload(c.out, out, p); err != nil {
					return err
				}
			}
			if !submit {
				return nil
			}

			res, err := c.client().SubmitRun(cmd.Context(), p)
			if err != nil {
				return fmt.Errorf("submit payload: %w", err)
			}
			if c.jsonOutput() {
				return c.printJSON(res)
			}
			fmt.Fprintf(c.out, "%s run %s (%s)\n", c.glyph(true), res.RunID, res.Outcome)
			if res.DashboardURL != "" {
				fmt.Fprintf(c.out, "  %s\n", res.DashboardURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", payload.DefaultDir, "report directory")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the payload to this file (- for stdout)")
	cmd.Flags().BoolVar(&submit, "submit", false, "submit the payload to the server")
	return cmd
}

func writePayload(stdout io.Writer, path string, p *payload.Payload) error {
	if path == "" || path == "-" {
		return payload.Write(stdout, p)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := payload.Write(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
