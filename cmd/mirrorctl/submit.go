package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/mirror/internal/client"
	"github.com/ericfisherdev/mirror/internal/payload"
)

type submitResult struct {
	File string `json:"file"`
	client.SubmitResult
	Replayed       bool   `json:"replayed"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (c *cli) submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit FILE...",
		Short: "Submit run payloads (JSON or YAML)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parallel := c.v.GetInt("parallel")
			if parallel < 1 {
				return fmt.Errorf("--parallel must be at least 1, got %d", parallel)
			}

			cl := c.client()
			results := make([]submitResult, len(args))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(parallel)
			for i, file := range args {
				g.Go(func() error {
					body, err := payload.LoadFile(file)
					if err != nil {
						return err
					}
					res, err := cl.SubmitRun(ctx, body)
					if err != nil {
						return fmt.Errorf("submit %s: %w", file, err)
					}
					results[i] = submitResult{
						File:           file,
						SubmitResult:   res,
						Replayed:       res.Replayed,
						IdempotencyKey: res.IdempotencyKey,
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if c.jsonOutput() {
				return c.printJSON(results)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(c.out)
			tw.AppendHeader(table.Row{"File", "Run ID", "Outcome", "Dashboard"})
			for _, r := range results {
				tw.AppendRow(table.Row{r.File, r.RunID, r.Outcome, r.DashboardURL})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().Int("parallel", 4, "maximum concurrent submissions")
	c.bindFlags(cmd, "parallel")
	return cmd
}
