// Command mirrorctl submits test runs to the mirror API and inspects stored
// runs, decisions, module coverage and requirement catalogs.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ericfisherdev/mirror/internal/client"
)

type cli struct {
	v   *viper.Viper
	out io.Writer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), out: os.Stdout}
	c.initConfig()

	root := &cobra.Command{
		Use:   "mirrorctl",
		Short: "Mirror run ingestion CLI",
		Long: `mirrorctl talks to a mirror server.

Runs are submitted as JSON or YAML payloads, or built from a local report
directory written by the test plugin. Stored runs can be listed and inspected
together with their oracle decisions and per-module requirement coverage.

Flags can also be set through MIRRORCTL_* environment variables, for example
MIRRORCTL_SERVER and MIRRORCTL_TOKEN.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.out = cmd.OutOrStdout()
		},
	}

	c.addPersistentFlags(root)
	root.AddCommand(c.submitCmd())
	root.AddCommand(c.payloadCmd())
	root.AddCommand(c.runsCmd())
	root.AddCommand(c.requirementsCmd())
	root.AddCommand(c.tokenCmd())
	return root
}

func (c *cli) initConfig() {
	c.v.SetEnvPrefix("MIRRORCTL")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()
}

func (c *cli) addPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().String("server", "http://127.0.0.1:8080", "mirror server base URL")
	root.PersistentFlags().String("token", "", "bearer token for the API")
	root.PersistentFlags().Duration("timeout", 30*time.Second, "HTTP request timeout")
	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().Bool("no-color", false, "disable colored output")
	for _, name := range []string{"server", "token", "timeout", "json", "no-color"} {
		_ = c.v.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}
}

func (c *cli) bindFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		_ = c.v.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}

func (c *cli) client() *client.Client {
	cl := client.New(c.v.GetString("server"))
	cl.BearerToken = c.v.GetString("token")
	cl.Timeout = c.v.GetDuration("timeout")
	return cl
}

func (c *cli) jsonOutput() bool {
	return c.v.GetBool("json")
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// glyph renders a pass/fail mark.
func (c *cli) glyph(ok bool) string {
	if c.v.GetBool("no-color") {
		color.NoColor = true
	}
	if ok {
		return color.New(color.FgGreen).Sprint("✓")
	}
	return color.New(color.FgRed).Sprint("✗")
}
