// Package cmd holds the consolectl commands.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/snehjoshi/replayconsole/pkg/client"
)

type globalFlags struct {
	server  string
	apiKey  string
	timeout time.Duration
}

// NewRootCmd builds the command tree. Each call returns an independent tree
// so tests can run commands side by side.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "consolectl",
		Short: "Drive a replayconsole server",
		Long: `consolectl talks to a replayconsole server over its REST API.

Sessions hold one console store each. Messages are ingested in batches
from JSON Lines files, one console message per line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&g.server, "server", "s", envOr("REPLAYCONSOLE_SERVER", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&g.apiKey, "api-key", os.Getenv("REPLAYCONSOLE_AUTH_API_KEY"), "API key sent as X-Api-Key")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "per-request timeout")

	root.AddCommand(
		newSessionsCmd(g),
		newCreateCmd(g),
		newDeleteCmd(g),
		newIngestCmd(g),
		newVisibleCmd(g),
		newClearCmd(g),
		newClearLogpointCmd(g),
		newFilterCmd(g),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		printError(root, err)
		return err
	}
	return nil
}

func (g *globalFlags) client() *client.Client {
	opts := []client.ClientOption{client.WithTimeout(g.timeout)}
	if g.apiKey != "" {
		opts = append(opts, client.WithAPIKey(g.apiKey))
	}
	return client.New(g.server, opts...)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printError(c *cobra.Command, err error) {
	fmt.Fprintf(c.ErrOrStderr(), "consolectl: %v\n", err)
}
