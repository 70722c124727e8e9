// Package main implements vsctl, a CLI for a running vecsearchd server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vecsearch/internal/client"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options holds flags shared by every subcommand.
type options struct {
	serverURL string
	timeout   time.Duration
	retries   int
	asJSON    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "vsctl",
		Short: "CLI for vecsearchd",
		Long: `vsctl is a command-line interface for a running vecsearchd server.
It indexes text, runs similarity searches and drives snapshot persistence.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.serverURL, "server", envOr("VECSEARCH_URL", client.DefaultBaseURL), "vecsearchd server URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-request timeout")
	root.PersistentFlags().IntVar(&opts.retries, "retries", 3, "retries for transient failures (0 disables)")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "Output results as JSON")

	root.AddCommand(
		newHealthCmd(opts),
		newEmbedCmd(opts),
		newIndexCmd(opts),
		newIndexBulkCmd(opts),
		newSearchCmd(opts),
		newSaveCmd(opts),
		newLoadCmd(opts),
		newStatsCmd(opts),
	)

	return root
}

// newClient builds an API client from the shared flags.
func (o *options) newClient() (*client.Client, error) {
	retries := o.retries
	if retries == 0 {
		retries = -1
	}
	return client.New(client.Config{
		BaseURL:    o.serverURL,
		Timeout:    o.timeout,
		MaxRetries: retries,
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// readInput reads a file argument, or stdin when the argument is "-" or
// missing.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return content, nil
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", args[0], err)
	}
	return content, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
