package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vecsearch/internal/persistence"
	"github.com/fyrsmithlabs/vecsearch/internal/semantic"
)

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check vecsearchd server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			status, err := c.Health(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("failed to reach %s: %w", c.BaseURL(), err)
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]string{"status": status})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server Status: %s\n", status)
			fmt.Fprintf(cmd.OutOrStdout(), "Server URL: %s\n", c.BaseURL())
			return nil
		},
	}
}

func newEmbedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "embed <text>",
		Short: "Print the embedding of text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			v, err := c.Embed(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"vector": v})
			}
			parts := make([]string, len(v))
			for i, x := range v {
				parts[i] = strconv.FormatFloat(float64(x), 'f', 6, 32)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s]\n", strings.Join(parts, ", "))
			return nil
		},
	}
}

func newIndexCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "index <id> <text>",
		Short: "Index text under an id",
		Long: `Index text under an id. Re-indexing an id replaces its vector.

Examples:
  vsctl index doc-1 "the quick brown fox"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			n, err := c.Index(commandContext(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]int{"indexed": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s\n", args[0])
			return nil
		},
	}
}

func newIndexBulkCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "index-bulk [file]",
		Short: "Index many items from a file or stdin",
		Long: `Index many items in one atomic request. Input is either a JSON array
of {"id","text"} objects or one such object per line.

Examples:
  vsctl index-bulk items.json
  cat items.jsonl | vsctl index-bulk -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			items, err := parseItems(content)
			if err != nil {
				return err
			}
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			n, err := c.IndexBulk(commandContext(cmd), items)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]int{"indexed": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d item(s); store holds %d\n", len(items), n)
			return nil
		},
	}
}

// parseItems accepts a JSON array or JSON lines.
func parseItems(content []byte) ([]semantic.Item, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("no items to index")
	}

	var items []semantic.Item
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("invalid item array: %w", err)
		}
		return items, nil
	}

	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var item semantic.Item
		if err := json.Unmarshal(text, &item); err != nil {
			return nil, fmt.Errorf("invalid item on line %d: %w", line, err)
		}
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	return items, nil
}

func newSearchCmd(opts *options) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the entries most similar to a query",
		Long: `Find the entries most similar to a query, best first.

Examples:
  vsctl search "brown fox"
  vsctl search "brown fox" --top-k 10 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			var k *int
			if cmd.Flags().Changed("top-k") {
				k = &topK
			}
			hits, err := c.Search(commandContext(cmd), args[0], k)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"hits": hits})
			}
			if len(hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tID\tSCORE")
			for i, h := range hits {
				fmt.Fprintf(w, "%d\t%s\t%.6f\n", i+1, h.ID, h.Score)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "maximum number of results (server default when unset)")
	return cmd
}

func newSaveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Write the server's snapshot to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			resp, err := c.Save(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("save failed: %w", err)
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", resp.Status)
			return nil
		},
	}
}

func newLoadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Replace the server's contents from its snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			resp, err := c.Load(commandContext(cmd))
			if err != nil {
				return err
			}
			if opts.asJSON {
				if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", resp.Status)
				if resp.Error != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Error: %s\n", resp.Error)
				}
			}
			if resp.Status == persistence.OutcomeLoadError.String() {
				return fmt.Errorf("load failed: %s", resp.Error)
			}
			return nil
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store size and snapshot location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			stats, err := c.Stats(commandContext(cmd))
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Entries:\t%d\n", stats.Entries)
			fmt.Fprintf(w, "Dimension:\t%d\n", stats.Dimension)
			fmt.Fprintf(w, "Snapshot:\t%s\n", stats.SnapshotPath)
			return w.Flush()
		},
	}
}
