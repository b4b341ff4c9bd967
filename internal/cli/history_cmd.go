package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentclick/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse the execution history",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryExportCmd())
	cmd.AddCommand(newHistoryPruneCmd())
	return cmd
}

// withHistory opens the history database for the duration of fn.
func withHistory(fn func(h *store.HistoryStore) error) error {
	if err := requireConfig(); err != nil {
		return err
	}
	db, h, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(h)
}

// queryRuns lists or searches depending on whether a query was given.
func queryRuns(h *store.HistoryStore, search, agentID string, limit int) ([]store.Run, error) {
	if search != "" {
		return h.Search(search, limit)
	}
	return h.List(limit, agentID)
}

func newHistoryListCmd() *cobra.Command {
	var (
		limit   int
		agentID string
		search  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(func(h *store.HistoryStore) error {
				runs, err := queryRuns(h, search, agentID, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				for _, r := range runs {
					fmt.Fprintf(out, "%s  %s  %-20s %-9s %-7s %s\n",
						r.ID[:min(8, len(r.ID))], r.StartedAt.Local().Format(time.DateTime),
						r.AgentID, r.State, r.Status, r.Duration.Round(time.Millisecond))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to show")
	cmd.Flags().StringVar(&agentID, "agent", "", "only runs of this agent")
	cmd.Flags().StringVar(&search, "search", "", "full-text search over inputs and outputs")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(func(h *store.HistoryStore) error {
				r, err := h.Get(args[0])
				if err != nil {
					return err
				}
				return store.Export(cmd.OutOrStdout(), []store.Run{*r}, "text")
			})
		},
	}
}

func newHistoryExportCmd() *cobra.Command {
	var (
		format  string
		output  string
		limit   int
		agentID string
		search  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export runs as text or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(func(h *store.HistoryStore) error {
				runs, err := queryRuns(h, search, agentID, limit)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("creating export file: %w", err)
					}
					defer f.Close()
					w = f
				}
				return store.Export(w, runs, format)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "text or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum runs (default: all retained)")
	cmd.Flags().StringVar(&agentID, "agent", "", "only runs of this agent")
	cmd.Flags().StringVar(&search, "search", "", "full-text search over inputs and outputs")
	return cmd
}

func newHistoryPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(func(h *store.HistoryStore) error {
				n, err := h.Prune(keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d run(s)\n", n)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 100, "runs to keep")
	return cmd
}
