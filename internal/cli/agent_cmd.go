package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/tui"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Inspect agents discovered under .claude/",
	}

	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentShowCmd())
	cmd.AddCommand(newAgentReloadCmd())
	cmd.AddCommand(newAgentNextCmd())
	return cmd
}

func newAgentListCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			c := openCatalog()
			agents := c.List()
			if kind != "" {
				k, err := domain.ParseAgentKind(strings.ToLower(kind))
				if err != nil {
					return err
				}
				agents = c.ListKind(k)
			}

			out := cmd.OutOrStdout()
			if len(agents) == 0 {
				fmt.Fprintf(out, "No agents found under %s\n", c.Root())
				return nil
			}
			ws := openSession().Current()
			for _, a := range agents {
				assigned := ""
				if ws.HasAgent(a.ID) {
					assigned = " (in " + ws.ID + ")"
				}
				fmt.Fprintf(out, "  %s %-8s %-24s %s%s\n", tui.Swatch(a.Color), a.Kind, a.ID, a.DisplayLabel(), assigned)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only this kind (command, skill, agent)")
	return cmd
}

func newAgentShowCmd() *cobra.Command {
	var body bool

	cmd := &cobra.Command{
		Use:   "show [agent-id]",
		Short: "Show an agent (default: the current one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			var id string
			if len(args) > 0 {
				id = args[0]
			} else {
				_, ref, ok := openSession().CurrentAgent()
				if !ok {
					return domain.ErrNoAgentsEnabled
				}
				id = ref.ID
			}

			c := openCatalog()
			a, err := c.Lookup(id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Agent: %s (%s)\n", a.DisplayLabel(), a.ID)
			fmt.Fprintf(out, "  Kind:        %s\n", a.Kind)
			if a.Description != "" {
				fmt.Fprintf(out, "  Description: %s\n", a.Description)
			}
			if a.Version != "" {
				fmt.Fprintf(out, "  Version:     %s\n", a.Version)
			}
			fmt.Fprintf(out, "  Color:       %s %s\n", tui.Swatch(a.Color), a.Color)
			fmt.Fprintf(out, "  Source:      %s\n", a.Source)
			if len(a.Tools) > 0 {
				fmt.Fprintf(out, "  Tools:       %s\n", strings.Join(a.Tools, ", "))
			}
			if len(a.Allowed) > 0 {
				fmt.Fprintf(out, "  Allowed:     %s\n", strings.Join(a.Allowed, ", "))
			}
			if !body {
				return nil
			}
			content, err := c.LoadContent(a)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%s\n", content)
			return nil
		},
	}

	cmd.Flags().BoolVar(&body, "body", false, "also print the prompt body")
	return cmd
}

func newAgentReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload [agent-id]",
		Short: "Re-read one agent definition, or rescan all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			c := openCatalog()
			if len(args) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d agent(s) under %s\n", len(c.ScanAll()), c.Root())
				return nil
			}
			a, err := c.Reload(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reloaded %s from %s\n", a.ID, a.Source)
			return nil
		},
	}
}

func newAgentNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Cycle the current workspace to its next enabled agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			s := openSession()
			res := s.NextAgent()
			// The agent cursor is only written with the collection.
			if err := s.Save(); err != nil {
				return err
			}
			printCycle(cmd.OutOrStdout(), res)
			return nil
		},
	}
}
