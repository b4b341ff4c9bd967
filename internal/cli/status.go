package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentclick/internal/config"
	"github.com/soyeahso/agentclick/internal/gateway"
	"github.com/soyeahso/agentclick/internal/llm"
	"github.com/soyeahso/agentclick/internal/tui"
	"github.com/soyeahso/agentclick/internal/version"
)

func newStatusCmd() *cobra.Command {
	var remote remoteFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show AgentClick status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			v, commit := version.Resolved()
			fmt.Fprintf(out, "AgentClick %s (commit %s)\n\n", v, commit)

			fmt.Fprintf(out, "Config:     %s\n", paths.Config)
			fmt.Fprintf(out, "Workspaces: %s\n", paths.Workspaces)
			fmt.Fprintf(out, "Templates:  %s\n", paths.Templates)
			fmt.Fprintf(out, "Data:       %s\n", paths.Data)
			fmt.Fprintln(out)

			if cfgErr != nil {
				fmt.Fprintf(out, "Config:     error loading: %v\n", cfgErr)
				return nil
			}

			c := openCatalog()
			fmt.Fprintf(out, "Project:    %s (%d agents)\n", c.Root(), len(c.List()))

			s := openSession()
			ws, ref, ok := s.CurrentAgent()
			fmt.Fprintf(out, "Workspace:  %s %s (%d of %d)\n", tui.Swatch(ws.Color), ws.DisplayLabel(), len(ws.EnabledAgents()), len(ws.Agents))
			if ok {
				label := ref.ID
				if a, found := c.Get(ref.ID); found {
					label = a.DisplayLabel()
				}
				fmt.Fprintf(out, "Agent:      %s [%s]\n", label, ref.Kind)
			} else {
				fmt.Fprintln(out, "Agent:      (none enabled)")
			}

			providers := llm.NewRegistryFromConfig(cfg.Agent, log).List()
			fmt.Fprintf(out, "Provider:   %s (available: %s)\n", cfg.Agent.Provider, strings.Join(providers, ", "))

			if !cfg.Gateway.IsEnabled() {
				fmt.Fprintln(out, "Gateway:    disabled")
			} else {
				auth := gateway.ResolveAuth(cfg.Gateway.Auth)
				fmt.Fprintf(out, "Gateway:    %s auth=%s", gateway.ResolveBindAddr(cfg.Gateway), auth.Mode)
				ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
				st, err := remote.client().State(ctx)
				cancel()
				if err != nil {
					fmt.Fprintln(out, " (not running)")
				} else {
					fmt.Fprintf(out, " (running, pipeline=%s, clients=%d)\n", st.Pipeline, st.Clients)
				}
			}

			if cfg.History.IsEnabled() {
				if db, h, err := openHistory(); err == nil {
					n, _ := h.Count()
					db.Close()
					fmt.Fprintf(out, "History:    %d run(s)\n", n)
				} else {
					fmt.Fprintf(out, "History:    error: %v\n", err)
				}
			} else {
				fmt.Fprintln(out, "History:    disabled")
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}
			return nil
		},
	}

	remote.register(cmd)
	return cmd
}
