package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/session"
	"github.com/soyeahso/agentclick/internal/tui"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces and their agent assignments",
	}

	cmd.AddCommand(newWorkspaceListCmd())
	cmd.AddCommand(newWorkspaceShowCmd())
	cmd.AddCommand(newWorkspaceAddCmd())
	cmd.AddCommand(newWorkspaceUpdateCmd())
	cmd.AddCommand(newWorkspaceRemoveCmd())
	cmd.AddCommand(newWorkspaceSwitchCmd())
	cmd.AddCommand(newWorkspaceNextCmd())
	cmd.AddCommand(newWorkspaceAssignCmd())
	cmd.AddCommand(newWorkspaceUnassignCmd())
	return cmd
}

func newWorkspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			s := openSession()
			current := s.Current().ID
			out := cmd.OutOrStdout()
			for _, ws := range s.Workspaces() {
				marker := " "
				if ws.ID == current {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s %-16s %-28s agents=%d/%d\n",
					marker, tui.Swatch(ws.Color), ws.ID, ws.DisplayLabel(),
					len(ws.EnabledAgents()), len(ws.Agents))
			}
			if s.Synthesized() {
				fmt.Fprintln(out, "\n(no workspaces file; showing the default workspace)")
			}
			return nil
		},
	}
}

func newWorkspaceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a workspace (default: the current one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			s := openSession()
			ws := s.Current()
			if len(args) > 0 {
				var err error
				if ws, err = s.Workspace(args[0]); err != nil {
					return err
				}
			}
			printWorkspace(cmd.OutOrStdout(), ws)
			return nil
		},
	}
}

func printWorkspace(w io.Writer, ws domain.Workspace) {
	fmt.Fprintf(w, "Workspace: %s (%s)\n", ws.DisplayLabel(), ws.ID)
	fmt.Fprintf(w, "  Folder:  %s\n", ws.Folder)
	fmt.Fprintf(w, "  Color:   %s %s\n", tui.Swatch(ws.Color), ws.Color)
	if len(ws.Agents) == 0 {
		fmt.Fprintln(w, "  Agents:  (none)")
		return
	}
	cur, hasCur := ws.CurrentAgentRef()
	fmt.Fprintln(w, "  Agents:")
	for _, a := range ws.Agents {
		marker := " "
		if hasCur && a.ID == cur.ID {
			marker = "*"
		}
		state := "enabled"
		if !a.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(w, "   %s %-8s %-24s %s\n", marker, a.Kind, a.ID, state)
	}
}

// workspaceFlags are the editable fields shared by add and update.
type workspaceFlags struct {
	name   string
	folder string
	emoji  string
	color  string
}

func (f *workspaceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "display name")
	cmd.Flags().StringVar(&f.folder, "folder", "", "context folder")
	cmd.Flags().StringVar(&f.emoji, "emoji", "", "emoji")
	cmd.Flags().StringVar(&f.color, "color", "", "accent color (#rrggbb)")
}

// apply copies the flags the user set onto ws.
func (f *workspaceFlags) apply(cmd *cobra.Command, ws *domain.Workspace) {
	if cmd.Flags().Changed("name") {
		ws.Name = f.name
	}
	if cmd.Flags().Changed("folder") {
		ws.Folder = f.folder
	}
	if cmd.Flags().Changed("emoji") {
		ws.Emoji = f.emoji
	}
	if cmd.Flags().Changed("color") {
		ws.Color = f.color
	}
}

func newWorkspaceAddCmd() *cobra.Command {
	var flags workspaceFlags

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			ws := domain.Workspace{
				ID:     args[0],
				Name:   args[0],
				Folder: projectDir(),
				Emoji:  domain.DefaultWorkspaceEmoji,
				Color:  domain.DefaultWorkspaceColor,
			}
			flags.apply(cmd, &ws)

			// A synthesized default workspace is persisted alongside the new one.
			if err := openSession().Add(ws); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added workspace %s\n", ws.ID)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newWorkspaceUpdateCmd() *cobra.Command {
	var flags workspaceFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a workspace's name, folder, emoji or color",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			if err := openSession().Update(args[0], func(ws *domain.Workspace) {
				flags.apply(cmd, ws)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated workspace %s\n", args[0])
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newWorkspaceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a workspace",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			if err := openSession().Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed workspace %s\n", args[0])
			return nil
		},
	}
}

func newWorkspaceSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <id>",
		Short: "Make a workspace current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			s := openSession()
			if err := s.Switch(args[0]); err != nil {
				return err
			}
			ws := s.Current()
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s\n", ws.DisplayLabel())
			return nil
		},
	}
}

func newWorkspaceNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Cycle to the next workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			res, err := openSession().NextWorkspace()
			if err != nil {
				return err
			}
			printCycle(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func printCycle(w io.Writer, res session.CycleResult) {
	if res.Signal != session.Advanced {
		fmt.Fprintf(w, "Unchanged: %s\n", res.Signal)
	}
	line := res.Workspace.DisplayLabel()
	if res.HasAgent {
		line += " / " + res.Agent.ID
	}
	fmt.Fprintln(w, line)
}

func newWorkspaceAssignCmd() *cobra.Command {
	var (
		kind     string
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "assign <workspace> <agent-id>",
		Short: "Assign an agent to a workspace",
		Long: "Assign an agent to a workspace. The kind is taken from the catalog when\n" +
			"the agent is known there, otherwise from --kind.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			ref := domain.AgentRef{ID: args[1], Enabled: !disabled}
			if a, ok := openCatalog().Get(args[1]); ok {
				ref.Kind = a.Kind
			}
			if cmd.Flags().Changed("kind") || ref.Kind == "" {
				k, err := domain.ParseAgentKind(strings.ToLower(kind))
				if err != nil {
					return err
				}
				ref.Kind = k
			}
			if err := openSession().Assign(args[0], ref); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s %s to %s\n", ref.Kind, ref.ID, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(domain.KindCommand), "agent kind when not in the catalog (command, skill, agent)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "assign without enabling")
	return cmd
}

func newWorkspaceUnassignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <workspace> <agent-id>",
		Short: "Remove an agent from a workspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			if err := openSession().Unassign(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unassigned %s from %s\n", args[1], args[0])
			return nil
		},
	}
}
