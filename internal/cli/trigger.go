package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentclick/internal/gateway"
	"github.com/soyeahso/agentclick/internal/hotkey"
)

// remoteFlags locate a running gateway.
type remoteFlags struct {
	url   string
	token string
}

func (f *remoteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "gateway base URL (default from config)")
	cmd.Flags().StringVar(&f.token, "token", "", "gateway token (default from config or AGENTCLICK_GATEWAY_TOKEN)")
}

func (f *remoteFlags) client() *gateway.Remote {
	base := f.url
	if base == "" {
		addr := gateway.ResolveBindAddr(cfg.Gateway)
		// A lan bind listens everywhere; talk to it over loopback.
		addr = strings.Replace(addr, "0.0.0.0", "127.0.0.1", 1)
		base = "http://" + addr
	}
	token := f.token
	if token == "" {
		token = gateway.ResolveAuth(cfg.Gateway.Auth).Token
	}
	return gateway.NewRemote(base, token)
}

func newTriggerCmd() *cobra.Command {
	var (
		remote    remoteFlags
		agentID   string
		workspace string
		text      string
		files     []string
		focus     string
	)

	cmd := &cobra.Command{
		Use:       "trigger <action>",
		Short:     "Fire a hotkey action on the running daemon",
		Long:      "Actions: execute, next-agent, next-workspace.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"execute", "next-agent", "next-workspace"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			action, err := hotkey.ParseAction(args[0])
			if err != nil {
				return err
			}

			req := &gateway.HotkeyRequest{
				AgentID:     agentID,
				WorkspaceID: workspace,
				Files:       files,
				FocusFile:   focus,
			}
			if cmd.Flags().Changed("text") {
				if text == "-" {
					data, err := readStdin()
					if err != nil {
						return err
					}
					text = data
				}
				req.Text = &text
			}

			ack, err := remote.client().Trigger(cmd.Context(), string(action), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s accepted\n", ack.Action)
			return nil
		},
	}

	remote.register(cmd)
	cmd.Flags().StringVar(&agentID, "agent", "", "run this agent instead of the current one (execute only)")
	cmd.Flags().StringVar(&workspace, "workspace", "", "use this workspace instead of the current one (execute only)")
	cmd.Flags().StringVar(&text, "text", "", "input text instead of the clipboard (- reads stdin)")
	cmd.Flags().StringSliceVar(&files, "file", nil, "input file(s) instead of the clipboard")
	cmd.Flags().StringVar(&focus, "focus", "", "focus_file template variable")
	return cmd
}

func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}
