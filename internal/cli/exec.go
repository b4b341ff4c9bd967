package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentclick/internal/input"
	"github.com/soyeahso/agentclick/internal/notify"
	"github.com/soyeahso/agentclick/internal/pipeline"
)

func newExecCmd() *cobra.Command {
	var (
		agentID     string
		workspace   string
		text        string
		files       []string
		focus       string
		noClipboard bool
	)

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run one agent invocation and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := appOptions{
				Prompter: input.LinePrompter{In: os.Stdin, Out: cmd.ErrOrStderr()},
				Extra: notify.SinkFunc(func(_ context.Context, n notify.Notification) {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s: %s\n", n.Level, n.Title, n.Message)
				}),
			}
			if noClipboard {
				opts.Clipboard = &input.MemoryClipboard{}
			}

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			req := pipeline.Request{AgentID: agentID, WorkspaceID: workspace, Files: files, FocusFile: focus}
			if cmd.Flags().Changed("text") {
				if text == "-" {
					if text, err = readStdin(); err != nil {
						return err
					}
				}
				req.Text = &text
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := a.pipeline.Trigger(ctx, req)
			switch out.State {
			case pipeline.StateCompleted:
				fmt.Fprintln(cmd.OutOrStdout(), out.Result.Output)
				return nil
			case pipeline.StateAborted:
				fmt.Fprintln(cmd.ErrOrStderr(), "aborted")
				return nil
			default:
				if out.Err != nil {
					return out.Err
				}
				return fmt.Errorf("run ended in state %s", out.State)
			}
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "agent id (default: current agent)")
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace id (default: current workspace)")
	cmd.Flags().StringVar(&text, "text", "", "input text instead of the clipboard (- reads stdin)")
	cmd.Flags().StringSliceVar(&files, "file", nil, "input file(s) instead of the clipboard")
	cmd.Flags().StringVar(&focus, "focus", "", "focus_file template variable")
	cmd.Flags().BoolVar(&noClipboard, "no-clipboard", false, "leave the system clipboard untouched")
	return cmd
}
