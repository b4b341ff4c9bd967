package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/templates"
)

func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"tpl"},
		Short:   "Manage per-agent input templates",
	}

	cmd.AddCommand(newTemplateListCmd())
	cmd.AddCommand(newTemplateShowCmd())
	cmd.AddCommand(newTemplateSetCmd())
	cmd.AddCommand(newTemplateValidateCmd())
	cmd.AddCommand(newTemplatePreviewCmd())
	cmd.AddCommand(newTemplateToggleCmd("enable", true))
	cmd.AddCommand(newTemplateToggleCmd("disable", false))
	cmd.AddCommand(newTemplateDeleteCmd())
	return cmd
}

func newTemplateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			defs := openTemplates().List()
			if len(defs) == 0 {
				fmt.Fprintln(out, "No templates")
				return
			}
			for _, d := range defs {
				state := "enabled"
				if !d.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(out, "  %-24s %-8s vars=%s\n", d.AgentID, state, strings.Join(d.Variables, ","))
			}
		},
	}
}

func newTemplateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Print an agent's template text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, ok := openTemplates().Template(args[0])
			if !ok {
				return fmt.Errorf("no template for agent %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), d.Text)
			return nil
		},
	}
}

// readTemplateText takes the text from --text, --file or stdin.
func readTemplateText(cmd *cobra.Command, text, file string) (string, error) {
	switch {
	case cmd.Flags().Changed("text"):
		return text, nil
	case file == "-":
		return readStdin()
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading template: %w", err)
		}
		return string(data), nil
	default:
		return "", errors.New("template text required (--text or --file)")
	}
}

func printIssues(w io.Writer, r templates.Result) {
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error:   %s\n", e)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}

func newTemplateSetCmd() *cobra.Command {
	var (
		text     string
		file     string
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "set <agent-id>",
		Short: "Create or replace an agent's template",
		Long: "Create or replace an agent's template. Variables: {{input}},\n" +
			"{{context_folder}}, {{focus_file}}.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readTemplateText(cmd, text, file)
			if err != nil {
				return err
			}
			r, err := openTemplates().Save(args[0], body, !disabled)
			printIssues(cmd.ErrOrStderr(), r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved template for %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "template text")
	cmd.Flags().StringVar(&file, "file", "", "read template text from a file (- for stdin)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "save without enabling")
	return cmd
}

func newTemplateValidateCmd() *cobra.Command {
	var (
		text string
		file string
	)

	cmd := &cobra.Command{
		Use:   "validate [agent-id]",
		Short: "Check template text, or a saved template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body string
			if len(args) > 0 && !cmd.Flags().Changed("text") && file == "" {
				d, ok := openTemplates().Template(args[0])
				if !ok {
					return fmt.Errorf("no template for agent %q", args[0])
				}
				body = d.Text
			} else {
				var err error
				if body, err = readTemplateText(cmd, text, file); err != nil {
					return err
				}
			}

			r := templates.Validate(body)
			printIssues(cmd.OutOrStdout(), r)
			if !r.OK() {
				return fmt.Errorf("template has %d error(s)", len(r.Errors))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "template text")
	cmd.Flags().StringVar(&file, "file", "", "read template text from a file (- for stdin)")
	return cmd
}

func newTemplatePreviewCmd() *cobra.Command {
	var (
		in     string
		folder string
		focus  string
	)

	cmd := &cobra.Command{
		Use:   "preview <agent-id>",
		Short: "Render an agent's template with sample values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sample := map[string]string{}
			if cmd.Flags().Changed("input") {
				sample[domain.VarInput] = in
			}
			if cmd.Flags().Changed("folder") {
				sample[domain.VarContextFolder] = folder
			}
			if cmd.Flags().Changed("focus") {
				sample[domain.VarFocusFile] = focus
			}
			text, ok := openTemplates().Preview(args[0], sample)
			if !ok {
				return fmt.Errorf("no enabled template for agent %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "input", "", "sample input")
	cmd.Flags().StringVar(&folder, "folder", "", "sample context_folder")
	cmd.Flags().StringVar(&focus, "focus", "", "sample focus_file")
	return cmd
}

func newTemplateToggleCmd(name string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <agent-id>",
		Short: strings.ToUpper(name[:1]) + name[1:] + " an agent's template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openTemplates().SetEnabled(args[0], enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template for %s %sd\n", args[0], name)
			return nil
		},
	}
}

func newTemplateDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <agent-id>",
		Aliases: []string{"rm"},
		Short:   "Delete an agent's template",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openTemplates().Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted template for %s\n", args[0])
			return nil
		},
	}
}
