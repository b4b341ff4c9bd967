package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soyeahso/agentclick/internal/config"
	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/templates"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and edit settings.yaml by dotted key",
		Long: `Keys follow the settings file layout, for example gateway.port,
pipeline.retry.maxRetries or hotkeys.bindings.ctrl+alt+e. Edits go to the
file on disk; defaults that were never written are not shown by get.`,
	}
	cmd.AddCommand(newConfigGetCmd(), newConfigSetCmd(), newConfigUnsetCmd(), newConfigPathCmd(), newConfigValidateCmd())
	return cmd
}

// withRawConfig parses key, loads the settings file as a tree and hands
// both to fn. When fn reports a change the tree is written back.
func withRawConfig(key string, fn func(raw map[string]any, path []string) (changed bool, err error)) error {
	path, err := config.ParseConfigPath(key)
	if err != nil {
		return err
	}
	raw, err := config.LoadRaw(paths.Config)
	if err != nil {
		return err
	}
	changed, err := fn(raw, path)
	if err != nil || !changed {
		return err
	}
	return config.SaveRaw(paths.Config, raw)
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a value or section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRawConfig(args[0], func(raw map[string]any, path []string) (bool, error) {
				val, ok := config.GetValueAtPath(raw, path)
				if !ok {
					return false, fmt.Errorf("%s is not set in %s", args[0], paths.Config)
				}
				return false, printValue(cmd.OutOrStdout(), val)
			})
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a value; numbers and booleans are stored typed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := parseValue(args[1])
			err := withRawConfig(args[0], func(raw map[string]any, path []string) (bool, error) {
				return true, config.SetValueAtPath(raw, path, value)
			})
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], value)
			}
			return err
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a value so its default applies again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withRawConfig(args[0], func(raw map[string]any, path []string) (bool, error) {
				if !config.UnsetValueAtPath(raw, path) {
					return false, fmt.Errorf("%s is not set in %s", args[0], paths.Config)
				}
				return true, nil
			})
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			}
			return err
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), paths.Config)
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the settings, workspaces and templates files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireConfig(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			issues := config.Validate(&cfg)

			// Unreadable workspaces are skipped by Load and reported in the log.
			workspaces, _, err := config.NewWorkspaceStore(paths.Workspaces, log).Load()
			if err != nil {
				return err
			}
			for _, ws := range workspaces {
				for _, is := range config.ValidateWorkspace(ws, strict) {
					is.Path = "workspaces." + ws.ID + "." + is.Path
					issues = append(issues, is)
				}
			}
			for _, d := range openTemplates().List() {
				r := templates.Validate(d.Text)
				for _, is := range append(r.Errors, r.Warnings...) {
					is.Path = "templates." + d.AgentID + "." + is.Path
					issues = append(issues, is)
				}
			}

			errs, warnings := domain.SplitIssues(issues)
			for _, w := range warnings {
				fmt.Fprintf(out, "  warning: %s\n", w)
			}
			for _, e := range errs {
				fmt.Fprintf(out, "  error:   %s\n", e)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d validation error(s)", len(errs))
			}
			fmt.Fprintln(out, "OK")
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat missing workspace folders as errors")
	return cmd
}

// printValue prints scalars bare and sections as YAML.
func printValue(w io.Writer, v any) error {
	switch v.(type) {
	case map[string]any, []any:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}

// parseValue reads s as a YAML scalar so "19000" is stored as an int and
// "false" as a bool. Anything that is not a plain scalar stays a string.
func parseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case bool, int, float64:
		return v
	default:
		return s
	}
}
