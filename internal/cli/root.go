// Package cli wires the agentclick cobra commands.
package cli

import (
	"cmp"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentclick/internal/config"
	"github.com/soyeahso/agentclick/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// loaded in PersistentPreRunE
	paths     config.Paths
	cfg       config.Config
	cfgErr    error
	log       *logging.Logger
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentclick",
		Short: "AgentClick: run Claude agents on your clipboard with a hotkey",
		Long: "AgentClick runs the selected agent of the current workspace on the clipboard\n" +
			"contents and puts the answer back, driven by hotkeys, signals or the local gateway.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return setup(cmd.ErrOrStderr()) },
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if logCloser == nil {
				return nil
			}
			return logCloser.Close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "settings file (default $AGENTCLICK_HOME/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "override logging.level ("+strings.Join(logging.ValidLevels, ", ")+")")

	cmd.AddCommand(
		newRunCmd(), newTUICmd(), newTriggerCmd(), newExecCmd(),
		newWorkspaceCmd(), newAgentCmd(), newTemplateCmd(), newHistoryCmd(),
		newMigrateCmd(), newConfigCmd(), newStatusCmd(), newVersionCmd(),
	)
	return cmd
}

// setup resolves paths, loads settings and opens the logger for every
// command. A broken settings file is kept in cfgErr so config and version
// still run; commands that need settings call requireConfig.
func setup(console io.Writer) error {
	var err error
	if paths, err = config.ResolvePaths(); err != nil {
		return err
	}
	if cfgFile != "" {
		paths.Config = cfgFile
	}
	cfg, cfgErr = config.Load(paths.Config)

	level := cmp.Or(logLevel, cfg.Logging.Level, "info")
	log, logCloser = logging.NewWithOptions(logging.Options{
		Level:        level,
		ConsoleStyle: cfg.Logging.ConsoleStyle,
		File:         cfg.Logging.File,
		Console:      console,
	})
	if cfgErr != nil {
		log.Debug().Err(cfgErr).Str("path", paths.Config).Msg("settings not loaded")
	}
	return nil
}

func requireConfig() error {
	return cfgErr
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
