package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentclick/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert a V1 agent_config.json into commands and workspaces",
	}
	cmd.PersistentFlags().StringVar(&source, "source", "", "legacy config (default <project>/config/agent_config.json)")

	migrator := func() *migrate.Migrator {
		return migrate.New(migrate.Options{
			ProjectDir: projectDir(),
			Source:     source,
			Workspaces: paths.Workspaces,
			Logger:     log,
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "dry-run",
		Short: "Show what a migration would create",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, _, err := migrator().Plan()
			if err != nil {
				return err
			}
			plan.Print(cmd.OutOrStdout())
			return nil
		},
	})

	var yes bool
	execute := &cobra.Command{
		Use:   "execute",
		Short: "Back up the legacy config and write commands and workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := migrator().Execute(yes)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backup:     %s\n", report.Backup)
			if report.WorkspacesBackup != "" {
				fmt.Fprintf(out, "Backup:     %s\n", report.WorkspacesBackup)
			}
			for _, p := range report.Created {
				fmt.Fprintf(out, "Created:    %s\n", p)
			}
			for _, p := range report.Skipped {
				fmt.Fprintf(out, "Skipped:    %s (exists)\n", p)
			}
			fmt.Fprintf(out, "Workspaces: %s\n", report.Workspaces)
			return nil
		},
	}
	execute.Flags().BoolVar(&yes, "yes", false, "confirm the migration")
	cmd.AddCommand(execute)

	var (
		rollbackYes bool
		backup      string
	)
	rollback := &cobra.Command{
		Use:   "rollback",
		Short: "Restore the legacy config and remove migrated commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := migrator().Rollback(rollbackYes, backup)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Restored:   %s\n", report.Restored)
			for _, p := range report.Removed {
				fmt.Fprintf(out, "Removed:    %s\n", p)
			}
			if report.Workspaces != "" {
				fmt.Fprintf(out, "Workspaces: %s\n", report.Workspaces)
			}
			return nil
		},
	}
	rollback.Flags().BoolVar(&rollbackYes, "yes", false, "confirm the rollback")
	rollback.Flags().StringVar(&backup, "backup", "", "backup file to restore (default: newest)")
	cmd.AddCommand(rollback)

	return cmd
}
