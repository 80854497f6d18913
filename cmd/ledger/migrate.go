package main

import (
	"fmt"
	"strconv"

	"github.com/mfenderov/ledgerkit/internal/storage"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(cmd.Context()); err != nil {
			return err
		}
		return printVersion(cmd, store)
	},
}

var migrateToCmd = &cobra.Command{
	Use:   "to <version>",
	Short: "Apply pending migrations up to and including a version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := parseVersion(args[0])
		if err != nil {
			return err
		}
		store, err := getStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.MigrateTo(cmd.Context(), version); err != nil {
			return err
		}
		return printVersion(cmd, store)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the latest migration, or everything after --to",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if cmd.Flags().Changed("to") {
			to, _ := cmd.Flags().GetInt64("to")
			err = store.RollbackTo(cmd.Context(), to)
		} else {
			err = store.Rollback(cmd.Context())
		}
		if err != nil {
			return err
		}
		return printVersion(cmd, store)
	},
}

var migrateRedoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Revert and re-apply the latest migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Redo(cmd.Context()); err != nil {
			return err
		}
		return printVersion(cmd, store)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStore()
		if err != nil {
			return err
		}
		defer store.Close()

		statuses, err := store.Status(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render("Migrations"))
		for _, st := range statuses {
			state := pendingStyle.Render("pending")
			applied := ""
			if st.Applied {
				state = successStyle.Render("applied")
				applied = dimStyle.Render(st.AppliedAt.Local().Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(out, "  %05d  %-26s %s  %s\n", st.Version, st.Name, state, applied)
		}
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStore()
		if err != nil {
			return err
		}
		defer store.Close()

		return printVersion(cmd, store)
	},
}

func printVersion(cmd *cobra.Command, store *storage.Store) error {
	version, err := store.GetSchemaVersion(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("Schema version:")+" "+successStyle.Render(strconv.FormatInt(version, 10)))
	return nil
}

func parseVersion(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid migration version %q", s)
	}
	return v, nil
}

func init() {
	migrateDownCmd.Flags().Int64("to", 0, "revert down to, but not including, this version (0 reverts everything)")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateToCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateRedoCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}
