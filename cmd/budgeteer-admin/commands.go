package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Flags
	userRef      string
	outputFormat string

	app = &adminApp{out: os.Stdout}

	rootCmd = &cobra.Command{
		Use:   "budgeteer-admin",
		Short: "Operator tasks for a budgeteer deployment",
		Long: `budgeteer-admin runs maintenance tasks against the configured data backend.
It reads the same environment (and .env file) as the API server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.open(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations and print the schema version",
		// Only configuration is needed; opening the repository would migrate implicitly.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.loadConfig()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.migrate()
		},
	}

	usersCmd = &cobra.Command{
		Use:   "users",
		Short: "Inspect registered users",
	}

	usersListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all users with their income period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.listUsers(cmd.Context(), outputFormat)
		},
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Archive a user's current period and clear their budgets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.reset(cmd.Context(), userRef)
		},
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show a user's archived budget periods",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.history(cmd.Context(), userRef, outputFormat)
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Re-export a user's archived periods to Google Sheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.export(cmd.Context(), userRef)
		},
	}

	sessionsCmd = &cobra.Command{
		Use:   "sessions",
		Short: "Manage login sessions",
	}

	sessionsPruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.pruneSessions(cmd.Context())
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{resetCmd, historyCmd, exportCmd} {
		c.Flags().StringVarP(&userRef, "user", "u", "", "user id or email")
		_ = c.MarkFlagRequired("user")
	}
	for _, c := range []*cobra.Command{usersListCmd, historyCmd} {
		c.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table or json")
	}

	usersCmd.AddCommand(usersListCmd)
	sessionsCmd.AddCommand(sessionsPruneCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(sessionsCmd)
}
