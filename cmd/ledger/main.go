package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mfenderov/ledgerkit/internal/apiclient"
	"github.com/mfenderov/ledgerkit/internal/config"
	"github.com/mfenderov/ledgerkit/internal/credstore"
	"github.com/mfenderov/ledgerkit/internal/schema"
	"github.com/mfenderov/ledgerkit/internal/storage"
	"github.com/mfenderov/ledgerkit/internal/storage/migrations"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	Version = "dev"
	logger  = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
	})

	dbPath            string
	dialect           string
	dsn               string
	apiURL            string
	credentialsPath   string
	credentialBackend string
	revertPolicy      string
	skipBackfill      bool
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("78"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Ledger schema migrations and authenticated API access",
	Long: titleStyle.Render("ledger") + " - schema migrations for the ledger database\n\n" +
		"Applies and reverts the users/accounts migrations on SQLite or Postgres,\n" +
		"and talks to the ledger API with the locally stored session token.",
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&dbPath, "db", config.DefaultDBPath(), "path to SQLite database file (LEDGER_DB)")
	flags.StringVar(&dialect, "dialect", string(schema.SQLite), "database dialect: sqlite or postgres (LEDGER_DIALECT)")
	flags.StringVar(&dsn, "dsn", "", "Postgres connection string (LEDGER_DSN)")
	flags.StringVar(&apiURL, "api-url", apiclient.DefaultBaseURL, "API base URL (LEDGER_API_URL)")
	flags.StringVar(&credentialsPath, "credentials", credstore.DefaultPath(), "credentials file (LEDGER_CREDENTIALS)")
	flags.StringVar(&credentialBackend, "credential-backend", credstore.BackendFile, "where the session token lives: file or keyring (LEDGER_CREDENTIAL_BACKEND)")
	flags.StringVar(&revertPolicy, "revert-policy", string(migrations.RevertAsAuthored), "authored keeps the auth type enum on revert, complete drops it (LEDGER_REVERT_POLICY)")
	flags.BoolVar(&skipBackfill, "skip-backfill", false, "skip the balance_type backfill statement (LEDGER_SKIP_BACKFILL)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the environment and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		c.DBPath = dbPath
	}
	if flags.Changed("dialect") {
		if c.Dialect, err = schema.ParseDialect(dialect); err != nil {
			return err
		}
	}
	if flags.Changed("dsn") {
		c.DSN = dsn
	}
	if flags.Changed("api-url") {
		c.APIURL = apiURL
	}
	if flags.Changed("credentials") {
		c.CredentialsPath = credentialsPath
	}
	if flags.Changed("credential-backend") {
		c.CredentialBackend = credentialBackend
	}
	if flags.Changed("revert-policy") {
		if c.RevertPolicy, err = migrations.ParseRevertPolicy(revertPolicy); err != nil {
			return err
		}
	}
	if flags.Changed("skip-backfill") {
		c.SkipBackfill = skipBackfill
	}
	if err := c.Validate(); err != nil {
		return err
	}

	logger.SetLevel(c.LogLevel)
	cfg = c
	return nil
}

func getStore() (*storage.Store, error) {
	if cfg.Dialect == schema.SQLite && cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, err
		}
	}
	return storage.Open(cfg.Dialect, cfg.DataSource(),
		storage.WithLogger(logger),
		storage.WithMigrationOptions(cfg.MigrationOptions(logger)))
}

// getMigratedStore refuses to hand out a store whose schema is behind.
func getMigratedStore(ctx context.Context) (*storage.Store, error) {
	store, err := getStore()
	if err != nil {
		return nil, err
	}
	version, err := store.GetSchemaVersion(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	if latest := migrations.Latest(); version < latest {
		store.Close()
		return nil, fmt.Errorf("database schema is at version %d of %d; run 'ledger migrate up' first", version, latest)
	}
	return store, nil
}

func getCredentials() (credstore.Store, error) {
	return credstore.Open(cfg.CredentialBackend, cfg.CredentialsPath, cfg.KeyringService)
}

func getAPIClient() (*apiclient.Client, error) {
	creds, err := getCredentials()
	if err != nil {
		return nil, err
	}
	return apiclient.New(cfg.APIURL, creds, apiclient.WithLogger(logger))
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and apply all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(cmd.Context()); err != nil {
			return err
		}
		version, err := store.GetSchemaVersion(cmd.Context())
		if err != nil {
			return err
		}

		logger.Info("Database initialized",
			"dialect", cfg.Dialect,
			"path", dimStyle.Render(cfg.DBPath),
			"version", version)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print version information",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("ledger")+" "+dimStyle.Render(Version))
	},
}
