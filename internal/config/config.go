// Package config reads ledger settings from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mfenderov/ledgerkit/internal/apiclient"
	"github.com/mfenderov/ledgerkit/internal/credstore"
	"github.com/mfenderov/ledgerkit/internal/schema"
	"github.com/mfenderov/ledgerkit/internal/storage/migrations"
)

// Prefix is prepended to every variable name.
const Prefix = "LEDGER"

// Config holds everything the CLI needs to reach the database, the API and
// the credential store.
type Config struct {
	Dialect schema.Dialect
	// DBPath is the SQLite database file.
	DBPath string
	// DSN is the Postgres connection string.
	DSN string

	APIURL string

	CredentialBackend string
	CredentialsPath   string
	KeyringService    string

	RevertPolicy migrations.RevertPolicy
	SkipBackfill bool

	LogLevel log.Level
}

// Load reads the given .env files (".env" when none are named; missing files
// are skipped) and then the environment. Variables already set in the
// environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from LEDGER_* variables.
func FromEnv() (*Config, error) {
	dialect, err := schema.ParseDialect(GetEnv("DIALECT", ""))
	if err != nil {
		return nil, err
	}
	policy, err := migrations.ParseRevertPolicy(GetEnv("REVERT_POLICY", ""))
	if err != nil {
		return nil, err
	}
	skip, err := getBool("SKIP_BACKFILL", false)
	if err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("%s_LOG_LEVEL: %w", Prefix, err)
	}

	cfg := &Config{
		Dialect:           dialect,
		DBPath:            GetEnv("DB", DefaultDBPath()),
		DSN:               GetEnv("DSN", ""),
		APIURL:            GetEnv("API_URL", apiclient.DefaultBaseURL),
		CredentialBackend: GetEnv("CREDENTIAL_BACKEND", credstore.BackendFile),
		CredentialsPath:   GetEnv("CREDENTIALS", credstore.DefaultPath()),
		KeyringService:    GetEnv("KEYRING_SERVICE", credstore.DefaultService),
		RevertPolicy:      policy,
		SkipBackfill:      skip,
		LogLevel:          level,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	if c.Dialect == schema.Postgres && c.DSN == "" {
		return fmt.Errorf("%s_DSN is required for the postgres dialect", Prefix)
	}
	if c.Dialect == schema.SQLite && c.DBPath == "" {
		return fmt.Errorf("%s_DB is required for the sqlite dialect", Prefix)
	}
	return nil
}

// DataSource returns what storage.Open expects for the configured dialect.
func (c *Config) DataSource() string {
	if c.Dialect == schema.Postgres {
		return c.DSN
	}
	return c.DBPath
}

// MigrationOptions returns the unit options derived from the config.
func (c *Config) MigrationOptions(logger *log.Logger) migrations.Options {
	return migrations.Options{
		Revert:       c.RevertPolicy,
		SkipBackfill: c.SkipBackfill,
		Logger:       logger,
	}
}

// DefaultDBPath returns ~/.ledger/ledger.db.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "~"
	}
	return filepath.Join(home, ".ledger", "ledger.db")
}

// GetEnv returns LEDGER_<key>, or fallback when unset.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(Prefix + "_" + key); ok {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	raw, ok := os.LookupEnv(Prefix + "_" + key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s_%s: %w", Prefix, key, err)
	}
	return v, nil
}
