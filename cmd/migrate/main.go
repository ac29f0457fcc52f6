// Command migrate manages the preferences schema.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pg "cybergrid/internal/adapters/postgres"
	"cybergrid/internal/config"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd creates the migrate command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Cyber Grid database schema",
		Long: `Migrate applies or rolls back the embedded SQL migrations.

The database is taken from --database-url, falling back to DATABASE_URL
(which may also come from a .env file).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("database-url", "", "Postgres connection URL")

	cmd.AddCommand(newStepCmd("up", "Apply all pending migrations", (*pg.DB).Migrate))
	cmd.AddCommand(newStepCmd("down", "Roll back the latest migration", (*pg.DB).MigrateDown))
	cmd.AddCommand(newStepCmd("status", "Print the state of every migration", (*pg.DB).MigrationStatus))
	return cmd
}

func newStepCmd(use, short string, step func(*pg.DB, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			db, err := pg.Connect(cmd.Context(), url)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := step(db, cmd.Context()); err != nil {
				return fmt.Errorf("migrate %s: %w", use, err)
			}
			return nil
		},
	}
}

var errNoDatabase = errors.New("no database configured: set --database-url or DATABASE_URL")

func databaseURL(cmd *cobra.Command) (string, error) {
	url, err := cmd.Flags().GetString("database-url")
	if err != nil {
		return "", err
	}
	if url != "" {
		return url, nil
	}
	cfg, err := config.Load()
	if err != nil && errors.Is(err, config.ErrInvalid) {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", errNoDatabase
	}
	return cfg.DatabaseURL, nil
}
