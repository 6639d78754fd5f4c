/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/netsync/apiserver/config"
	"github.com/netsync/apiserver/internal/db"
	"github.com/spf13/cobra"
)

var migrationsURL string

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run Postgres schema migrations",
	Long: `Run Postgres schema migrations for the accounts table. Only needed
with STORE_DRIVER=postgres; the mongo store creates its indexes on startup.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := mustLoad()
		if cfg.Store.Driver != config.StoreDriverPostgres {
			return fmt.Errorf("migrate needs STORE_DRIVER=postgres, got %q", cfg.Store.Driver)
		}

		migrator, err := migrate.New(migrationsURL, db.PostgresURL(cfg.Database))
		if err != nil {
			return fmt.Errorf("init migrator failed: %w", err)
		}
		defer func() {
			_, _ = migrator.Close()
		}()

		if err := migrator.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("schema up to date")
				return nil
			}
			return fmt.Errorf("migrate up failed: %w", err)
		}

		version, _, err := migrator.Version()
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		log.Info("schema migrated", "version", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)

	migrateCmd.PersistentFlags().StringVar(&migrationsURL, "source", "file://internal/db/migrations", "Migration source URL")
}
