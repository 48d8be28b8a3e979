// Command paperlink-migrate applies or rolls back the schema in
// migrations/ against DATABASE_URL, using golang-migrate's postgres and
// file-source drivers directly (no teacher migration runner exists to
// adapt; wired against golang-migrate's own documented API).
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/sogos/paperlink/internal/config"
)

func main() {
	var migrationsPath string

	root := &cobra.Command{
		Use:   "paperlink-migrate",
		Short: "Applies or rolls back paperlink's PostgreSQL schema",
	}
	root.PersistentFlags().StringVar(&migrationsPath, "path", "migrations", "directory of golang-migrate source files")

	root.AddCommand(upCommand(&migrationsPath))
	root.AddCommand(downCommand(&migrationsPath))
	root.AddCommand(versionCommand(&migrationsPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func upCommand(migrationsPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Applies all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrate(*migrationsPath)
			if err != nil {
				return err
			}
			defer closeMigrate(m)
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migrate up: %w", err)
			}
			return nil
		},
	}
}

func downCommand(migrationsPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Rolls back the most recently applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrate(*migrationsPath)
			if err != nil {
				return err
			}
			defer closeMigrate(m)
			if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migrate down: %w", err)
			}
			return nil
		},
	}
}

func versionCommand(migrationsPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the currently applied migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrate(*migrationsPath)
			if err != nil {
				return err
			}
			defer closeMigrate(m)
			version, dirty, err := m.Version()
			if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
				return fmt.Errorf("migrate version: %w", err)
			}
			fmt.Printf("version=%d dirty=%v\n", version, dirty)
			return nil
		},
	}
}

func newMigrate(migrationsPath string) (*migrate.Migrate, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	m, err := migrate.New("file://"+migrationsPath, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

func closeMigrate(m *migrate.Migrate) {
	if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
		fmt.Fprintf(os.Stderr, "close migrate: source=%v db=%v\n", srcErr, dbErr)
	}
}
