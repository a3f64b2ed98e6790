package main

import (
	"database/sql"
	"fmt"

	"research-grant-api/config"
	"research-grant-api/store"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSQLDB(func(db *sql.DB) error { return store.MigrateUp(cmd.Context(), db) })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSQLDB(func(db *sql.DB) error { return store.MigrateDown(cmd.Context(), db) })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSQLDB(func(db *sql.DB) error { return store.MigrationStatus(cmd.Context(), db) })
		},
	})

	return cmd
}

// openGorm connects to the configured MySQL database with the API's logging setup.
func openGorm() (*gorm.DB, *logrus.Logger, error) {
	settings, err := config.LoadDatabaseSettings()
	if err != nil {
		return nil, nil, err
	}
	logger, _ := config.InitLogging(config.LogOptions{Level: settings.Log.Level}, settings.IsProduction())
	db, err := config.OpenDatabase(settings, logger)
	if err != nil {
		return nil, nil, err
	}
	return db, logger, nil
}

func withSQLDB(fn func(db *sql.DB) error) error {
	db, logger, err := openGorm()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("access database pool: %w", err)
	}
	defer sqlDB.Close()

	store.SetMigrationLogger(logger)
	return fn(sqlDB)
}
