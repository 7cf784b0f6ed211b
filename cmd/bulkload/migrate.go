package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bit2swaz/bulkload/internal/config"
	"github.com/bit2swaz/bulkload/internal/schema"
	"github.com/bit2swaz/bulkload/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the contacts schema if the database does not exist yet",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) (err error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	s, err := store.Open(cmd.Context(), cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close database: %w", cerr)
		}
	}()

	migrated, err := schema.NewInitializer(s, logger).EnsureSchema(cmd.Context())
	if err != nil {
		return err
	}
	if !migrated {
		logger.Info("Database already exists, nothing to migrate")
	}
	return nil
}
