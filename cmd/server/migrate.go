package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"haruboard/internal/db"
)

func migrate(_ *cobra.Command, _ []string) error {
	_, log, gdb, err := setup()
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	defer log.Sync()

	if err := db.Migrate(gdb); err != nil {
		return err
	}
	log.Info("migration complete", zap.String("tables", "credentials, profiles, posts, comments"))
	return nil
}
