package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Skotchmaster/ean_catalog/internal/config"
	"github.com/Skotchmaster/ean_catalog/internal/db"
	"github.com/Skotchmaster/ean_catalog/internal/logging"
)

// app is the state shared by every subcommand once the root has loaded the
// configuration.
type app struct {
	envFile string
	cfg     config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "catalog",
		Short:         "EAN product catalog service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.cfg = config.Load(a.envFile)
			a.logger = logging.NewWithWriter(cmd.ErrOrStderr(), a.cfg.LogLevel).With("service", a.cfg.ServiceName)
			slog.SetDefault(a.logger)
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "path of an optional .env file")

	root.AddCommand(
		newServeCmd(a),
		newSeedAdminCmd(a),
		newImportCmd(a),
		newTemplateCmd(a),
	)
	return root
}

func (a *app) openDB(ctx context.Context) (*gorm.DB, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	gdb, err := db.Open(ctx, a.cfg.DatabaseDriver, a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.Migrate(ctx, gdb); err != nil {
		_ = db.Close(gdb)
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return gdb, nil
}
