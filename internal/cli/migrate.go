package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/infra/sqlstore"
	"quiz-attempt-service/internal/infra/sqlstore/migrations"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	db, err := openSQL(cfg)
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("neither postgres.url nor sqlite.path is configured")
	}
	defer db.Close()
	return migrations.Migrate(ctx, db, log)
}

// openSQL returns the configured bun database, preferring Postgres, or nil
// when no SQL backend is configured.
func openSQL(cfg config.Config) (*bun.DB, error) {
	switch {
	case cfg.Postgres.URL != "":
		return sqlstore.OpenPostgres(cfg.Postgres.URL), nil
	case cfg.SQLite.Path != "":
		return sqlstore.OpenSQLite(cfg.SQLite.Path)
	default:
		return nil, nil
	}
}

// openMigratedSQL opens the SQL backend and brings its schema up to date.
func openMigratedSQL(ctx context.Context, cfg config.Config, log *slog.Logger) (*bun.DB, error) {
	db, err := openSQL(cfg)
	if err != nil || db == nil {
		return db, err
	}
	if err := migrations.Migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
