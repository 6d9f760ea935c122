package migrate

import (
	"context"
	"fmt"

	"github.com/Syntia28/nikos/pkg/config"
	"github.com/Syntia28/nikos/pkg/db"
	"github.com/Syntia28/nikos/pkg/logger"
)

// MaybeRun applies migrations on boot when the SQL document store is selected and
// either the app runs in dev or auto-migrate is enabled. SQLite always migrates.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil || !cfg.DocStore.UsesSQL() {
		return nil
	}
	if cfg.DocStore.Driver != config.DocStoreSQLite && !(cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate) {
		return nil
	}

	dialect, err := Dialect(client.Driver())
	if err != nil {
		return err
	}
	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": dialect})
	logg.Info(ctx, "running goose migrations")

	if err := Run(ctx, sqlDB, dialect, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
