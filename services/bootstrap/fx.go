package bootstrap

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module migrates the license schema during startup. It is only part of the
// API binary, so the worker never races it on DDL.
var Module = fx.Module("bootstrap",
	fx.Provide(NewService),
	fx.Invoke(registerMigration),
)

const migrateTimeout = 2 * time.Minute

func registerMigration(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.StartHook(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, migrateTimeout)
		defer cancel()

		started := time.Now()
		if err := svc.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Debug("[bootstrap] migration finished", zap.Duration("took", time.Since(started)))
		return nil
	}))
}
