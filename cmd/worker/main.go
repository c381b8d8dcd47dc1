package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"chwone-controlplane/pkg/config"
	"chwone-controlplane/pkg/db"
	"chwone-controlplane/pkg/gen"
	"chwone-controlplane/pkg/hashistack/secretmanager"
	"chwone-controlplane/pkg/logger"
	"chwone-controlplane/pkg/otelcol"
	"chwone-controlplane/pkg/redis"
	"chwone-controlplane/pkg/task"
	"chwone-controlplane/services/license"
)

// The worker runs the asynq server with the license sweep handlers and the
// daily scheduler that enqueues them.
func main() {
	app := fx.New(
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		db.Module,
		redis.Module,
		gen.Module,
		task.Client,
		task.Server,
		license.Module,
		license.WorkerModule,
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
