package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"chwone-controlplane/pkg/authz"
	"chwone-controlplane/pkg/config"
	"chwone-controlplane/pkg/db"
	"chwone-controlplane/pkg/gen"
	"chwone-controlplane/pkg/hashistack/secretmanager"
	"chwone-controlplane/pkg/health"
	"chwone-controlplane/pkg/httpapi"
	"chwone-controlplane/pkg/logger"
	"chwone-controlplane/pkg/otelcol"
	"chwone-controlplane/pkg/profiling"
	"chwone-controlplane/pkg/redis"
	"chwone-controlplane/pkg/server"
	"chwone-controlplane/services/bootstrap"
	"chwone-controlplane/services/license"
)

func main() {
	app := fx.New(
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		authz.Module,
		health.Module,
		bootstrap.Module,
		license.Module,
		httpapi.Module,
		license.HTTPModule,
		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "development" {
		return &fxevent.ZapLogger{Logger: logger}
	}
	return fxevent.NopLogger
})
