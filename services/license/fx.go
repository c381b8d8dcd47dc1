package license

import (
	"chwone-controlplane/pkg/httpapi"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module provides the license service.
var Module = fx.Module("license.service",
	fx.Provide(
		provideMetrics,
		NewService,
	),
)

// HTTPModule mounts the license routes on the /v1 group.
var HTTPModule = fx.Module("license.http",
	fx.Provide(NewHandler),
	fx.Invoke(func(g httpapi.APIGroup, h *Handler) {
		h.Register(g.RouterGroup)
	}),
)

// WorkerModule adds the asynq handlers and the daily sweep scheduler.
var WorkerModule = fx.Module("license.worker",
	fx.Provide(NewScheduler),
	fx.Invoke(RegisterTasks, StartScheduler),
)

func provideMetrics() (*Metrics, error) {
	return NewMetrics(prometheus.DefaultRegisterer)
}
