package otelcol

import (
	"testing"

	"chwone-controlplane/pkg/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func TestTracerProviderDisabledWithoutAddr(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	tp, err := ProvideTracerProvider(lc, &config.Config{})
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(t.Context(), "noop")
	require.False(t, span.SpanContext().IsValid())
	span.End()

	lc.RequireStart().RequireStop()
}

func TestNewResourceCarriesServiceName(t *testing.T) {
	cfg := &config.Config{AppName: "chwone-controlplane", AppEnv: "test"}
	res := newResource(cfg)

	found := false
	for _, kv := range res.Attributes() {
		if string(kv.Key) == "service.name" {
			found = true
			require.Equal(t, "chwone-controlplane", kv.Value.AsString())
		}
	}
	require.True(t, found)
}

func TestSpanClientProtocol(t *testing.T) {
	cfg := &config.Config{}
	cfg.Otel.Addr = "collector:4317"

	for _, proto := range []string{"", "grpc", "GRPC", "http"} {
		cfg.Otel.Protocol = proto
		client, err := newSpanClient(cfg)
		require.NoError(t, err, proto)
		require.NotNil(t, client, proto)
	}

	cfg.Otel.Protocol = "zipkin"
	_, err := newSpanClient(cfg)
	require.ErrorContains(t, err, "zipkin")
}
