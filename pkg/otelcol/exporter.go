package otelcol

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chwone-controlplane/pkg/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const exporterStartTimeout = 10 * time.Second

// newSpanClient picks the OTLP transport named by OTEL.PROTOCOL.
func newSpanClient(cfg *config.Config) (otlptrace.Client, error) {
	switch strings.ToLower(cfg.Otel.Protocol) {
	case "http":
		return otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(cfg.Otel.Addr),
			otlptracehttp.WithInsecure(),
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
		), nil
	case "", "grpc":
		return otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.Otel.Addr),
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithCompressor("gzip"),
		), nil
	default:
		return nil, fmt.Errorf("unsupported OTEL.PROTOCOL %q", cfg.Otel.Protocol)
	}
}

func newSpanExporter(ctx context.Context, cfg *config.Config) (sdktrace.SpanExporter, error) {
	client, err := newSpanClient(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, exporterStartTimeout)
	defer cancel()

	exp, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("start span exporter for %s: %w", cfg.Otel.Addr, err)
	}
	return exp, nil
}
