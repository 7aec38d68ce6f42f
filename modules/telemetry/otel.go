// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc flushes and stops the installed providers.
type ShutdownFunc func(ctx context.Context) error

// Init installs the global propagator and, in ModeManual, OTLP backed tracer
// and meter providers. The returned ShutdownFunc is never nil on success.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.ServiceName == "" {
		return nil, errors.New("telemetry: ServiceName is required")
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 5 * time.Second
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	switch cfg.Mode {
	case ModeDisabled, "":
		slog.InfoContext(ctx, "telemetry disabled")
		return func(context.Context) error { return nil }, nil
	case ModeManual:
		return installProviders(ctx, cfg)
	default:
		return nil, fmt.Errorf("telemetry: unknown Mode %q", cfg.Mode)
	}
}

func installProviders(parent context.Context, cfg Config) (ShutdownFunc, error) {
	ctx, cancel := context.WithTimeout(parent, cfg.StartupTimeout)
	defer cancel()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}
	exp := exportersFor(cfg)

	spans, err := exp.spans(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SamplerRatio)),
	)
	otel.SetTracerProvider(tp)
	shutdowns := []func(context.Context) error{tp.Shutdown}

	if !cfg.DisableMetrics {
		metrics, err := exp.metrics(ctx)
		if err != nil {
			_ = tp.Shutdown(parent)
			return nil, fmt.Errorf("telemetry: build metric exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics)),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	slog.InfoContext(ctx, "telemetry initialized",
		slog.String("protocol", cfg.Protocol),
		slog.String("endpoint", cfg.OTLPEndpoint),
		slog.Bool("metrics", !cfg.DisableMetrics),
	)

	return func(ctx context.Context) error {
		var errs []error
		for _, shutdown := range shutdowns {
			if err := shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("telemetry: shutdown: %w", err)
		}
		return nil
	}, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}
	for k, v := range cfg.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
}

// exporters builds the OTLP span and metric exporters for one protocol.
type exporters struct {
	spans   func(context.Context) (sdktrace.SpanExporter, error)
	metrics func(context.Context) (sdkmetric.Exporter, error)
}

// exportersFor picks grpc or http/protobuf. An endpoint with a scheme is a
// base URL; the http exporters then need the signal path appended.
func exportersFor(cfg Config) exporters {
	ep := cfg.OTLPEndpoint
	isURL := strings.HasPrefix(ep, "http://") || strings.HasPrefix(ep, "https://")
	signalURL := func(path string) string { return strings.TrimSuffix(ep, "/") + path }

	if cfg.Protocol == "grpc" {
		var topts []otlptracegrpc.Option
		var mopts []otlpmetricgrpc.Option
		switch {
		case isURL:
			topts = append(topts, otlptracegrpc.WithEndpointURL(ep))
			mopts = append(mopts, otlpmetricgrpc.WithEndpointURL(ep))
		case ep != "":
			topts = append(topts, otlptracegrpc.WithEndpoint(ep))
			mopts = append(mopts, otlpmetricgrpc.WithEndpoint(ep))
		}
		if cfg.Insecure {
			topts = append(topts, otlptracegrpc.WithInsecure())
			mopts = append(mopts, otlpmetricgrpc.WithInsecure())
		}
		return exporters{
			spans: func(ctx context.Context) (sdktrace.SpanExporter, error) {
				return otlptracegrpc.New(ctx, topts...)
			},
			metrics: func(ctx context.Context) (sdkmetric.Exporter, error) {
				return otlpmetricgrpc.New(ctx, mopts...)
			},
		}
	}

	var topts []otlptracehttp.Option
	var mopts []otlpmetrichttp.Option
	switch {
	case isURL:
		topts = append(topts, otlptracehttp.WithEndpointURL(signalURL("/v1/traces")))
		mopts = append(mopts, otlpmetrichttp.WithEndpointURL(signalURL("/v1/metrics")))
	case ep != "":
		topts = append(topts, otlptracehttp.WithEndpoint(ep))
		mopts = append(mopts, otlpmetrichttp.WithEndpoint(ep))
	}
	if cfg.Insecure {
		topts = append(topts, otlptracehttp.WithInsecure())
		mopts = append(mopts, otlpmetrichttp.WithInsecure())
	}
	return exporters{
		spans: func(ctx context.Context) (sdktrace.SpanExporter, error) {
			return otlptracehttp.New(ctx, topts...)
		},
		metrics: func(ctx context.Context) (sdkmetric.Exporter, error) {
			return otlpmetrichttp.New(ctx, mopts...)
		},
	}
}

// newSampler: 0 never, 1 always, anything between is parent based.
func newSampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.NeverSample()
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
