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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics holds counters and histograms for HTTP endpoint instrumentation
type HTTPMetrics struct {
	requestCounter    metric.Int64Counter
	durationHisto     metric.Float64Histogram
	responseSizeHisto metric.Int64Histogram
}

// NewHTTPMetrics creates a new HTTPMetrics instance for a given service name
func NewHTTPMetrics(serviceName string) (*HTTPMetrics, error) {
	meter := otel.Meter(serviceName)

	requestCounter, err := meter.Int64Counter(
		"http_server_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	durationHisto, err := meter.Float64Histogram(
		"http_server_duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	responseSizeHisto, err := meter.Int64Histogram(
		"http_server_response_size",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		requestCounter:    requestCounter,
		durationHisto:     durationHisto,
		responseSizeHisto: responseSizeHisto,
	}, nil
}

// RecordRequest records a single HTTP request with its attributes
func (m *HTTPMetrics) RecordRequest(ctx context.Context, method, endpoint, statusCode string, durationMs float64, responseSize int64) {
	attrs := []attribute.KeyValue{
		attribute.String("http_method", method),
		attribute.String("http_endpoint", endpoint),
		attribute.String("http_status_code", statusCode),
	}

	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.durationHisto.Record(ctx, durationMs, metric.WithAttributes(attrs...))
	if responseSize > 0 {
		m.responseSizeHisto.Record(ctx, responseSize, metric.WithAttributes(attrs...))
	}
}

// CascadeMetrics instruments username rename cascades.
type CascadeMetrics struct {
	renames       metric.Int64Counter
	durationHisto metric.Float64Histogram
	affectedRows  metric.Int64Counter
}

// NewCascadeMetrics registers the rename cascade instruments on the global meter.
func NewCascadeMetrics(serviceName string) (*CascadeMetrics, error) {
	meter := otel.Meter(serviceName)

	renames, err := meter.Int64Counter(
		"profile_renames_total",
		metric.WithDescription("Username rename cascades by outcome"),
		metric.WithUnit("{rename}"),
	)
	if err != nil {
		return nil, err
	}

	durationHisto, err := meter.Float64Histogram(
		"profile_rename_duration",
		metric.WithDescription("Rename cascade duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	affectedRows, err := meter.Int64Counter(
		"profile_rename_documents_total",
		metric.WithDescription("Documents rewritten by rename cascades, per step"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, err
	}

	return &CascadeMetrics{
		renames:       renames,
		durationHisto: durationHisto,
		affectedRows:  affectedRows,
	}, nil
}

// RecordRename records one finished cascade. A nil receiver is a no-op.
func (m *CascadeMetrics) RecordRename(ctx context.Context, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.renames.Add(ctx, 1, attrs)
	m.durationHisto.Record(ctx, float64(took.Microseconds())/1000, attrs)
}

// RecordStep records how many documents one cascade step rewrote.
func (m *CascadeMetrics) RecordStep(ctx context.Context, step string, affected int64) {
	if m == nil || affected <= 0 {
		return
	}
	m.affectedRows.Add(ctx, affected, metric.WithAttributes(attribute.String("step", step)))
}
