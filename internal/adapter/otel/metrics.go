// Package otel provides OpenTelemetry instrumentation for wikirelay.
package otel

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "wikirelay"

// HTTPMiddleware instruments the ingest router. Request metrics and spans
// are recorded under the wikirelay operation name.
func HTTPMiddleware(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, meterName)
}

// Metrics holds all wikirelay metric instruments.
type Metrics struct {
	EventsReceived   metric.Int64Counter
	EventsSuppressed metric.Int64Counter
	Deliveries       metric.Int64Counter
	DeliveryFailures metric.Int64Counter
	DeliveryDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.EventsReceived, err = meter.Int64Counter("wikirelay.events.received",
		metric.WithDescription("Number of wiki events received"))
	if err != nil {
		return nil, err
	}

	m.EventsSuppressed, err = meter.Int64Counter("wikirelay.events.suppressed",
		metric.WithDescription("Number of wiki events dropped by the suppression filter"))
	if err != nil {
		return nil, err
	}

	m.Deliveries, err = meter.Int64Counter("wikirelay.deliveries",
		metric.WithDescription("Number of webhook delivery attempts"))
	if err != nil {
		return nil, err
	}

	m.DeliveryFailures, err = meter.Int64Counter("wikirelay.deliveries.failed",
		metric.WithDescription("Number of failed webhook deliveries"))
	if err != nil {
		return nil, err
	}

	m.DeliveryDuration, err = meter.Float64Histogram("wikirelay.delivery.duration_seconds",
		metric.WithDescription("Webhook delivery duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
