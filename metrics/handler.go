package metrics

import (
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/contrib/opentelemetry"
)

const meterName = "jazz-crypto"

type MetricsHandlerOptions struct {
	// Meter defaults to the global meter provider's "jazz-crypto" meter.
	Meter             metric.Meter
	InitialAttributes attribute.Set
	OnError           func(error)
}

// MetricsHandler is a client.MetricsHandler backed by OpenTelemetry whose
// attribute set can grow after construction.
type MetricsHandler struct {
	mu      sync.RWMutex
	options MetricsHandlerOptions
	handler client.MetricsHandler
}

var _ client.MetricsHandler = (*MetricsHandler)(nil)

func NewMetricsHandler(options MetricsHandlerOptions) *MetricsHandler {
	if options.Meter == nil {
		options.Meter = otel.Meter(meterName)
	}

	return &MetricsHandler{
		options: options,
		handler: newOtelHandler(options),
	}
}

func newOtelHandler(options MetricsHandlerOptions) client.MetricsHandler {
	return opentelemetry.NewMetricsHandler(opentelemetry.MetricsHandlerOptions{
		Meter:             options.Meter,
		InitialAttributes: options.InitialAttributes,
		OnError:           options.OnError,
	})
}

// AddAttributes merges attrs into the handler's attribute set. Later values
// win for duplicate keys.
func (m *MetricsHandler) AddAttributes(attrs ...attribute.KeyValue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	merged := append(m.options.InitialAttributes.ToSlice(), attrs...)
	m.options.InitialAttributes = attribute.NewSet(merged...)
	m.handler = newOtelHandler(m.options)
}

// Attributes returns the current attribute set.
func (m *MetricsHandler) Attributes() attribute.Set {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.options.InitialAttributes
}

func (m *MetricsHandler) current() client.MetricsHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handler
}

func (m *MetricsHandler) WithTags(tags map[string]string) client.MetricsHandler {
	return m.current().WithTags(tags)
}

func (m *MetricsHandler) Counter(name string) client.MetricsCounter {
	return m.current().Counter(name)
}

func (m *MetricsHandler) Gauge(name string) client.MetricsGauge {
	return m.current().Gauge(name)
}

func (m *MetricsHandler) Timer(name string) client.MetricsTimer {
	return m.current().Timer(name)
}

// Observe records requests, latency and the outcome of fn under the
// series of op.
func Observe(handler client.MetricsHandler, op string, fn func() error) error {
	if handler == nil {
		handler = client.MetricsNopHandler
	}
	names := OperationNames(op)

	start := time.Now()
	handler.Counter(names.Requests).Inc(1)
	err := fn()
	handler.Timer(names.Latency).Record(time.Since(start))

	if err != nil {
		handler.Counter(names.Errors).Inc(1)
		return err
	}
	handler.Counter(names.Success).Inc(1)
	return nil
}
