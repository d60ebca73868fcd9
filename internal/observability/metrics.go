package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/supportdesk/ticketsync/internal/config"
)

type appMetrics struct {
	eventCounter      metric.Int64Counter
	connectionCounter metric.Int64Counter
	inboxCounter      metric.Int64Counter
	sessionCounter    metric.Int64Counter
}

var (
	metricsMu sync.RWMutex
	metrics   *appMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("ticketsync")
	eventCounter, err := meter.Int64Counter("sync.events.handled")
	if err != nil {
		return nil, err
	}
	connectionCounter, err := meter.Int64Counter("push.connection.transitions")
	if err != nil {
		return nil, err
	}
	inboxCounter, err := meter.Int64Counter("inbox.mutations")
	if err != nil {
		return nil, err
	}
	sessionCounter, err := meter.Int64Counter("session.transitions")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	metrics = &appMetrics{
		eventCounter:      eventCounter,
		connectionCounter: connectionCounter,
		inboxCounter:      inboxCounter,
		sessionCounter:    sessionCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

// RecordSyncEvent counts one handled push event with its outcome: handled,
// skipped_duplicate or malformed.
func RecordSyncEvent(event, outcome string) {
	metricsMu.RLock()
	m := metrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.eventCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("event", event),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordPushConnection(transition string) {
	metricsMu.RLock()
	m := metrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.connectionCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("transition", transition)))
}

func RecordInboxMutation(action string) {
	metricsMu.RLock()
	m := metrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.inboxCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("action", action)))
}

func RecordSessionTransition(action string) {
	metricsMu.RLock()
	m := metrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.sessionCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("action", action)))
}
