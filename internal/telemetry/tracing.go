package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName — имя трейсера ядра.
const TracerName = "github.com/groupon/backbeat-sub000"

// Ключи атрибутов спанов.
const (
	AttrEvent      = "backbeat.event"
	AttrNodeID     = "backbeat.node.id"
	AttrWorkflowID = "backbeat.workflow.id"
	AttrScheduler  = "backbeat.scheduler"
)

// SetupTracing настраивает глобальный TracerProvider с OTLP/HTTP экспортёром.
//
// Адрес коллектора берётся из стандартных переменных OTEL_EXPORTER_OTLP_*.
// Если enabled == false, остаётся no-op провайдер. Возвращает функцию
// остановки, которую нужно вызвать при завершении процесса.
func SetupTracing(ctx context.Context, serviceName string, enabled bool) (func(context.Context) error, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp.Shutdown, nil
}

// Tracer возвращает трейсер ядра из глобального провайдера.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// SetError отмечает спан как ошибочный.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(attrs...))
}
