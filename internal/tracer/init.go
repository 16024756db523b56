package tracer

import (
	"context"
	"log"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InitTracer installs an OTLP/HTTP trace exporter when OTEL_ENABLED=true and
// returns the provider's shutdown. Otherwise tracing stays off and the
// returned func does nothing.
func InitTracer() func(context.Context) error {
	none := func(context.Context) error { return nil }
	if os.Getenv("OTEL_ENABLED") != "true" {
		return none
	}

	endpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") != "false" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		log.Printf("Warn: Failed to create OTLP exporter, tracing disabled: %v", err)
		return none
	}

	service := getEnv("OTEL_SERVICE_NAME", "docflash-backend")
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(service),
		)),
	)
	otel.SetTracerProvider(tp)

	log.Printf("OpenTelemetry tracing enabled (service: %s, endpoint: %s)", service, endpoint)
	return tp.Shutdown
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
