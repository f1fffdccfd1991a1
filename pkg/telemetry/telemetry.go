package telemetry

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	tracer             trace.Tracer
	meter              otelmetric.Meter
	shutdownFuncs      []func(context.Context) error
	prometheusExporter *otelprometheus.Exporter
	prometheusRegistry *prometheus.Registry
	otlpConn           *grpc.ClientConn
)

const (
	serviceName = "transfer-utils"
	version     = "0.1.0"
)

// Init sets up tracing, metrics and runtime instrumentation. Exporters are
// selected with the standard OTEL_* environment variables.
func Init(ctx context.Context) error {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", getEnv("OTEL_SERVICE_NAME", serviceName)),
			attribute.String("service.version", version),
		),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create resource")
	}

	if err := initTracer(ctx, res); err != nil {
		return eris.Wrap(err, "failed to initialize tracer")
	}

	if err := initMeter(ctx, res); err != nil {
		return eris.Wrap(err, "failed to initialize meter")
	}

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		return eris.Wrap(err, "failed to start runtime instrumentation")
	}

	return nil
}

func initTracer(ctx context.Context, res *resource.Resource) error {
	exporterType := getEnv("OTEL_TRACES_EXPORTER", "otlp")
	if exporterType != "otlp" {
		tracer = otel.Tracer(serviceName)
		return nil
	}

	conn, err := grpcConn()
	if err != nil {
		return err
	}
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return eris.Wrap(err, "failed to create OTLP trace exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer = tp.Tracer(serviceName)
	shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	return nil
}

func initMeter(ctx context.Context, res *resource.Resource) error {
	var reader sdkmetric.Reader

	switch getEnv("OTEL_METRICS_EXPORTER", "prometheus") {
	case "none":
		meter = otel.Meter(serviceName)
		return nil
	case "otlp":
		conn, err := grpcConn()
		if err != nil {
			return err
		}
		exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
		if err != nil {
			return eris.Wrap(err, "failed to create OTLP metric exporter")
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	default:
		prometheusRegistry = prometheus.NewRegistry()
		exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(prometheusRegistry))
		if err != nil {
			return eris.Wrap(err, "failed to create Prometheus exporter")
		}
		prometheusExporter = exporter
		reader = exporter
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	otel.SetMeterProvider(mp)
	meter = mp.Meter(serviceName)
	shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	return nil
}

// grpcConn returns the connection shared by the trace and metric exporters.
func grpcConn() (*grpc.ClientConn, error) {
	if otlpConn != nil {
		return otlpConn, nil
	}
	endpoint := stripProtocol(getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4317"))
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to create gRPC client for %s", endpoint)
	}
	otlpConn = conn
	shutdownFuncs = append(shutdownFuncs, func(context.Context) error {
		return conn.Close()
	})
	return conn, nil
}

// Shutdown flushes and stops every exporter started by Init.
func Shutdown(ctx context.Context) error {
	var errs []string
	for _, fn := range shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	shutdownFuncs = nil
	otlpConn = nil
	if len(errs) > 0 {
		return eris.Errorf("errors during shutdown: %s", strings.Join(errs, "; "))
	}
	return nil
}

func Tracer() trace.Tracer {
	if tracer == nil {
		return otel.Tracer(serviceName)
	}
	return tracer
}

func Meter() otelmetric.Meter {
	if meter == nil {
		return otel.Meter(serviceName)
	}
	return meter
}

func GetPrometheusExporter() *otelprometheus.Exporter {
	return prometheusExporter
}

// GetPrometheusRegistry returns nil unless the Prometheus reader is active.
func GetPrometheusRegistry() *prometheus.Registry {
	return prometheusRegistry
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// gRPC clients expect host:port.
func stripProtocol(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return endpoint
}
