package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chrissnell/flightkml/internal/constants"
	"github.com/chrissnell/flightkml/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// TracerName is the instrumentation scope for spans started by flightkml.
const TracerName = "github.com/chrissnell/flightkml"

// SpanSink selects where finished render spans are written.
type SpanSink string

const (
	SinkStdout SpanSink = "stdout"
	SinkOTLP   SpanSink = "otlp"
)

const (
	defaultCollector = "localhost:4317"
	stopGrace        = 5 * time.Second
)

// ParseSpanSink maps the configured exporter name to a sink.
func ParseSpanSink(name string) (SpanSink, error) {
	switch strings.ToLower(name) {
	case "", "stdout":
		return SinkStdout, nil
	case "otlp", "otlpgrpc":
		return SinkOTLP, nil
	default:
		return "", fmt.Errorf("unsupported tracing exporter: %s", name)
	}
}

// TraceSettings describes render tracing for one flightkml process.
type TraceSettings struct {
	Enabled   bool
	Service   string
	Sink      SpanSink
	Collector string // host:port of the OTLP gRPC collector
	Ratio     float64

	// Out receives stdout spans; nil means os.Stdout.
	Out io.Writer
}

// TraceSettingsFromConfig converts the tracing section of the configuration.
func TraceSettingsFromConfig(tc config.TracingData) (TraceSettings, error) {
	sink, err := ParseSpanSink(tc.Exporter)
	if err != nil {
		return TraceSettings{}, err
	}
	return TraceSettings{
		Enabled:   tc.Enabled,
		Service:   tc.ServiceName,
		Sink:      sink,
		Collector: tc.Endpoint,
		Ratio:     tc.SampleRatio,
	}, nil
}

// Tracing owns the process-wide tracer provider. A disabled Tracing installs
// a noop provider and its Stop does nothing.
type Tracing struct {
	provider *sdktrace.TracerProvider
	logger   *zap.SugaredLogger
}

// StartTracing installs the global tracer provider and propagators for the
// pipeline spans.
func StartTracing(ctx context.Context, ts TraceSettings, logger *zap.SugaredLogger) (*Tracing, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	t := &Tracing{logger: logger}

	if !ts.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		logger.Debug("render tracing disabled")
		return t, nil
	}

	if ts.Ratio < 0 || ts.Ratio > 1 {
		return nil, fmt.Errorf("tracing sample ratio %v outside [0, 1]", ts.Ratio)
	}
	if ts.Service == "" {
		ts.Service = config.DefaultServiceName
	}
	if ts.Sink == "" {
		ts.Sink = SinkStdout
	}

	exp, err := ts.exporter(ctx)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			attribute.String("service.name", ts.Service),
			attribute.String("service.version", constants.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("error building trace resource: %w", err)
	}

	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ts.Ratio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Infof("render tracing to %s (service %s, ratio %v)", ts.Sink, ts.Service, ts.Ratio)
	return t, nil
}

func (ts TraceSettings) exporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	switch ts.Sink {
	case SinkStdout:
		out := ts.Out
		if out == nil {
			out = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithoutTimestamps())
	case SinkOTLP:
		collector := ts.Collector
		if collector == "" {
			collector = defaultCollector
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(collector),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported span sink: %s", ts.Sink)
	}
}

// Stop flushes buffered spans, giving up after five seconds. Failures are
// logged.
func (t *Tracing) Stop(ctx context.Context) {
	if t == nil || t.provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, stopGrace)
	defer cancel()
	if err := t.provider.Shutdown(ctx); err != nil {
		t.logger.Warnw("error flushing render spans", "error", err)
	}
}
