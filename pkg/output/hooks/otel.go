package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/duration"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/dispatcher"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/events"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*OTelHook)(nil)

// OTelHook exports a scan as one trace: a root "grafuna.scan" span opened
// by the start event, a span event per target and per rotation, closed by
// the complete event.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	mu       sync.Mutex
	rootSpan trace.Span
	closed   bool
	open     int
}

// OTelOptions configures the OpenTelemetry hook behavior.
type OTelOptions struct {
	// Endpoint is the OTLP gRPC endpoint (default "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces (default: "grafuna").
	ServiceName string

	// Insecure uses a plaintext gRPC connection.
	Insecure bool

	// Headers contains additional headers for the OTLP exporter.
	Headers map[string]string

	// ShutdownTimeout bounds the final flush (default: 5s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout bounds exporter setup (default: 10s).
	ConnectionTimeout time.Duration

	// Exporter replaces the OTLP exporter; spans are then exported
	// synchronously. Endpoint, Insecure and Headers are ignored.
	Exporter sdktrace.SpanExporter
}

// NewOTelHook creates the tracer provider and registers it globally.
// The gRPC connection is lazy, so an unreachable collector does not fail
// here or block the scan.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = defaults.OTelEndpoint
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = duration.HookShutdown
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = duration.HookConnect
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "scanner"),
	)

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if opts.Exporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithSyncer(opts.Exporter))
	} else {
		exporter, err := newOTLPExporter(opts)
		if err != nil {
			return nil, err
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}

	tracerProvider := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(tracerProvider)

	return &OTelHook{
		opts:           opts,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(defaults.ToolName + "/scanner"),
	}, nil
}

func newOTLPExporter(opts OTelOptions) (sdktrace.SpanExporter, error) {
	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("otel: create exporter: %w", err)
	}
	return exporter, nil
}

// OnEvent records the event on the scan trace.
func (h *OTelHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartEvent:
		h.handleStart(ctx, e)
	case *events.ResultEvent:
		h.handleResult(e)
	case *events.RotationEvent:
		if h.rootSpan != nil {
			h.rootSpan.AddEvent("session_rotated", trace.WithAttributes(
				attribute.Int("count", e.Count),
				attribute.Int("index", e.Index),
			))
		}
	case *events.ErrorEvent:
		if h.rootSpan != nil {
			h.rootSpan.AddEvent("error", trace.WithAttributes(
				attribute.String("target", e.Target),
				attribute.String("error_type", e.ErrorType),
				attribute.String("message", e.Message),
				attribute.Bool("fatal", e.Fatal),
			))
		}
	case *events.CompleteEvent:
		h.handleComplete(e)
	}
	return nil
}

func (h *OTelHook) handleStart(ctx context.Context, start *events.StartEvent) {
	if h.rootSpan != nil {
		h.rootSpan.End()
	}
	h.open = 0
	_, span := h.tracer.Start(ctx, defaults.ToolName+".scan",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(start.Timestamp()),
		trace.WithAttributes(
			attribute.String("scan_id", start.ScanID()),
			attribute.String("grafana", start.Grafana),
			attribute.String("datasource_uid", start.Datasource),
			attribute.Int64("datasource_id", start.DatasourceID),
			attribute.Int("total_targets", start.TotalTargets),
			attribute.Int("hosts", start.Hosts),
			attribute.IntSlice("ports", start.Ports),
			attribute.Int("resume_from", start.ResumeFrom),
			attribute.String("order", start.Config.Order),
			attribute.Int("rotate_every", start.Config.RotateEvery),
		),
	)
	h.rootSpan = span
}

func (h *OTelHook) handleResult(result *events.ResultEvent) {
	if h.rootSpan == nil {
		return
	}
	if result.Verdict == verdict.Open {
		h.open++
	}
	h.rootSpan.AddEvent("probe", trace.WithAttributes(
		attribute.Int("index", result.Index),
		attribute.String("host", result.Host),
		attribute.Int("port", result.Port),
		attribute.String("verdict", string(result.Verdict)),
		attribute.Int("status_code", result.Status),
		attribute.Float64("latency_ms", result.LatencyMs),
	))
}

func (h *OTelHook) handleComplete(complete *events.CompleteEvent) {
	if h.rootSpan == nil {
		return
	}

	h.rootSpan.SetAttributes(
		attribute.Int("processed", complete.Processed),
		attribute.Int("next_index", complete.NextIndex),
		attribute.Int("rotations", complete.Rotations),
		attribute.Int("open_ports", h.open),
		attribute.Float64("duration_sec", complete.DurationSec),
	)
	if complete.Success {
		h.rootSpan.SetStatus(codes.Ok, "")
	} else {
		h.rootSpan.SetStatus(codes.Error, complete.ExitReason)
	}

	h.rootSpan.End(trace.WithTimestamp(complete.Timestamp()))
	h.rootSpan = nil
}

// EventTypes returns the event types this hook handles.
func (h *OTelHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeStart,
		events.EventTypeResult,
		events.EventTypeRotation,
		events.EventTypeError,
		events.EventTypeComplete,
	}
}

// Close ends any open span and flushes the tracer provider.
func (h *OTelHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.rootSpan != nil {
		h.rootSpan.End()
		h.rootSpan = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.ShutdownTimeout)
	defer cancel()
	if err := h.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("otel: shutdown tracer provider: %w", err)
	}
	return nil
}

// Endpoint returns the OTLP endpoint being used.
func (h *OTelHook) Endpoint() string {
	return h.opts.Endpoint
}

// ServiceName returns the configured service name.
func (h *OTelHook) ServiceName() string {
	return h.opts.ServiceName
}
