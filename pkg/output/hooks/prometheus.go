package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/duration"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/dispatcher"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/events"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*PrometheusHook)(nil)

// PrometheusHook exposes scan progress for Prometheus scraping: probes by
// verdict, rotations, and the probe latency distribution the verdict
// thresholds are tuned against.
type PrometheusHook struct {
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry
	opts     PrometheusOptions

	probesTotal    *prometheus.CounterVec
	rotationsTotal prometheus.Counter
	errorsTotal    *prometheus.CounterVec
	targetsTotal   prometheus.Gauge
	probeLatency   *prometheus.HistogramVec

	mu     sync.Mutex
	closed bool
}

// PrometheusOptions configures the Prometheus hook behavior.
type PrometheusOptions struct {
	// Port for the metrics server (default: 9090). Ignored when Addr is set.
	Port int

	// Addr is a full listen address such as "127.0.0.1:0".
	Addr string

	// Path for the metrics endpoint (default: "/metrics").
	Path string

	// ReadTimeout for the HTTP server (default: 5s).
	ReadTimeout time.Duration

	// WriteTimeout for the HTTP server (default: 10s).
	WriteTimeout time.Duration

	// Logger receives server errors (default slog.Default()).
	Logger *slog.Logger
}

// NewPrometheusHook registers the metrics and starts serving them. The
// listener is bound before returning, so a busy port is reported here.
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	if opts.Port == 0 {
		opts.Port = defaults.MetricsPort
	}
	if opts.Addr == "" {
		opts.Addr = ":" + strconv.Itoa(opts.Port)
	}
	if opts.Path == "" {
		opts.Path = defaults.MetricsPath
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = duration.MetricsReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = duration.MetricsWriteTimeout
	}

	hook := &PrometheusHook{
		registry: prometheus.NewRegistry(),
		opts:     opts,
	}

	if err := hook.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	if err := hook.startServer(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}
	return hook, nil
}

func (h *PrometheusHook) initMetrics() error {
	ns := defaults.ToolName

	h.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "probes_total",
			Help:      "Targets processed, by verdict",
		},
		[]string{"verdict"},
	)

	h.rotationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "rotations_total",
		Help:      "Successful session token rotations",
	})

	h.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "errors_total",
			Help:      "Errors reported during the scan, by type",
		},
		[]string{"type"},
	)

	h.targetsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "targets",
		Help:      "Targets in the current scan",
	})

	// Buckets cluster around the 1s closed and 2s filtered thresholds.
	h.probeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "probe_latency_seconds",
			Help:      "Health-check latency in seconds, by verdict",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 0.75, 1.0, 1.5, 2.0, 2.5, 5.0},
		},
		[]string{"verdict"},
	)

	collectors := []prometheus.Collector{
		h.probesTotal,
		h.rotationsTotal,
		h.errorsTotal,
		h.targetsTotal,
		h.probeLatency,
	}
	for _, c := range collectors {
		if err := h.registry.Register(c); err != nil {
			return err
		}
	}

	// Pre-create one series per verdict so dashboards see zeros.
	for _, v := range verdict.All {
		h.probesTotal.WithLabelValues(string(v))
	}
	return nil
}

func (h *PrometheusHook) startServer() error {
	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return err
	}
	h.listener = ln

	mux := http.NewServeMux()
	mux.Handle(h.opts.Path, promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	h.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  h.opts.ReadTimeout,
		WriteTimeout: h.opts.WriteTimeout,
	}

	logger := orDefault(h.opts.Logger)
	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("prometheus: metrics server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// OnEvent processes events and updates Prometheus metrics.
func (h *PrometheusHook) OnEvent(_ context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartEvent:
		h.targetsTotal.Set(float64(e.TotalTargets))
	case *events.ResultEvent:
		v := string(e.Verdict)
		h.probesTotal.WithLabelValues(v).Inc()
		if e.Verdict != verdict.Skipped {
			h.probeLatency.WithLabelValues(v).Observe(e.LatencyMs / 1000.0)
		}
	case *events.RotationEvent:
		h.rotationsTotal.Inc()
	case *events.ErrorEvent:
		h.errorsTotal.WithLabelValues(e.ErrorType).Inc()
	}
	return nil
}

// EventTypes returns the event types this hook handles.
func (h *PrometheusHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeStart,
		events.EventTypeResult,
		events.EventTypeRotation,
		events.EventTypeError,
	}
}

// Registry exposes the hook's private registry.
func (h *PrometheusHook) Registry() *prometheus.Registry {
	return h.registry
}

// Close shuts down the metrics server and releases resources.
func (h *PrometheusHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), duration.HookShutdown)
		defer cancel()
		return h.server.Shutdown(ctx)
	}
	return nil
}

// MetricsAddr returns the URL metrics are served on.
func (h *PrometheusHook) MetricsAddr() string {
	port := h.opts.Port
	if tcp, ok := h.listener.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	return fmt.Sprintf("http://localhost:%d%s", port, h.opts.Path)
}
