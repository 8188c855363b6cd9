// Command bridgeserver hosts the per-call audio-streaming engine behind an
// HTTP listener: one WebSocket upgrade per inbound call leg, a Prometheus
// metrics/health endpoint, and OTLP tracing of the process as a whole.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/callbridge/streamcore/pkg/config"
	"github.com/callbridge/streamcore/runtime/carrier"
	"github.com/callbridge/streamcore/runtime/enginelog"
	"github.com/callbridge/streamcore/runtime/metrics/prometheus"
	"github.com/callbridge/streamcore/runtime/pipeline"
	"github.com/callbridge/streamcore/runtime/telemetry"
)

func main() {
	var (
		configPath   = flag.String("config", "config.yaml", "path to the pipeline configuration manifest")
		listenAddr   = flag.String("listen", ":8080", "address to serve carrier WebSocket connections on")
		metricsAddr  = flag.String("metrics-addr", ":9090", "address to serve Prometheus metrics and health checks on")
		otlpEndpoint = flag.String("otlp-endpoint", "", "OTLP/HTTP trace collector endpoint (tracing disabled if empty)")
		serviceName  = flag.String("service-name", "streamcore-bridgeserver", "service.name reported on emitted spans")
		logLevel     = flag.String("log-level", config.LogLevelInfo, "process log level: trace, debug, info, warn, error")
		logFormat    = flag.String("log-format", config.LogFormatJSON, "process log format: json, text")
	)
	flag.Parse()

	logCfg := config.DefaultLoggingConfig()
	logCfg.DefaultLevel = *logLevel
	logCfg.Format = *logFormat
	if err := logCfg.Validate(); err != nil {
		slog.Error("invalid logging configuration", "err", err)
		os.Exit(1)
	}

	log := enginelog.NewSlog(slog.New(newSlogHandler(logCfg)))

	spec, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load pipeline configuration", "path", *configPath, "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry.SetupPropagation()
	if *otlpEndpoint != "" {
		tp, err := telemetry.NewTracerProvider(ctx, *otlpEndpoint, *serviceName)
		if err != nil {
			log.Error("failed to set up tracer provider", "err", err)
			os.Exit(1)
		}
		otel.SetTracerProvider(tp)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Warn("tracer provider shutdown failed", "err", err)
			}
		}()
	}

	exporter := prometheus.NewExporter(*metricsAddr)
	recorder := prometheus.NewRecorder()
	go func() {
		if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics exporter stopped unexpectedly", "err", err)
		}
	}()

	srv := newBridgeServer(*spec, log, recorder)
	httpServer := &http.Server{
		Addr:              *listenAddr,
		Handler:           otelhttp.NewHandler(srv, "carrier.serve"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("serving carrier connections", "addr", *listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("carrier listener stopped unexpectedly", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = exporter.Shutdown(shutdownCtx)
	srv.stopAll("server shutdown")
}

// slogLevel maps a config.LoggingConfigSpec level name to a slog.Level.
// "trace" has no slog equivalent and is treated as debug, one step below
// the lowest level slog defines natively.
func slogLevel(level string) slog.Level {
	switch level {
	case config.LogLevelTrace, config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newSlogHandler builds the process-wide log handler from a validated
// LoggingConfigSpec, attaching any operator-supplied common fields to
// every emitted record.
func newSlogHandler(cfg config.LoggingConfigSpec) slog.Handler {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.DefaultLevel)}

	var handler slog.Handler
	if cfg.Format == config.LogFormatText {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	if len(cfg.CommonFields) > 0 {
		attrs := make([]any, 0, len(cfg.CommonFields)*2)
		for k, v := range cfg.CommonFields {
			attrs = append(attrs, k, v)
		}
		handler = slog.New(handler).With(attrs...).Handler()
	}
	return handler
}

// bridgeServer owns the live set of call pipelines and routes inbound
// carrier WebSocket upgrades into newly constructed Pipelines.
type bridgeServer struct {
	cfg      config.PipelineConfigSpec
	log      enginelog.Logger
	recorder *prometheus.Recorder
	carrier  *wsCarrier

	mu        sync.Mutex
	pipelines map[string]*pipeline.Pipeline
}

func newBridgeServer(cfg config.PipelineConfigSpec, log enginelog.Logger, recorder *prometheus.Recorder) *bridgeServer {
	s := &bridgeServer{
		cfg:       cfg,
		log:       log,
		recorder:  recorder,
		pipelines: make(map[string]*pipeline.Pipeline),
	}
	s.carrier = newWSCarrier(log, s.onCallConnected)
	return s
}

func (s *bridgeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r = r.WithContext(telemetry.ContextWithTrace(r.Context(), telemetry.ExtractTraceContext(r)))
	s.carrier.ServeHTTP(w, r)
}

func (s *bridgeServer) onCallConnected(sessionID string, adapter carrier.Adapter) carrier.IngressSource {
	session := pipeline.NewCallSession(sessionID, pipeline.Inbound)
	sessionLog := s.log
	if slogger, ok := s.log.(*enginelog.Slog); ok {
		sessionLog = slogger.With("session_id", sessionID)
	}

	p := pipeline.New(session, s.cfg, adapter, sessionLog)

	s.mu.Lock()
	s.pipelines[sessionID] = p
	s.mu.Unlock()

	s.recorder.SessionStarted()
	go s.runPipeline(sessionID, p)

	return p.IngressHandler()
}

func (s *bridgeServer) runPipeline(sessionID string, p *pipeline.Pipeline) {
	defer func() {
		s.mu.Lock()
		delete(s.pipelines, sessionID)
		s.mu.Unlock()
		s.recorder.SessionEnded(string(p.Session().Status))
	}()

	go func() {
		for evt := range p.Events() {
			s.handleEvent(sessionID, evt)
		}
	}()

	if err := p.Start(context.Background()); err != nil {
		s.log.Error("pipeline start failed", "session_id", sessionID, "err", err)
	}
}

func (s *bridgeServer) handleEvent(sessionID string, evt pipeline.Event) {
	switch evt.Kind {
	case pipeline.EventAudio:
		s.recorder.FrameEgressed()
	case pipeline.EventDisconnected:
		s.recorder.ReconnectAttempted()
	case pipeline.EventError:
		s.log.Warn("pipeline event error", "session_id", sessionID, "err", evt.Err)
	}
}

func (s *bridgeServer) stopAll(reason string) {
	s.mu.Lock()
	pipelines := make([]*pipeline.Pipeline, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		pipelines = append(pipelines, p)
	}
	s.mu.Unlock()

	for _, p := range pipelines {
		p.Stop(reason)
	}
}
