package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/yourorg/apitestgen/internal/config"
	"github.com/yourorg/apitestgen/internal/generator"
	"github.com/yourorg/apitestgen/internal/metrics"
	"github.com/yourorg/apitestgen/internal/store"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	cfgPath string
	verbose bool
}

// app bundles what a command needs after config is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.SQLiteStore
	svc    *generator.Service
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.cfgPath)
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// open loads config, opens the store and, when withService is set, builds the
// generation service around an LLM client. extra options apply last.
func (o *rootOptions) open(stderr io.Writer, withService bool, extra ...generator.Option) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if withService {
		err = cfg.ValidateGenerate()
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Log, stderr)
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: st}
	if !withService {
		return a, nil
	}

	m, err := metrics.NewGenerationMetrics()
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	opts := []generator.Option{
		generator.WithLogger(logger),
		generator.WithMetrics(m),
		generator.WithOutputDir(cfg.Output.Dir),
	}
	if o.verbose {
		opts = append(opts, generator.WithProgress(func(stage string) {
			fmt.Fprintln(stderr, "==>", stage)
		}))
	}
	opts = append(opts, extra...)
	svc, err := generator.NewService(generator.NewClient(cfg.LLM, logger), st, opts...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a.svc = svc
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initTracer installs a tracer provider that pretty-prints spans to w.
func initTracer(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

func readSpec(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	return data, nil
}
