package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"farmgraph/internal/blob"
	"farmgraph/internal/config"
	"farmgraph/internal/core"
	"farmgraph/internal/export"
	"farmgraph/internal/graph"
)

// app carries the dependencies shared by every subcommand. setup builds them
// from configuration before a command runs and close releases them after.
type app struct {
	configPath  string
	metricsFile string
	trace       bool

	// set by complete-log; register fact sinks on the service
	exportOnComplete  bool
	projectOnComplete bool

	cfg      *config.Config
	logger   *core.ZapLogger
	registry *prometheus.Registry
	svc      *core.Service
	closers  []func(context.Context) error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close(ctx))
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := core.NewZapLoggerForMode(cfg.Log.Mode)
	if err != nil {
		return err
	}
	a.logger = logger

	a.registry = prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(a.registry)
	if err != nil {
		return err
	}

	opts := []core.ServiceOption{core.WithLogger(logger), core.WithMetricsRecorder(metrics)}
	if a.trace {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(cmd.ErrOrStderr()), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("trace exporter: %w", err)
		}
		provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		a.closers = append(a.closers, provider.Shutdown)
		opts = append(opts, core.WithTracer(core.NewOTelTracer(provider.Tracer("farmgraph"))))
	}

	store, err := core.OpenPersistentStore(cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, func(context.Context) error { return c.Close() })
	}
	if a.exportOnComplete {
		st, err := a.openBlob(cmd.Context())
		if err != nil {
			return err
		}
		opts = append(opts, core.WithFactSink(export.New(st)))
	}
	if a.projectOnComplete {
		client, err := a.openGraph(cmd.Context())
		if err != nil {
			return err
		}
		opts = append(opts, core.WithFactSink(graph.NewProjector(client)))
	}
	svc, err := core.NewService(store, opts...)
	if err != nil {
		return err
	}
	a.svc = svc
	logger.Debug("farmgraph ready", "storage", cfg.Storage.Driver, "blob", cfg.Blob.Driver)
	return nil
}

func (a *app) openBlob(ctx context.Context) (blob.Store, error) {
	return blob.Open(ctx, a.cfg.Blob)
}

var errNeo4jDisabled = errors.New("neo4j.uri is not configured")

// openGraph connects to Neo4j and prepares the schema. The client is closed
// with the app.
func (a *app) openGraph(ctx context.Context) (*graph.Client, error) {
	if !a.cfg.Neo4j.Enabled() {
		return nil, errNeo4jDisabled
	}
	client, err := graph.Open(ctx, a.cfg.Neo4j)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	if err := client.EnsureSchema(ctx); err != nil {
		a.logger.Warn("neo4j schema setup failed, continuing", "error", err)
	}
	return client, nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.metricsFile != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	if a.logger != nil {
		a.logger.Sync()
	}
	return errors.Join(errs...)
}
