// Package app wires the replay tool together: it loads an HCL plan,
// allocates its buffers from the pooled allocator, builds the executor over
// the plan's unit sequence and drives one run to completion on a worker
// pool.
package app

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/collective"
	"github.com/vk/runcore/internal/ctxlog"
	"github.com/vk/runcore/internal/executor"
	"github.com/vk/runcore/internal/feed"
	"github.com/vk/runcore/internal/hclplan"
	"github.com/vk/runcore/internal/plan"
	"github.com/vk/runcore/internal/registry"
	"github.com/vk/runcore/internal/runner"
	"github.com/vk/runcore/internal/tracing"
	"github.com/vk/runcore/internal/unit"
)

// App is one configured instance of the replay tool.
type App struct {
	out io.Writer
	cfg *Config
}

// NewApp creates an App writing logs to the given writer.
func NewApp(out io.Writer, cfg *Config) *App {
	return &App{out: out, cfg: cfg}
}

// Run executes the configured plan once and returns the run's terminal
// status.
func (a *App) Run(ctx context.Context) error {
	logger := newLogger(a.cfg.LogLevel, a.cfg.LogFormat, a.out)
	ctx = ctxlog.WithLogger(ctx, logger)

	shutdownTracing, err := tracing.Setup(ctx, a.cfg.TraceEndpoint, "runcore")
	if err != nil {
		return fmt.Errorf("configuring tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Tracing shutdown failed.", "error", err)
		}
	}()

	loaded, err := hclplan.Load(ctx, a.cfg.PlanPath)
	if err != nil {
		return err
	}

	alloc := buffer.NewPool(a.cfg.MemoryLimit)
	feeds := feed.NewManager(a.cfg.FeedCapacity)

	assembled, err := plan.Assemble(ctx, loaded, alloc, feeds, a.cfg.PlanPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := assembled.Release(); err != nil {
			logger.Warn("Releasing plan buffers failed.", "error", err)
		}
	}()

	var opts []executor.Option
	if a.cfg.TraceEndpoint != "" {
		opts = append(opts, executor.WithTracer(otel.Tracer("runcore/executor")))
	}
	exec := executor.New(ctx, assembled.Sequence, opts...)
	logger.Info("Plan loaded.",
		"plan", a.cfg.PlanPath,
		"units", exec.Graph().Len(),
		"edges", exec.Graph().EdgeCount())

	pool := runner.NewPool(a.cfg.WorkerCount)
	defer pool.Close()

	params := &unit.ExecuteParams{
		Kernels:     registry.Builtin(),
		Allocations: assembled.Allocations,
		Feeds:       feeds,
		TaskRunner:  pool.Submit,
		Collective:  unit.NewCollectiveParams(0, 0, unit.SingleDevice(), collective.NewLoopback()),
		CustomCall:  &unit.CustomCallParams{Allocator: alloc},
	}

	logger.Info("Executing plan.", "run_id", params.Collective.RunID, "workers", a.cfg.WorkerCount)
	if err := exec.Execute(ctx, params).Wait(ctx); err != nil {
		logger.Error("Execution failed.", "error", err)
		return err
	}

	stats := alloc.Stats()
	logger.Info("Execution completed.",
		"allocs", stats.NumAllocs,
		"peak_bytes_in_use", stats.PeakBytesInUse,
		"largest_alloc", stats.LargestAllocSize)
	return nil
}
