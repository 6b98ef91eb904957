package hogwild

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with training-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithNode adds a node field to the logger.
func (l *Logger) WithNode(node int) *Logger {
	return &Logger{Logger: l.Logger.With("node", node)}
}

// WithEpoch adds an epoch field to the logger.
func (l *Logger) WithEpoch(epoch int) *Logger {
	return &Logger{Logger: l.Logger.With("epoch", epoch)}
}

// LogTopology logs the machine layout the run uses.
func (l *Logger) LogTopology(ctx context.Context, name string, nodes, perNode int, cpu string) {
	l.InfoContext(ctx, "topology ready",
		"topology", name,
		"nodes", nodes,
		"workers_per_node", perNode,
		"cpu", cpu,
	)
}

// LogLoad logs a dataset load.
func (l *Logger) LogLoad(ctx context.Context, path string, examples, dim int, bytes int64, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"path", path,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "dataset loaded",
		"path", path,
		"examples_per_node", examples,
		"dimension", dim,
		"bytes", bytes,
		"duration", duration,
	)
}

// LogAllocate logs replica allocation.
func (l *Logger) LogAllocate(ctx context.Context, replicas, dim int, mask uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "replica allocation failed",
			"replicas", replicas,
			"dimension", dim,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "replicas allocated",
		"replicas", replicas,
		"dimension", dim,
		"counter_mask", mask,
	)
}

// LogEpoch logs a finished epoch.
func (l *Logger) LogEpoch(ctx context.Context, epoch int, train, skew time.Duration, updates int64) {
	l.WithEpoch(epoch).DebugContext(ctx, "epoch completed",
		"train_time", train,
		"skew", skew,
		"updates", updates,
	)
}

// LogEvaluation logs one node's final score.
func (l *Logger) LogEvaluation(ctx context.Context, node int, accuracy, loss float64) {
	l.WithNode(node).InfoContext(ctx, "evaluation",
		"accuracy", accuracy,
		"loss", loss,
	)
}
