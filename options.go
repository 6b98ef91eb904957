package hogwild

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/hogwild/internal/numa"
	"github.com/hupe1980/hogwild/resource"
)

type options struct {
	epochs    int
	step      float32
	decay     float32
	mu        float32
	splits    int
	seed      uint64
	jitter    float32
	topology  numa.Topology
	resources *resource.Controller
	trainLoss bool
	evalEvery bool
	progress  io.Writer
	logger    *Logger
	metrics   MetricsCollector
	sysfsRoot string
}

// Option configures Run.
type Option func(*options)

// WithEpochs sets the number of training epochs (default 20).
func WithEpochs(n int) Option {
	return func(o *options) { o.epochs = n }
}

// WithStepSize sets the initial step size (default 0.05).
func WithStepSize(step float32) Option {
	return func(o *options) { o.step = step }
}

// WithStepDecay sets the factor applied to the step size after every epoch
// (default 0.8).
func WithStepDecay(decay float32) Option {
	return func(o *options) { o.decay = decay }
}

// WithMu sets the regularization strength (default 1.0).
func WithMu(mu float32) Option {
	return func(o *options) { o.mu = mu }
}

// WithSplits sets the total number of worker threads (default 1). Every node
// runs n/nodes workers, rounded down but at least one, so the effective count
// may differ from n; Report.WorkersPerNode holds the value used.
func WithSplits(n int) Option {
	return func(o *options) { o.splits = n }
}

// WithSeed seeds the initial weight jitter. It has no effect without
// WithInitJitter.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithInitJitter draws initial weights uniformly from [-scale, scale] instead
// of starting at zero. All replicas start from the same draw.
func WithInitJitter(scale float32) Option {
	return func(o *options) { o.jitter = scale }
}

// WithTopology overrides NUMA discovery, e.g. with numa.NewUniform for hosts
// without NUMA support.
func WithTopology(t numa.Topology) Option {
	return func(o *options) { o.topology = t }
}

// WithSysfsRoot changes where NUMA discovery reads the node layout.
func WithSysfsRoot(root string) Option {
	return func(o *options) { o.sysfsRoot = root }
}

// WithResources applies memory and IO limits to loading and allocation.
func WithResources(rc *resource.Controller) Option {
	return func(o *options) { o.resources = rc }
}

// WithTrainLoss computes the training loss after every epoch.
func WithTrainLoss(enabled bool) Option {
	return func(o *options) { o.trainLoss = enabled }
}

// WithEvaluateEveryEpoch scores the test set after every epoch, not only at
// the end.
func WithEvaluateEveryEpoch(enabled bool) Option {
	return func(o *options) { o.evalEvery = enabled }
}

// WithProgress writes human-readable progress lines to w.
func WithProgress(w io.Writer) Option {
	return func(o *options) { o.progress = w }
}

// WithMetricsCollector configures a metrics collector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) { o.metrics = mc }
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) { o.logger = NewTextLogger(level) }
}

func applyOptions(optFns []Option) (options, error) {
	o := options{
		epochs:    20,
		step:      0.05,
		decay:     0.8,
		mu:        1.0,
		splits:    1,
		progress:  io.Discard,
		logger:    NoopLogger(),
		metrics:   NoopMetricsCollector{},
		sysfsRoot: numa.DefaultSysfsRoot,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
	}
	if o.progress == nil {
		o.progress = io.Discard
	}

	switch {
	case o.epochs < 0:
		return o, fmt.Errorf("%w: epochs must not be negative, got %d", ErrInvalidConfig, o.epochs)
	case o.splits < 1:
		return o, fmt.Errorf("%w: splits must be at least 1, got %d", ErrInvalidConfig, o.splits)
	case o.step <= 0:
		return o, fmt.Errorf("%w: step size must be positive, got %g", ErrInvalidConfig, o.step)
	case o.decay <= 0:
		return o, fmt.Errorf("%w: step decay must be positive, got %g", ErrInvalidConfig, o.decay)
	case o.mu < 0:
		return o, fmt.Errorf("%w: mu must not be negative, got %g", ErrInvalidConfig, o.mu)
	case o.jitter < 0:
		return o, fmt.Errorf("%w: init jitter must not be negative, got %g", ErrInvalidConfig, o.jitter)
	}
	return o, nil
}
