package hogwild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/hogwild/dataset"
	"github.com/hupe1980/hogwild/internal/degree"
	"github.com/hupe1980/hogwild/internal/engine"
	"github.com/hupe1980/hogwild/internal/executor"
	"github.com/hupe1980/hogwild/internal/numa"
	"github.com/hupe1980/hogwild/internal/partition"
	"github.com/hupe1980/hogwild/internal/replica"
	"github.com/hupe1980/hogwild/internal/svm"
)

// Dataset is a source together with its record format.
type Dataset struct {
	Source *dataset.Source
	Format dataset.Format
}

// Datasets names the training and test data of a run.
type Datasets struct {
	Train Dataset
	// Test must be a text format.
	Test Dataset
}

// Run loads both datasets onto every NUMA node, trains one replica per node
// and scores each replica on its node's copy of the test set.
//
// On cancellation the returned report holds the epochs that completed and the
// error wraps ErrCanceled.
func Run(ctx context.Context, data Datasets, optFns ...Option) (*Report, error) {
	o, err := applyOptions(optFns)
	if err != nil {
		return nil, err
	}
	if data.Train.Source == nil || data.Test.Source == nil {
		return nil, fmt.Errorf("%w: train and test sources are required", ErrInvalidConfig)
	}
	if data.Test.Format == dataset.FormatBinary {
		return nil, fmt.Errorf("%w: the test set must be text", ErrInvalidConfig)
	}

	r := &runner{opts: o, data: data, start: time.Now(), report: &Report{}}
	defer r.close()

	err = r.run(ctx)
	r.report.Elapsed = time.Since(r.start)
	r.report.PeakMemory = o.resources.MemoryPeak()
	if err != nil {
		return r.report, translateError(err)
	}
	return r.report, nil
}

type runner struct {
	opts   options
	data   Datasets
	start  time.Time
	report *Report

	pool   *executor.Pool
	train  *partition.Set
	test   *partition.Set
	models *replica.Set
}

func (r *runner) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.opts.progress, format, args...)
}

func (r *runner) run(ctx context.Context) error {
	if err := r.setup(ctx); err != nil {
		return err
	}
	if err := r.load(ctx); err != nil {
		return err
	}
	if err := r.allocate(ctx); err != nil {
		return err
	}

	eng, err := engine.New(r.pool, svm.Kernel{}, r.train, r.test, r.models, engine.Config{
		Epochs:             r.opts.epochs,
		TrainLoss:          r.opts.trainLoss,
		EvaluateEveryEpoch: r.opts.evalEvery,
	})
	if err != nil {
		return err
	}

	res, err := eng.Run(ctx, &observer{r: r, ctx: ctx})
	if res != nil {
		r.report.TrainTime, r.report.TestTime = res.Train, res.Test
		r.report.Final = scoresOf(res.Final)
		if len(res.Final) > 0 {
			r.report.Canonical = scoreOf(res.Canonical())
		}
	}
	return err
}

func (r *runner) setup(ctx context.Context) error {
	topo := r.opts.topology
	if topo == nil {
		sys, err := numa.Discover(r.opts.sysfsRoot)
		if err != nil {
			return &TopologyError{Op: "discover", cause: err}
		}
		topo = sys
	}

	nodes := topo.Nodes()
	perNode := max(1, r.opts.splits/nodes)
	if workers := perNode * nodes; workers != r.opts.splits {
		r.opts.logger.WarnContext(ctx, "splits rounded to a multiple of the node count",
			"requested", r.opts.splits, "workers", workers, "nodes", nodes)
		r.printf("Requested %d split(s), running %d worker(s) (%d per node)\n", r.opts.splits, workers, perNode)
	}
	pool, err := executor.New(topo, perNode)
	if err != nil {
		return &TopologyError{Op: "bind", cause: err}
	}
	r.pool = pool

	cpu := numa.DescribeCPU()
	r.report.Topology, r.report.Nodes, r.report.WorkersPerNode = topo.Name(), nodes, perNode
	r.opts.logger.LogTopology(ctx, topo.Name(), nodes, perNode, cpu.Brand)
	r.printf("Topology %s: %d node(s), %d worker(s) per node, %d logical CPUs (%s)\n",
		topo.Name(), nodes, perNode, cpu.LogicalCores, cpu.Brand)
	return nil
}

// load opens both sources concurrently, then loads the training and the test
// set onto every node.
func (r *runner) load(ctx context.Context) error {
	start := time.Now()

	var trainSc, testSc dataset.ScanCloser
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sc, err := dataset.Open(gctx, r.data.Train.Source, r.data.Train.Format)
		if err != nil {
			return translateLoadError(r.data.Train.Source.Name(), err)
		}
		trainSc = sc
		return nil
	})
	g.Go(func() error {
		sc, err := dataset.Open(gctx, r.data.Test.Source, r.data.Test.Format)
		if err != nil {
			return translateLoadError(r.data.Test.Source.Name(), err)
		}
		testSc = sc
		return nil
	})
	err := g.Wait()
	defer closeScanner(trainSc)
	defer closeScanner(testSc)
	if err != nil {
		return err
	}

	loader := partition.NewLoader(r.pool, r.opts.resources)

	if r.data.Train.Format == dataset.FormatBinary {
		r.printf("Loading binary file...\n")
	}
	r.train, err = r.loadOne(ctx, loader, r.data.Train, trainSc)
	if err != nil {
		return err
	}
	if r.data.Train.Format == dataset.FormatBinary {
		r.printf("Loaded binary file!\n")
	}
	r.test, err = r.loadOne(ctx, loader, r.data.Test, testSc)
	if err != nil {
		return err
	}

	r.report.Dim = r.train.Dim
	r.report.TrainExamples = r.train.Parts[0].Len()
	r.report.TestExamples = r.test.Parts[0].Len()
	r.report.LoadTime = time.Since(start)
	r.printf("Loaded %d training and %d test examples per node, %d features\n",
		r.report.TrainExamples, r.report.TestExamples, r.report.Dim)
	return nil
}

func (r *runner) loadOne(ctx context.Context, loader *partition.Loader, d Dataset, sc dataset.ScanCloser) (*partition.Set, error) {
	start := time.Now()
	name := d.Source.Name()

	var set *partition.Set
	var err error
	if r.opts.resources.MaxConcurrentLoads() > 1 {
		set, err = loader.LoadConcurrent(ctx, dataset.NewOpener(d.Source, d.Format))
	} else {
		set, err = loader.Load(ctx, sc)
	}
	elapsed := time.Since(start)
	if err != nil {
		err = translateLoadError(name, err)
		r.opts.logger.LogLoad(ctx, name, 0, 0, 0, elapsed, err)
		r.opts.metrics.RecordLoad(name, 0, 0, elapsed, err)
		return nil, err
	}

	perNode := set.Parts[0].Len()
	r.opts.logger.LogLoad(ctx, name, perNode, set.Dim, set.Bytes(), elapsed, nil)
	r.opts.metrics.RecordLoad(name, perNode, set.Bytes(), elapsed, nil)
	return set, nil
}

func (r *runner) allocate(ctx context.Context) error {
	degrees := degree.Count(r.train.Parts[0], r.train.Dim)
	r.report.DistinctFeatures = degrees.Distinct()

	for node := 0; node < r.pool.Nodes(); node++ {
		r.printf("Allocating memory for node %d\n", node)
	}
	models, err := replica.Allocate(ctx, r.pool, r.opts.resources, replica.Config{
		Dim:     r.train.Dim,
		Degrees: degrees,
		Params: replica.Params{
			Step:  r.opts.step,
			Decay: r.opts.decay,
			Mu:    r.opts.mu,
		},
		Jitter: r.opts.jitter,
		Seed:   r.opts.seed,
	})
	if err != nil {
		r.opts.logger.LogAllocate(ctx, r.pool.Nodes(), r.train.Dim, 0, err)
		return err
	}
	r.models = models
	r.opts.logger.LogAllocate(ctx, len(models.Replicas), r.train.Dim, models.Counter.Mask(), nil)
	return nil
}

func (r *runner) close() {
	var errs []error
	if r.models != nil {
		errs = append(errs, r.models.Close())
	}
	if r.test != nil {
		errs = append(errs, r.test.Close())
	}
	if r.train != nil {
		errs = append(errs, r.train.Close())
	}
	if r.pool != nil {
		r.pool.Close()
	}
	if err := errors.Join(errs...); err != nil {
		r.opts.logger.Warn("release memory", "error", err)
	}
}

func closeScanner(sc io.Closer) {
	if sc != nil {
		_ = sc.Close()
	}
}

// observer turns engine events into progress lines, logs and metrics.
type observer struct {
	r   *runner
	ctx context.Context
}

func (o *observer) EpochDone(s engine.EpochStats) {
	r := o.r
	ep := Epoch{
		Epoch:      s.Epoch,
		WallClock:  time.Since(r.start),
		Train:      s.Train,
		Test:       s.Test,
		Skew:       s.Skew,
		Updates:    s.Updates,
		Step:       s.Step,
		TrainLoss:  scoresOf(s.TrainLoss),
		TestScores: scoresOf(s.TestEval),
	}
	r.report.Epochs = append(r.report.Epochs, ep)

	line := fmt.Sprintf("epoch: %d wall_clock: %.4f train_time: %.4f test_time: %.4f epoch_time: %.4f skew: %.6f",
		ep.Epoch, ep.WallClock.Seconds(), ep.Train.Seconds(), ep.Test.Seconds(), (ep.Train + ep.Test).Seconds(), ep.Skew.Seconds())
	if len(ep.TrainLoss) > 0 {
		line += fmt.Sprintf(" train_loss: %.6f", ep.TrainLoss[0].Loss)
	}
	if len(ep.TestScores) > 0 {
		line += fmt.Sprintf(" test_loss: %.6f test_accuracy: %.6f", ep.TestScores[0].Loss, ep.TestScores[0].Accuracy)
	}
	r.printf("%s\n", line)

	r.opts.logger.LogEpoch(o.ctx, s.Epoch, s.Train, s.Skew, s.Updates)
	r.opts.metrics.RecordEpoch(s.Epoch, s.Train, s.Skew, s.Updates)
}

func (o *observer) Evaluated(final []engine.Eval, elapsed time.Duration) {
	r := o.r
	for _, ev := range final {
		sc := scoreOf(ev)
		tag := ""
		if sc.Node == 0 {
			tag = " (canonical)"
		}
		r.printf("node %d%s: test_loss: %.6f test_accuracy: %.6f (%d/%d)\n",
			sc.Node, tag, sc.Loss, sc.Accuracy, sc.Correct, sc.Examples)
		r.opts.logger.LogEvaluation(o.ctx, sc.Node, sc.Accuracy, sc.Loss)
		r.opts.metrics.RecordEvaluation(sc.Node, sc.Accuracy, sc.Loss)
	}
	r.printf("test_time: %.4f total_time: %.4f\n", elapsed.Seconds(), time.Since(r.start).Seconds())
}
