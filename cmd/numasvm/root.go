package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/hogwild"
	"github.com/hupe1980/hogwild/dataset"
	"github.com/hupe1980/hogwild/internal/numa"
	"github.com/hupe1980/hogwild/resource"
)

// exitFailure is returned for usage errors and failed runs (255 as seen by
// the shell).
const exitFailure = -1

const envPrefix = "numasvm"

type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}
	a.initConfig()

	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, hogwild.ErrUsage) {
		_, _ = fmt.Fprintf(stderr, "%v\n\n%s", err, cmd.UsageString())
		return exitFailure
	}
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	return exitFailure
}

// initConfig loads .env files and maps NUMASVM_* variables onto flags.
func (a *app) initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
}

func (a *app) bindFlags(cmd *cobra.Command, _ []string) error {
	return a.v.BindPFlags(cmd.Flags())
}

func usageError(_ *cobra.Command, err error) error {
	return fmt.Errorf("%w: %w", hogwild.ErrUsage, err)
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: expected %d arguments, got %d", hogwild.ErrUsage, n, len(args))
		}
		return nil
	}
}

func (a *app) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "numasvm [flags] <train file> <test file>",
		Short: "NUMA-aware Hogwild! SVM training",
		Long: `Train a linear SVM with lock-free Hogwild! updates.

Every NUMA node loads its own copy of the training and test data and trains
its own model replica; node 0's replica is the reported model. Files may be
local paths, s3://bucket/key or minio://endpoint/bucket/key, optionally
compressed (.zst, .gz, .lz4). The test file is always read as text.`,
		Args:          exactArgs(2),
		PreRunE:       a.bindFlags,
		RunE:          a.runTrain,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetFlagErrorFunc(usageError)

	f := cmd.Flags()
	f.Float32("mu", 1.0, "the maxnorm (regularization strength)")
	f.Uint("epochs", 20, "number of epochs")
	f.Float32("stepinitial", 0.05, "initial step size")
	f.Float32("step_decay", 0.8, "step size decay per epoch")
	f.Uint64("seed", 0, "random seed for --init-jitter")
	f.Uint("splits", 1, "number of worker threads; each node runs splits/nodes (at least 1)")
	f.Int("binary", 0, "load the training file in the binary record format (0|1)")
	f.Int("matlab-tsv", 0, "TSV feature indices start at 1 instead of 0 (0|1)")

	f.Bool("train-loss", false, "report the training loss after every epoch")
	f.Bool("eval-every-epoch", false, "score the test set after every epoch")
	f.Float32("init-jitter", 0, "draw initial weights from [-x, x] instead of zero")
	f.Int("emulate-nodes", 0, "emulate N nodes instead of reading the NUMA topology")
	f.String("sysfs-root", numa.DefaultSysfsRoot, "where to read the NUMA node layout")
	f.String("mem-limit", "", "memory budget for partitions and replicas (e.g. 16GiB)")
	f.String("io-limit", "", "read throughput limit per second (e.g. 200MB)")
	f.Int("parallel-load", 1, "number of node load passes that may run at once")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100)")

	addLogFlags(cmd)
	addStoreFlags(cmd)

	cmd.AddCommand(a.newConvertCmd())
	return cmd
}

func addLogFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("log-level", "warn", "structured log level on stderr (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "text", "structured log format (text, json)")
}

func (a *app) logger() (*hogwild.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("%w: log-level: %w", hogwild.ErrUsage, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch a.v.GetString("log-format") {
	case "text":
		return hogwild.NewLogger(slog.NewTextHandler(a.stderr, opts)), nil
	case "json":
		return hogwild.NewLogger(slog.NewJSONHandler(a.stderr, opts)), nil
	default:
		return nil, fmt.Errorf("%w: unknown log-format %q", hogwild.ErrUsage, a.v.GetString("log-format"))
	}
}

func parseBytes(name, s string) (int64, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", hogwild.ErrUsage, name, err)
	}
	return int64(n), nil //nolint:gosec // byte sizes fit int64
}

func (a *app) resources() (*resource.Controller, error) {
	memLimit, err := parseBytes("mem-limit", a.v.GetString("mem-limit"))
	if err != nil {
		return nil, err
	}
	ioLimit, err := parseBytes("io-limit", a.v.GetString("io-limit"))
	if err != nil {
		return nil, err
	}
	return resource.NewController(resource.Config{
		MemoryLimitBytes:   memLimit,
		MaxConcurrentLoads: int64(max(1, a.v.GetInt("parallel-load"))),
		IOLimitBytesPerSec: ioLimit,
	}), nil
}

func (a *app) runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	v := a.v

	logger, err := a.logger()
	if err != nil {
		return err
	}
	rc, err := a.resources()
	if err != nil {
		return err
	}

	trainFormat, testFormat := dataset.FormatTSV, dataset.FormatTSV
	if v.GetInt("matlab-tsv") != 0 {
		trainFormat, testFormat = dataset.FormatMatlabTSV, dataset.FormatMatlabTSV
	}
	if v.GetInt("binary") != 0 {
		trainFormat = dataset.FormatBinary
	}

	trainSrc, err := a.openSource(ctx, args[0], rc)
	if err != nil {
		return err
	}
	testSrc, err := a.openSource(ctx, args[1], rc)
	if err != nil {
		return err
	}

	opts := []hogwild.Option{
		hogwild.WithEpochs(v.GetInt("epochs")),
		hogwild.WithStepSize(float32(v.GetFloat64("stepinitial"))),
		hogwild.WithStepDecay(float32(v.GetFloat64("step_decay"))),
		hogwild.WithMu(float32(v.GetFloat64("mu"))),
		hogwild.WithSplits(v.GetInt("splits")),
		hogwild.WithSeed(v.GetUint64("seed")),
		hogwild.WithInitJitter(float32(v.GetFloat64("init-jitter"))),
		hogwild.WithTrainLoss(v.GetBool("train-loss")),
		hogwild.WithEvaluateEveryEpoch(v.GetBool("eval-every-epoch")),
		hogwild.WithSysfsRoot(v.GetString("sysfs-root")),
		hogwild.WithResources(rc),
		hogwild.WithLogger(logger),
		hogwild.WithProgress(a.stdout),
	}
	if n := v.GetInt("emulate-nodes"); n > 0 {
		opts = append(opts, hogwild.WithTopology(numa.NewUniform(n)))
	}
	if addr := v.GetString("metrics-addr"); addr != "" {
		collector := newVMCollector()
		stopMetrics, err := serveMetrics(addr, collector, logger)
		if err != nil {
			return err
		}
		defer stopMetrics()
		opts = append(opts, hogwild.WithMetricsCollector(collector))
	}

	_, _ = fmt.Fprintf(a.stdout, "Training %s (%s), testing %s (%s)\n",
		trainSrc.Name(), trainFormat, testSrc.Name(), testFormat)

	report, err := hogwild.Run(ctx, hogwild.Datasets{
		Train: hogwild.Dataset{Source: trainSrc, Format: trainFormat},
		Test:  hogwild.Dataset{Source: testSrc, Format: testFormat},
	}, opts...)
	if report != nil {
		_, _ = fmt.Fprintf(a.stdout, "Elapsed %.4fs, load %.4fs, peak node memory %s\n",
			report.Elapsed.Seconds(), report.LoadTime.Seconds(), humanize.IBytes(uint64(max(0, report.PeakMemory)))) //nolint:gosec // clamped
	}
	return err
}
