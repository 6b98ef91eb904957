package hogwild

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hogwild/blobstore"
	"github.com/hupe1980/hogwild/dataset"
	"github.com/hupe1980/hogwild/internal/numa"
	"github.com/hupe1980/hogwild/resource"
)

// separableTSV returns n lines where feature 0 marks positive and feature 1
// marks negative examples; feature 2 is shared noise.
func separableTSV(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			fmt.Fprintf(&b, "1\t0\t1\t2\t0.5\n")
		} else {
			fmt.Fprintf(&b, "-1\t1\t1\t2\t0.5\n")
		}
	}
	return b.String()
}

func memoryData(train, test string) Datasets {
	store := blobstore.NewMemoryStore()
	store.Put("train.tsv", []byte(train))
	store.Put("test.tsv", []byte(test))
	return Datasets{
		Train: Dataset{Source: dataset.NewSource(store, "train.tsv"), Format: dataset.FormatTSV},
		Test:  Dataset{Source: dataset.NewSource(store, "test.tsv"), Format: dataset.FormatTSV},
	}
}

func TestRun(t *testing.T) {
	t.Run("TrainsAndScoresEveryNode", func(t *testing.T) {
		var progress bytes.Buffer
		metrics := &BasicMetricsCollector{}

		report, err := Run(context.Background(), memoryData(separableTSV(20), separableTSV(6)),
			WithTopology(numa.NewUniform(3)),
			WithEpochs(5),
			WithStepSize(0.1),
			WithMu(0.01),
			WithProgress(&progress),
			WithMetricsCollector(metrics),
		)
		require.NoError(t, err)

		assert.Equal(t, "uniform", report.Topology)
		assert.Equal(t, 3, report.Nodes)
		assert.Equal(t, 1, report.WorkersPerNode)
		assert.Equal(t, 3, report.Dim)
		assert.Equal(t, 20, report.TrainExamples)
		assert.Equal(t, 6, report.TestExamples)
		assert.Equal(t, uint64(3), report.DistinctFeatures)

		require.Len(t, report.Epochs, 5)
		assert.Equal(t, int64(60), report.Epochs[0].Updates)
		require.Len(t, report.Final, 3)
		assert.Equal(t, report.Final[0], report.Canonical)
		assert.Equal(t, 1.0, report.Canonical.Accuracy)

		out := progress.String()
		assert.Contains(t, out, "Allocating memory for node 2")
		assert.Contains(t, out, "Loaded 20 training and 6 test examples per node")
		assert.Contains(t, out, "epoch: 5 ")
		assert.Contains(t, out, "node 0 (canonical)")

		stats := metrics.GetStats()
		assert.Equal(t, int64(2), stats.LoadCount)
		assert.Equal(t, int64(5), stats.EpochCount)
		assert.Equal(t, 1.0, stats.Accuracy)
	})

	t.Run("SplitsSpreadAcrossNodes", func(t *testing.T) {
		var progress bytes.Buffer
		report, err := Run(context.Background(), memoryData(separableTSV(8), separableTSV(2)),
			WithTopology(numa.NewUniform(2)),
			WithSplits(4),
			WithEpochs(1),
			WithProgress(&progress),
		)
		require.NoError(t, err)
		assert.Equal(t, 2, report.WorkersPerNode)
		assert.Equal(t, int64(16), report.Epochs[0].Updates)
		assert.NotContains(t, progress.String(), "Requested")
	})

	t.Run("SplitsRoundedDownAreReported", func(t *testing.T) {
		var progress bytes.Buffer
		report, err := Run(context.Background(), memoryData(separableTSV(6), separableTSV(2)),
			WithTopology(numa.NewUniform(3)),
			WithSplits(7),
			WithEpochs(1),
			WithProgress(&progress),
		)
		require.NoError(t, err)
		assert.Equal(t, 2, report.WorkersPerNode)
		assert.Contains(t, progress.String(), "Requested 7 split(s), running 6 worker(s) (2 per node)")
	})

	t.Run("PerEpochScores", func(t *testing.T) {
		report, err := Run(context.Background(), memoryData(separableTSV(8), separableTSV(4)),
			WithTopology(numa.NewUniform(2)),
			WithEpochs(2),
			WithTrainLoss(true),
			WithEvaluateEveryEpoch(true),
		)
		require.NoError(t, err)
		for _, ep := range report.Epochs {
			assert.Len(t, ep.TrainLoss, 2)
			assert.Len(t, ep.TestScores, 2)
		}
	})

	t.Run("ConcurrentLoadsWithLimits", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MaxConcurrentLoads: 2, IOLimitBytesPerSec: 1 << 20})
		data := memoryData(separableTSV(10), separableTSV(4))

		report, err := Run(context.Background(), data,
			WithTopology(numa.NewUniform(2)),
			WithEpochs(1),
			WithResources(rc),
		)
		require.NoError(t, err)
		assert.Equal(t, 10, report.TrainExamples)
		assert.Positive(t, report.PeakMemory)
		assert.Equal(t, int64(0), rc.MemoryUsage())
	})

	t.Run("BinaryTrainFromDisk", func(t *testing.T) {
		dir := t.TempDir()

		var bin bytes.Buffer
		w := dataset.NewBinaryWriter(&bin)
		for i := 0; i < 6; i++ {
			label := float32(1 - 2*(i%2))
			require.NoError(t, w.Write(dataset.Example{Label: label, Indices: []uint32{uint32(i % 2)}, Values: []float32{1}}))
		}
		require.NoError(t, w.Flush())
		require.NoError(t, os.WriteFile(filepath.Join(dir, "train.bin"), bin.Bytes(), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "test.tsv"), []byte("1\t1\t1\n-1\t2\t1\n"), 0o600))

		store := blobstore.NewLocalStore(dir)
		report, err := Run(context.Background(), Datasets{
			Train: Dataset{Source: dataset.NewSource(store, "train.bin"), Format: dataset.FormatBinary},
			Test:  Dataset{Source: dataset.NewSource(store, "test.tsv"), Format: dataset.FormatMatlabTSV},
		}, WithTopology(numa.NewUniform(1)), WithEpochs(3))
		require.NoError(t, err)

		assert.Equal(t, 2, report.Dim)
		assert.Equal(t, 2, report.Canonical.Examples)
	})
}

func TestRun_Errors(t *testing.T) {
	t.Run("MissingTrainFile", func(t *testing.T) {
		data := memoryData("", "")
		data.Train.Source = dataset.NewSource(blobstore.NewMemoryStore(), "nope.tsv")

		_, err := Run(context.Background(), data, WithTopology(numa.NewUniform(1)))

		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, "nope.tsv", le.Path)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("MalformedTrainFile", func(t *testing.T) {
		_, err := Run(context.Background(), memoryData("1\t0\t1\nbad\n", "1\t0\t1\n"),
			WithTopology(numa.NewUniform(2)))

		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, "train.tsv", le.Path)
		assert.Equal(t, 0, le.Node)
		assert.Equal(t, 2, le.Line)
		assert.ErrorIs(t, err, dataset.ErrMalformed)
	})

	t.Run("BinaryTestSetRejected", func(t *testing.T) {
		data := memoryData("", "")
		data.Test.Format = dataset.FormatBinary

		_, err := Run(context.Background(), data, WithTopology(numa.NewUniform(1)))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("InvalidOptions", func(t *testing.T) {
		for name, opt := range map[string]Option{
			"epochs": WithEpochs(-1),
			"splits": WithSplits(0),
			"step":   WithStepSize(0),
			"decay":  WithStepDecay(-1),
			"mu":     WithMu(-1),
			"jitter": WithInitJitter(-0.1),
		} {
			_, err := Run(context.Background(), memoryData("", ""), opt)
			assert.ErrorIs(t, err, ErrInvalidConfig, name)
		}
	})

	t.Run("NoTopology", func(t *testing.T) {
		_, err := Run(context.Background(), memoryData("1\t0\t1\n", "1\t0\t1\n"),
			WithSysfsRoot(filepath.Join(t.TempDir(), "missing")))

		var te *TopologyError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "discover", te.Op)
	})

	t.Run("MemoryLimit", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: 64})
		_, err := Run(context.Background(), memoryData(separableTSV(50), separableTSV(2)),
			WithTopology(numa.NewUniform(2)), WithResources(rc))
		assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Run(ctx, memoryData(separableTSV(4), separableTSV(2)), WithTopology(numa.NewUniform(1)))
		assert.ErrorIs(t, err, ErrCanceled)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
