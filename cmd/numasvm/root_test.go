package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = Execute(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func separable(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			b.WriteString("1\t0\t1\t2\t0.5\n")
		} else {
			b.WriteString("-1\t1\t1\t2\t0.5\n")
		}
	}
	return b.String()
}

func TestUsage(t *testing.T) {
	t.Run("OnePositional", func(t *testing.T) {
		code, _, stderr := run("train.tsv")
		assert.Equal(t, exitFailure, code)
		assert.Contains(t, stderr, "<train file> <test file>")
	})

	t.Run("NoPositional", func(t *testing.T) {
		code, _, stderr := run()
		assert.Equal(t, exitFailure, code)
		assert.Contains(t, stderr, "<train file> <test file>")
	})

	t.Run("UnknownFlag", func(t *testing.T) {
		code, _, stderr := run("--bogus=1", "a", "b")
		assert.Equal(t, exitFailure, code)
		assert.Contains(t, stderr, "unknown flag")
		assert.Contains(t, stderr, "<train file> <test file>")
	})

	t.Run("BadLogLevel", func(t *testing.T) {
		code, _, _ := run("--log-level=loud", "a", "b")
		assert.Equal(t, exitFailure, code)
	})
}

func TestTrain(t *testing.T) {
	dir := t.TempDir()
	train := writeFile(t, dir, "train.tsv", separable(20))
	test := writeFile(t, dir, "test.tsv", separable(4))

	code, stdout, stderr := run("--emulate-nodes=2", "--splits=4", "--epochs=3", "--stepinitial=0.1", "--mu=0.01",
		"--eval-every-epoch", "--mem-limit=1MiB", train, test)
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "Topology uniform: 2 node(s), 2 worker(s) per node")
	assert.Contains(t, stdout, "Allocating memory for node 1")
	assert.Contains(t, stdout, "epoch: 3 ")
	assert.Contains(t, stdout, "test_accuracy: 1.000000")
	assert.Contains(t, stdout, "node 0 (canonical)")
}

func TestTrain_EnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	train := writeFile(t, dir, "train.tsv", separable(4))
	test := writeFile(t, dir, "test.tsv", separable(2))
	t.Setenv("NUMASVM_EPOCHS", "2")
	t.Setenv("NUMASVM_EMULATE_NODES", "1")

	code, stdout, stderr := run(train, test)
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "epoch: 2 ")
	assert.NotContains(t, stdout, "epoch: 3 ")
}

func TestTrain_MissingFile(t *testing.T) {
	dir := t.TempDir()
	test := writeFile(t, dir, "test.tsv", separable(2))

	code, _, stderr := run("--emulate-nodes=1", filepath.Join(dir, "missing.tsv"), test)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "error: load")
}

func TestConvertThenTrainBinary(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "train.tsv", separable(10))
	test := writeFile(t, dir, "test.tsv", separable(2))
	bin := filepath.Join(dir, "train.bin.zst")

	code, stdout, stderr := run("convert", src, bin)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Converted 10 records")
	assert.Contains(t, stdout, "zstd")

	code, stdout, stderr = run("--emulate-nodes=1", "--binary=1", "--epochs=2", bin, test)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Loaded binary file!")
	assert.Contains(t, stdout, "Loaded 10 training and 2 test examples per node, 3 features")
}

func TestConvert_Usage(t *testing.T) {
	code, _, stderr := run("convert", "only-one")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "<input file> <output file>")

	code, _, _ = run("convert", "--to=csv", "a", "b")
	assert.Equal(t, exitFailure, code)
}

func TestSplitLocation(t *testing.T) {
	tests := []struct {
		in, scheme, host, path string
	}{
		{"s3://bucket/data/train.tsv", "s3", "bucket", "data/train.tsv"},
		{"minio://localhost:9000/bucket/train.tsv", "minio", "localhost:9000", "bucket/train.tsv"},
		{"/tmp/train.tsv", "", "", "/tmp/train.tsv"},
		{"relative/train.tsv", "", "", "relative/train.tsv"},
	}
	for _, tt := range tests {
		scheme, host, path := splitLocation(tt.in)
		assert.Equal(t, tt.scheme, scheme, tt.in)
		assert.Equal(t, tt.host, host, tt.in)
		assert.Equal(t, tt.path, path, tt.in)
	}
}

func TestVMCollector(t *testing.T) {
	c := newVMCollector()
	c.RecordLoad("train", 10, 0, 0, nil)
	c.RecordEpoch(1, 0, 0, 30)
	c.RecordEvaluation(0, 0.75, 0.5)
	c.RecordEvaluation(0, 1, 0.25)

	var buf bytes.Buffer
	c.set.WritePrometheus(&buf)
	out := buf.String()

	assert.Contains(t, out, "numasvm_loaded_examples_total 10")
	assert.Contains(t, out, "numasvm_updates_total 30")
	assert.Contains(t, out, `numasvm_eval_accuracy{node="0"} 1`)
	assert.Contains(t, out, `numasvm_eval_loss{node="0"} 0.25`)
}
