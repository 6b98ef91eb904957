package numa

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"", nil},
		{"0", []int{0}},
		{"0-3", []int{0, 1, 2, 3}},
		{"0-1,4,6-7", []int{0, 1, 4, 6, 7}},
	}
	for _, tt := range tests {
		got, err := ParseList(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"a", "3-1", "1-", ",2"} {
		_, err := ParseList(bad)
		assert.Error(t, err, bad)
	}
}

func writeSysfs(t *testing.T, online string, cpulists map[int]string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "online"), []byte(online+"\n"), 0o600))
	for id, list := range cpulists {
		dir := filepath.Join(root, "node"+strconv.Itoa(id))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "cpulist"), []byte(list+"\n"), 0o600))
	}
	return root
}

func TestDiscover_Missing(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDiscover_MissingCPUList(t *testing.T) {
	root := writeSysfs(t, "0-1", map[int]string{0: "0-3"})
	_, err := Discover(root)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDiscover_SparseNodeIDs(t *testing.T) {
	root := writeSysfs(t, "0,2", map[int]string{0: "0-1", 2: "2-3"})

	sys, err := Discover(root)
	if err != nil {
		// The fake layout parsed, but this kernel refuses memory policy calls.
		require.ErrorIs(t, err, ErrUnavailable)
		t.Skipf("memory policy not available: %v", err)
	}

	assert.Equal(t, "numa", sys.Name())
	assert.Equal(t, 2, sys.Nodes())
	assert.Equal(t, []int{0, 1}, sys.CPUs(0))
	assert.Equal(t, []int{2, 3}, sys.CPUs(1))
	assert.Equal(t, 2, sys.KernelID(1))
	assert.Nil(t, sys.CPUs(5))
	assert.ErrorIs(t, sys.Bind(7), ErrInvalidNode)

	_, err = sys.Alloc(3, 4096)
	assert.ErrorIs(t, err, ErrInvalidNode)
}

func TestDiscover_SkipsMemoryOnlyNodes(t *testing.T) {
	root := writeSysfs(t, "0-2", map[int]string{0: "0-1", 1: "", 2: "2-3"})

	sys, err := Discover(root)
	if err != nil {
		require.ErrorIs(t, err, ErrUnavailable)
		t.Skipf("memory policy not available: %v", err)
	}

	assert.Equal(t, 2, sys.Nodes())
	assert.Equal(t, 0, sys.KernelID(0))
	assert.Equal(t, 2, sys.KernelID(1))
	assert.Equal(t, []int{2, 3}, sys.CPUs(1))
}

func TestDiscover_NoNodeWithCPUs(t *testing.T) {
	root := writeSysfs(t, "0-1", map[int]string{0: "", 1: ""})
	_, err := Discover(root)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "no online node has cpus")
}

func TestUniform(t *testing.T) {
	u := NewUniform(3)
	assert.Equal(t, "uniform", u.Name())
	assert.Equal(t, 3, u.Nodes())
	assert.NotEmpty(t, u.CPUs(2))

	require.NoError(t, u.Bind(2))
	require.NoError(t, u.Bind(AnyNode))
	assert.ErrorIs(t, u.Bind(3), ErrInvalidNode)

	r, err := u.Alloc(1, 256)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Node())
	assert.Equal(t, 256, r.Size())
	r.Bytes()[255] = 1
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = u.Alloc(-1, 8)
	assert.ErrorIs(t, err, ErrInvalidNode)

	assert.Equal(t, 1, NewUniform(0).Nodes())
}

func TestDescribeCPU(t *testing.T) {
	info := DescribeCPU()
	assert.GreaterOrEqual(t, info.LogicalCores, 0)
}
