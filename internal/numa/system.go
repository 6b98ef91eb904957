package numa

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hupe1980/hogwild/internal/mmap"
)

// DefaultSysfsRoot is where Linux publishes the node topology.
const DefaultSysfsRoot = "/sys/devices/system/node"

// System is the host's real NUMA topology.
type System struct {
	ids  []int   // kernel node ids, dense index -> id
	cpus [][]int // per dense index
	all  []int
}

// Discover reads the node layout below root (normally DefaultSysfsRoot) and
// checks that the kernel accepts memory policy calls. Node ids are remapped to
// a dense range [0, Nodes()) so sparse kernel numbering is invisible to callers.
// Memory-only nodes (empty cpulist) cannot host workers and are left out.
func Discover(root string) (*System, error) {
	online, err := os.ReadFile(filepath.Join(root, "online"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	ids, err := ParseList(strings.TrimSpace(string(online)))
	if err != nil {
		return nil, fmt.Errorf("%w: online nodes: %w", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no online nodes", ErrUnavailable)
	}

	s := &System{}
	for _, id := range ids {
		raw, err := os.ReadFile(filepath.Join(root, "node"+strconv.Itoa(id), "cpulist"))
		if err != nil {
			return nil, fmt.Errorf("%w: node %d: %w", ErrUnavailable, id, err)
		}
		cpus, err := ParseList(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("%w: node %d cpulist: %w", ErrUnavailable, id, err)
		}
		if len(cpus) == 0 {
			continue
		}
		s.ids = append(s.ids, id)
		s.cpus = append(s.cpus, cpus)
		s.all = append(s.all, cpus...)
	}
	if len(s.ids) == 0 {
		return nil, fmt.Errorf("%w: no online node has cpus", ErrUnavailable)
	}
	sort.Ints(s.all)

	if err := probePolicy(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return s, nil
}

// Name implements Topology.
func (s *System) Name() string { return "numa" }

// Nodes implements Topology.
func (s *System) Nodes() int { return len(s.ids) }

// KernelID maps a dense node index back to the kernel's node id.
func (s *System) KernelID(node int) int { return s.ids[node] }

// CPUs implements Topology.
func (s *System) CPUs(node int) []int {
	if node < 0 || node >= len(s.cpus) {
		return nil
	}
	return s.cpus[node]
}

// Bind implements Topology.
func (s *System) Bind(node int) error {
	if node == AnyNode {
		return bindThread(s.all, -1)
	}
	if err := checkNode(s, node); err != nil {
		return err
	}
	return bindThread(s.cpus[node], s.ids[node])
}

// Alloc implements Topology. The memory comes from an anonymous mapping that
// is bound to the node with mbind(2) before any page is touched.
func (s *System) Alloc(node, size int) (*Region, error) {
	if err := checkNode(s, node); err != nil {
		return nil, err
	}
	m, err := mmap.MapAnon(size)
	if err != nil {
		return nil, err
	}
	if err := m.Bind(s.ids[node]); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("numa: bind %d bytes to node %d: %w", size, node, err)
	}
	return &Region{data: m.Bytes(), node: node, release: m.Close}, nil
}

// ParseList parses the kernel's list format ("0-3,8,10-11").
func ParseList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("bad list element %q", part)
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(hi); err != nil || b < a {
				return nil, fmt.Errorf("bad list range %q", part)
			}
		}
		for v := a; v <= b; v++ {
			out = append(out, v)
		}
	}
	return out, nil
}
