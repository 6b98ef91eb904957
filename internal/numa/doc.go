// Package numa exposes the host's NUMA topology as a capability.
//
// A Topology answers three questions for the rest of the engine: how many
// nodes there are, how to make the calling OS thread run on (and allocate
// from) one node, and how to obtain memory that physically lives on a node.
// The engine never calls the kernel directly, so the same training code runs
// against the real machine (System) or an emulated layout (Uniform) in tests
// and on hosts without NUMA support.
//
// # Usage
//
//	topo, err := numa.Discover(numa.DefaultSysfsRoot)
//	if err != nil { ... } // errors.Is(err, numa.ErrUnavailable)
//
//	runtime.LockOSThread()
//	defer runtime.UnlockOSThread()
//	if err := topo.Bind(1); err != nil { ... }
//	defer topo.Bind(numa.AnyNode)
//
//	r, err := topo.Alloc(1, 1<<20)
//	if err != nil { ... }
//	defer r.Close()
//
// Bind affects only the calling thread, which is why callers must hold
// runtime.LockOSThread for as long as the binding matters.
package numa
