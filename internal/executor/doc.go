// Package executor runs work on a fixed pool of node-pinned workers.
//
// Every worker is a goroutine locked to its own OS thread, and that thread is
// bound to one NUMA node through a numa.Topology for the lifetime of the
// pool. Work is submitted as a function that receives the Worker it runs on,
// so callers can pick node-local data by Worker.Node.
//
// Run executes a function once on every worker and returns only after all of
// them have finished: it is the full join used at epoch boundaries. RunOnNode
// executes a function on the lead worker of one node, which is how loaders
// and allocators get their memory first-touched by the right node.
package executor
