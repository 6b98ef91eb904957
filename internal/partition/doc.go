// Package partition loads a dataset into node-local, immutable partitions.
//
// Every node receives a full copy of the dataset: the loader makes one pass
// over the source per node, runs that pass on a worker pinned to the node and
// copies the records into memory allocated on the node. Workers of node i only
// ever read partition i.
package partition
