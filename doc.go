// Package hogwild trains a linear SVM with lock-free Hogwild! updates on
// NUMA machines.
//
// Every NUMA node gets its own copy of the training data and its own model
// replica, both placed in node-local memory. Workers pinned to a node update
// that node's replica without locks; replicas never exchange weights, and
// node 0's replica is the reported model.
//
// # Quick Start
//
//	ctx := context.Background()
//	store := blobstore.NewLocalStore("")
//
//	report, err := hogwild.Run(ctx, hogwild.Datasets{
//	    Train: hogwild.Dataset{Source: dataset.NewSource(store, "train.tsv"), Format: dataset.FormatTSV},
//	    Test:  hogwild.Dataset{Source: dataset.NewSource(store, "test.tsv"), Format: dataset.FormatTSV},
//	},
//	    hogwild.WithEpochs(20),
//	    hogwild.WithSplits(16),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Canonical.Accuracy)
//
// # Topology
//
// By default the NUMA layout is read from /sys/devices/system/node and the run
// fails with a *TopologyError when it cannot be determined. Hosts without NUMA
// support can opt into an emulated layout:
//
//	hogwild.WithTopology(numa.NewUniform(2))
//
// # Data
//
// The training file may use any format of the dataset package; the test file
// is always text (TSV or Matlab-TSV). Sources are read through a
// blobstore.Store, so local files, S3 and MinIO objects work alike, and
// .zst/.gz/.lz4 files are decompressed on the fly.
//
// # Concurrency
//
// Within an epoch workers never wait for each other; lost updates between
// workers of the same node are accepted. Epochs are separated by a full join,
// and cancellation of the context is honored between epochs only.
package hogwild
