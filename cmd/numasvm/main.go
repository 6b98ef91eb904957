// Command numasvm trains a linear SVM with lock-free Hogwild! updates, one
// model replica per NUMA node.
//
// Usage:
//
//	numasvm [flags] <train file> <test file>
//	numasvm convert [flags] <input file> <output file>
//
// Every flag can also be set as NUMASVM_<FLAG> in the environment or in a
// .env / .env.local file, with dashes replaced by underscores
// (NUMASVM_EPOCHS=5, NUMASVM_MEM_LIMIT=8GiB).
package main

import "os"

func main() {
	os.Exit(Execute(os.Args[1:], os.Stdout, os.Stderr))
}
