// Package dataset reads and writes labelled sparse examples.
//
// Three record encodings are supported and selected by Format:
//
//   - FormatTSV: one example per line, "label<TAB>idx<TAB>val<TAB>idx<TAB>val...",
//     with 0-based feature indices. Pairs may also be spelled "idx:val".
//   - FormatMatlabTSV: the same, with 1-based feature indices.
//   - FormatBinary: the "HGWB" record stream written by BinaryWriter.
//
// A Source names a blob in a blobstore.Store and undoes the compression
// implied by its suffix (.zst, .gz, .lz4). Scanners built on a Source can be
// Reset, which reopens the blob and starts over from the first record:
//
//	src := dataset.NewSource(blobstore.NewLocalStore(""), "train.tsv.zst")
//	sc, err := dataset.Open(ctx, src, dataset.FormatTSV)
//	if err != nil { ... }
//	defer sc.Close()
//
//	for {
//	    ex, err := sc.Next()
//	    if errors.Is(err, io.EOF) { break }
//	    ...
//	}
package dataset
