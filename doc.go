/*
Package fgzip reads compressed text files line by line, fast.

Decompression runs on its own goroutine, a bounded number of chunks ahead of
the caller, while the caller's goroutine splits chunks into lines. For large
gzip files this overlaps inflate with whatever the caller does per line.

	f, err := fgzip.Open("reads.fa.gz")
	if err != nil {
		return err
	}
	defer f.Close()

	for line, err := range f.Lines() {
		if err != nil {
			return err
		}
		...
	}

OpenFile takes a mode string in the usual "r", "w" and "a" style and returns
a File for either direction:

	out, err := fgzip.OpenFile("filtered.fa.gz", "w")
	...
	fmt.Fprintln(out, record)
	err = out.Close()

Packages:

  - pkg/streaming/reader: the line Reader and its configuration
  - pkg/streaming/writer: the compressing Writer
  - pkg/codec: gzip, zstd, xz, lz4, snappy, s2, brotli, zlib, flate, bzip2
    and external process codecs
  - pkg/common/errors: the error kinds every package returns
  - pkg/metrics: optional Prometheus instrumentation
*/
package fgzip
