/*
Package writer provides a compressing writer that runs the compressor on a
background goroutine.

It is the write-side counterpart of package reader: bytes written to a Writer
are buffered, compressed in any format of package codec (or by an external
compressor process) and written to a file or io.Writer.

# Quick Start

	w, err := writer.Create("events.log.gz")
	if err != nil {
		return err
	}
	defer w.Close()

	fmt.Fprintf(w, "event %d\n", id)

Close must be called: it flushes the buffer, writes the format's trailer and
closes the file Create opened. Its error is the first error the Writer met.

# Configuration

	config := writer.DefaultConfig()
	config.Format = codec.FormatZstd
	config.Level = 3
	config.BufferSize = 256 * 1024
	config.FlushInterval = 500 * time.Millisecond

	w, err := writer.NewWithConfig(conn, config)

With Format set to codec.FormatAuto, CreateWithConfig picks the format from
the file extension (".zst", ".xz", ...), falling back to gzip. Setting
Config.Command runs a compressor such as "pigz -c" instead of the in-process
codec.

# Flushing

Flush pushes everything written so far through the compressor, so a reader
of the destination can decode it before the stream is finished. FlushInterval
does the same periodically and bounds how much data a crash can lose.

# Backpressure

With BlockOnFull (the default) a Write returns once its data is buffered or
compressed. Without it, Write only queues the data and returns ErrBufferFull
when the queue is full; failures then surface from a later Write, Flush or
Close.

# Retries

A failed write to the destination is retried MaxRetries times, RetryDelay
apart. Once a write has failed for good the Writer keeps returning that error.

# Statistics

	stats := w.Stats()
	fmt.Printf("in %d, out %d, digest %016x\n",
		stats.BytesWritten, stats.CompressedBytes, stats.Digest)

Digest matches the Stats().Digest of a reader.Reader that drained the output.

# Thread Safety

Writer is safe for concurrent use from multiple goroutines.
*/
package writer
