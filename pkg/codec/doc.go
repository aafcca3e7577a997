/*
Package codec maps compression formats to stream readers and writers.

Each Format has a Codec that wraps an io.Reader with a decompressor and an
io.Writer with a compressor:

	rc, err := codec.NewReader(codec.FormatZstd, f, f.Name())
	if err != nil {
		return err
	}
	defer rc.Close()

NewReader resolves FormatAuto by peeking at the magic bytes of the stream
(see Detect) and falls back to the file extension. Streams that match nothing
are read as FormatNone.

Command runs an external program such as pigz or zstd in place of the
in-process codec. Its stdin or stdout is the compressed side.

The zstd codec uses cgo bindings when cgo is enabled and the pure Go
implementation otherwise.
*/
package codec
