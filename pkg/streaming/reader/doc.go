/*
Package reader reads the lines of a compressed file or stream.

A Reader wires three pieces together: a producer goroutine that decompresses
the source into fixed-size chunks, a bounded channel of Capacity chunks, and a
line parser that reassembles lines across chunk boundaries on the caller's
goroutine.

	r, err := reader.Open("access.log.gz")
	if err != nil {
		return err
	}
	defer r.Close()

	for line, err := range r.Lines() {
		if err != nil {
			return err
		}
		process(line)
	}

Lines come back in stream order. Concatenating them with their terminators
reproduces the decompressed stream exactly, whatever the chunk size. A final
line without a trailing '\n' is still returned. Each returned slice is owned by
the caller.

The producer stays at most Capacity chunks ahead of the consumer, so memory in
flight is bounded by about Capacity × ChunkSize no matter how large the input.

# Errors

A decompression failure (corrupt header, truncated stream, exit status of an
external Command) is delivered in order: every line completed before it is
returned first, then a *errors.ProducerError carrying the decompressed byte
offset. The error is sticky. The end of the stream is io.EOF, also sticky.

# Lifecycle

A Reader moves through StateCreated, StateRunning, StateDraining and
StateClosed. Close may be called at any time, from any goroutine, and more
than once. It stops the producer, closes an owned file and waits for the
producer goroutine to exit; a caller-supplied stream is left open. Calls after
Close fail with errors.ErrUseAfterClose.

There is no seeking. Reopen returns a fresh Reader at the start of the same
file, or of a caller stream that implements io.Seeker.

# Formats

Config.Format selects the in-process codec (gzip by default). FormatAuto
sniffs the magic bytes and falls back to the file extension. Config.Command
runs an external decompressor such as "pigz -dc" instead.
*/
package reader
