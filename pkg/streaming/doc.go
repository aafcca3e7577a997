/*
Package streaming groups the pieces of the compressed line pipeline.

  - chunk: the producer that decompresses a source into fixed-size chunks
  - channel: the bounded, blocking channel that carries chunks
  - lines: the parser that reassembles lines across chunk boundaries
  - reader: the Reader handle that wires the three together
  - writer: the compressing Writer for the opposite direction

Basic usage:

	r, err := reader.Open("app.log.gz")
	if err != nil {
		return err
	}
	defer r.Close()

	for line, err := range r.Lines() {
		...
	}

Every component takes a context on its blocking operations and stops cleanly
on Close.
*/
package streaming
