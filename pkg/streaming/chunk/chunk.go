package chunk

import "context"

// DefaultSize is the default number of decompressed bytes per Chunk.
const DefaultSize = 128 * 1024

// Chunk is one element of the stream between the producer and the line
// parser. Exactly one of the following holds:
//
//   - Data is a non-empty run of decompressed bytes
//   - End marks the normal end of the stream (the sentinel)
//   - Err reports why the stream stopped early
//
// The last two are terminal and are sent exactly once, after every data chunk.
type Chunk struct {
	Data []byte
	Err  error
	End  bool
}

// Sentinel returns the end-of-stream marker.
func Sentinel() Chunk {
	return Chunk{End: true}
}

// Failure returns the error element that replaces the sentinel.
func Failure(err error) Chunk {
	return Chunk{Err: err}
}

// Terminal reports whether c ends the stream.
func (c Chunk) Terminal() bool {
	return c.End || c.Err != nil
}

// Sink receives chunks in order. channel.BackpressureChannel[Chunk]
// implements it.
type Sink interface {
	Send(ctx context.Context, c Chunk) error
}
