// Package chunk turns a decompressed byte stream into an ordered sequence of
// fixed-size chunks.
//
// A Producer runs on its own goroutine. Each chunk gets a freshly allocated
// buffer, so lines sliced out of it stay valid after the next chunk arrives.
// Sending into a bounded channel blocks the producer once the consumer falls
// behind, which caps the memory held by in-flight chunks.
//
// Every stream ends with exactly one terminal element: the Sentinel, or a
// Failure in its place when decompression breaks mid-stream.
//
//	ch := channel.New[chunk.Chunk](3)
//	p, err := chunk.NewProducer(gz, ch, chunk.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	go p.Run(ctx)
package chunk
