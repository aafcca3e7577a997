/*
Package bucket throttles byte throughput with a token bucket.

A Limiter refills at Rate bytes per second up to Burst bytes. The chunk
producer calls WaitN with the size of every chunk before publishing it, which
caps how fast a Reader decompresses:

	limiter, err := bucket.New(50<<20, chunk.DefaultSize) // 50 MiB/s
	if err != nil {
		return err
	}
	if err := limiter.WaitN(ctx, len(chunk)); err != nil {
		return err // ctx ended
	}

A wait abandoned through its context gives its tokens back.
*/
package bucket
