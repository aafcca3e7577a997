/*
Package channel provides the bounded, blocking FIFO that sits between the
decompressing producer and the line parser.

A BackpressureChannel holds at most BufferSize elements. Send blocks while the
buffer is full, which throttles a fast producer to the pace of its consumer
and caps in-flight memory at BufferSize elements. Receive blocks while the
buffer is empty.

	ch := channel.New[chunk.Chunk](3)
	defer ch.Close()

	go func() {
		_ = ch.Send(ctx, chunk.Chunk{Data: buf})
	}()

	c, err := ch.Receive(ctx)

Both blocking operations return when their context ends (ctx.Err()) or when
the channel is closed (ErrChannelClosed). Values buffered before Close are
still handed to Receive, so a consumer can drain what the producer already
published.

There is deliberately no dropping strategy: every element carries bytes of a
decompressed stream, and losing one would corrupt the line sequence.

Statistics:

	stats := ch.Stats()
	fmt.Printf("blocked sends: %d, waited %v\n", stats.BlockedSends, stats.SendWaitTime)

The channel is safe for any number of senders and receivers, although the
reader pipeline only ever uses one of each.
*/
package channel
