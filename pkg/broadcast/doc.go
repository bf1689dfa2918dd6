// Package broadcast provides type-safe, non-blocking one-to-many message delivery.
//
// Broadcast never blocks the publisher: every subscriber owns a buffered
// channel and a message that does not fit is dropped for that subscriber only.
// Dropped messages are counted and can be inspected through Subscriber.Dropped.
// This makes the package suitable for fire-and-forget notifications emitted
// from hot paths, including code that holds locks.
//
// Basic usage:
//
//	b := broadcast.NewMemoryBroadcaster[string](10)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	defer sub.Close()
//
//	_ = b.Broadcast(ctx, broadcast.Message[string]{Data: "hello"})
//
//	for msg := range sub.Receive(ctx) {
//		fmt.Println(msg.Data)
//	}
//
// A subscription ends when its context is cancelled, when Close is called on
// it, or when the broadcaster is closed; in every case the receive channel is
// closed.
//
// Subscribers may pass WithFilter to receive only matching messages and
// WithBufferSize to override the broadcaster's default buffer.
package broadcast
