// Package events provides the synchronous notification bus for the upload
// engine.
//
// Observers subscribe to a single event kind or, via KindAny, to every event
// the engine emits. Delivery is synchronous on the emitting goroutine:
// handlers must return quickly and must not call back into the engine.
//
// Example:
//
//	bus := events.NewBus()
//	sub := bus.Subscribe(events.KindFileProgress, func(ev events.Event) {
//	    p := ev.(events.FileProgress)
//	    fmt.Printf("%s: %.1f%%\n", p.Identifier, p.Progress*100)
//	})
//	defer bus.Unsubscribe(sub)
package events
