// Package deferred runs keyed, cancellable one-shot tasks after a delay.
//
// Scheduling under a key that already has a pending task replaces it, so
// "turn the torch off in 20s" restarts its countdown on every fresh turn-on
// instead of stacking. Tasks run on their own goroutine and must not touch
// the event loop's sockets directly.
package deferred
