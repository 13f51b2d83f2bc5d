// Package poller multiplexes readiness notifications for raw descriptors
// without spawning goroutines.
//
// Two backends share one contract:
//
//   - Epoll (Linux): epoll(7), chosen by New when available
//   - Poll (all Unix): poll(2), the portable fallback
//
// Both invoke Listener.OnReadable exactly once per ready descriptor per
// RunOnce call, return immediately when nothing is registered, tolerate
// Unregister from inside a callback, and drop descriptors that were closed
// without being unregistered. The package test suite runs unchanged against
// each backend.
//
// Usage:
//
//	p, err := poller.New()
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//	p.Register(fd, listener)
//	for ctx.Err() == nil {
//	    if err := p.RunOnce(100 * time.Millisecond); err != nil {
//	        return err
//	    }
//	}
package poller
