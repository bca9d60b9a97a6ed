package device

import (
	"context"
	"errors"
)

// ErrWatchUnsupported is returned by a Watcher that cannot observe changes
// on this host. Consumers keep their construction-time snapshot.
var ErrWatchUnsupported = errors.New("device: change notifications unsupported")

// Watcher notifies about events that may change Capabilities (resize,
// preference change). Watch blocks until ctx is done, calling fn for every
// event, or returns ErrWatchUnsupported immediately.
type Watcher interface {
	Watch(ctx context.Context, fn func()) error
}

// WatcherFunc adapts a function to the Watcher interface.
type WatcherFunc func(ctx context.Context, fn func()) error

// Watch calls f.
func (f WatcherFunc) Watch(ctx context.Context, fn func()) error { return f(ctx, fn) }

// Unsupported is a Watcher for hosts without change notifications.
var Unsupported Watcher = WatcherFunc(func(context.Context, func()) error {
	return ErrWatchUnsupported
})

// Channel is a Watcher fed by sends on C. The stage uses it to forward
// bubbletea WindowSizeMsg events.
type Channel struct {
	C chan struct{}
}

// NewChannel returns a Channel with a small buffer.
func NewChannel() *Channel {
	return &Channel{C: make(chan struct{}, 4)}
}

// Notify signals a change without blocking; bursts coalesce.
func (c *Channel) Notify() {
	select {
	case c.C <- struct{}{}:
	default:
	}
}

// Watch forwards notifications until ctx is done.
func (c *Channel) Watch(ctx context.Context, fn func()) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.C:
			fn()
		}
	}
}
