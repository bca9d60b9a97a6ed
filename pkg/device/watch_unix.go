//go:build unix

package device

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// ResizeWatcher reports terminal resizes delivered as SIGWINCH.
type ResizeWatcher struct{}

// Watch blocks until ctx is done, calling fn on every SIGWINCH.
func (ResizeWatcher) Watch(ctx context.Context, fn func()) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGWINCH)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			fn()
		}
	}
}
