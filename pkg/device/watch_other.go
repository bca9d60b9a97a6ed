//go:build !unix

package device

import "context"

// ResizeWatcher has no resize signal outside unix.
type ResizeWatcher struct{}

// Watch returns ErrWatchUnsupported.
func (ResizeWatcher) Watch(context.Context, func()) error {
	return ErrWatchUnsupported
}
