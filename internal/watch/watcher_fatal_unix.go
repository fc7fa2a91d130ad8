// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// isFatalWatchError reports inotify resource exhaustion. Once the watch or
// descriptor limits are hit, directories can no longer be registered and a
// large grammar tree would silently stop triggering rebuilds.
func isFatalWatchError(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
