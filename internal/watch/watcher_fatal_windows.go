// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"errors"
	"syscall"
)

const (
	errnoTooManyOpenFiles = syscall.Errno(4) // ERROR_TOO_MANY_OPEN_FILES
	errnoInvalidHandle    = syscall.Errno(6) // ERROR_INVALID_HANDLE
	errnoNotEnoughMemory  = syscall.Errno(8) // ERROR_NOT_ENOUGH_MEMORY
)

// isFatalWatchError reports ReadDirectoryChangesW failures after which the
// source tree is no longer observed: handle exhaustion, an invalidated
// directory handle, or no memory for the notification buffer.
func isFatalWatchError(err error) bool {
	return errors.Is(err, errnoTooManyOpenFiles) ||
		errors.Is(err, errnoInvalidHandle) ||
		errors.Is(err, errnoNotEnoughMemory)
}
