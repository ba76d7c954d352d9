package native

import "golang.org/x/sys/unix"

// ThreadID returns the OS thread id of the caller. It is only stable while
// the calling goroutine is locked to its thread.
func ThreadID() int {
	return unix.Gettid()
}
