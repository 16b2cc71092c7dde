//go:build linux || darwin

package tpmutil

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// pollNoTimeout blocks until data is available.
const pollNoTimeout time.Duration = -1

// poll blocks until the file descriptor is ready for reading, the timeout
// expires, or an error occurs. A negative timeout blocks indefinitely.
func poll(f *os.File, timeout time.Duration) error {
	ready, err := pollReadable(f, timeout)
	if err != nil {
		return err
	}
	if !ready {
		return os.ErrDeadlineExceeded
	}
	return nil
}

func pollReadable(f *os.File, timeout time.Duration) (bool, error) {
	const events = 0x001 // POLLIN
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	pollFds := []unix.PollFd{
		{Fd: int32(f.Fd()), Events: events},
	}
	n, err := unix.Poll(pollFds, ms)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if pollFds[0].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
		return false, os.ErrClosed
	}
	return pollFds[0].Revents&(unix.POLLIN|unix.POLLHUP) != 0, nil
}

// Readable reports whether f has data to read without blocking.
func Readable(f *os.File) bool {
	ready, err := pollReadable(f, 0)
	return err == nil && ready
}

// WaitReadable blocks until f has data to read.
func WaitReadable(f *os.File) error {
	return poll(f, pollNoTimeout)
}
