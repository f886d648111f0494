package uqueue

import (
	"fmt"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// waitReadable polls fd until it becomes readable or the timeout
// elapses, for asserting an eventfd signal fired without racing the
// test against the producer/consumer goroutine under test.
func waitReadable(t *testing.T, fd int) error {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pollReadable(fd) {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return fmt.Errorf("fd %d never became readable", fd)
}

func pollReadable(fd int) bool {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	return err == nil && n > 0 && fds[0].Revents&unix.POLLIN != 0
}
