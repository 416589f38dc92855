// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package worker

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// readable polls the listening socket without blocking. ok is false when
// the listener cannot be polled, in which case the caller falls back to a
// short accept deadline.
func readable(l any) (ready, ok bool) {
	sc, isConn := l.(syscall.Conn)
	if !isConn {
		return false, false
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return false, false
	}

	var n int
	var pollErr error
	err = rc.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		for {
			n, pollErr = unix.Poll(fds, 0)
			if !errors.Is(pollErr, unix.EINTR) {
				return
			}
		}
	})
	if err != nil || pollErr != nil {
		return false, false
	}
	return n > 0, true
}
