// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

// Package sysfd probes kernel descriptors behind cotls pollables.
package sysfd

import (
	"errors"
	"syscall"

	"code.hybscloud.com/cotls"
	"golang.org/x/sys/unix"
)

// ErrNoFd is returned by Fd for pollables without a kernel descriptor.
var ErrNoFd = errors.New("sysfd: pollable has no descriptor")

// Fd returns the descriptor behind p. The result is only valid while p
// stays open.
func Fd(p cotls.Pollable) (int, error) {
	sc, ok := p.(syscall.Conn)
	if !ok {
		return -1, ErrNoFd
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	if err := rc.Control(func(s uintptr) { fd = int(s) }); err != nil {
		return -1, err
	}
	return fd, nil
}

// Events maps a direction to poll(2) event bits.
func Events(dir cotls.Direction) int16 {
	if dir == cotls.WantWrite {
		return unix.POLLOUT
	}
	return unix.POLLIN
}

// Poll reports whether fd is ready in dir without blocking.
// Hang-up and error conditions count as ready so the next attempt sees them.
func Poll(fd int, dir cotls.Direction) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: Events(dir)}}
	for {
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
}

// Ready is Poll over a syscall.RawConn.
func Ready(rc syscall.RawConn, dir cotls.Direction) bool {
	ready := false
	err := rc.Control(func(fd uintptr) {
		ok, err := Poll(int(fd), dir)
		ready = ok || err != nil
	})
	return ready || err != nil
}
