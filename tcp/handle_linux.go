// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package tcp

import (
	"io"
	"os"
	"syscall"
	"time"

	"code.hybscloud.com/cotls"
	"code.hybscloud.com/cotls/internal/sysfd"
	"code.hybscloud.com/iox"
	"golang.org/x/sys/unix"
)

// Handle is a connected non-blocking TCP socket.
//
// The socket is held as an *os.File so the runtime poller knows it;
// reads and writes go through RawConn.Control, which never parks.
type Handle struct {
	f  *os.File
	rc syscall.RawConn
}

func newHandle(fd int, name string) (*Handle, error) {
	f := os.NewFile(uintptr(fd), name)
	rc, err := f.SyscallConn()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Handle{f: f, rc: rc}, nil
}

// TryRead implements cotls.Handle.
func (h *Handle) TryRead(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	cerr := h.rc.Control(func(fd uintptr) {
		for {
			n, err = unix.Read(int(fd), p)
			if err != unix.EINTR {
				return
			}
		}
	})
	switch {
	case cerr != nil:
		return 0, cerr
	case err == unix.EAGAIN:
		return 0, iox.ErrWouldBlock
	case err != nil:
		return 0, os.NewSyscallError("read", err)
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}

// TryWrite implements cotls.Handle. Writes never raise SIGPIPE.
func (h *Handle) TryWrite(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	cerr := h.rc.Control(func(fd uintptr) {
		for {
			n, err = unix.SendmsgN(int(fd), p, nil, nil, unix.MSG_NOSIGNAL)
			if err != unix.EINTR {
				return
			}
		}
	})
	switch {
	case cerr != nil:
		return 0, cerr
	case err == unix.EAGAIN:
		return 0, iox.ErrWouldBlock
	case err != nil:
		return 0, os.NewSyscallError("write", err)
	}
	return n, nil
}

// Ready implements cotls.Pollable.
func (h *Handle) Ready(dir cotls.Direction) bool { return sysfd.Ready(h.rc, dir) }

// SyscallConn exposes the socket to descriptor-aware schedulers.
func (h *Handle) SyscallConn() (syscall.RawConn, error) { return h.rc, nil }

func (h *Handle) SetReadDeadline(t time.Time) error  { return h.f.SetReadDeadline(t) }
func (h *Handle) SetWriteDeadline(t time.Time) error { return h.f.SetWriteDeadline(t) }

// Close closes the socket.
func (h *Handle) Close() error { return h.f.Close() }

// Conn is an established TCP connection before it is handed to cotls.
type Conn struct {
	h *Handle
}

// Detach implements cotls.TransportConn.
func (c *Conn) Detach() cotls.Handle {
	h := c.h
	c.h = nil
	return h
}

// Close closes the socket unless it has been detached.
func (c *Conn) Close() error {
	if c.h == nil {
		return os.ErrClosed
	}
	h := c.h
	c.h = nil
	return h.Close()
}
