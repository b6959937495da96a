// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package tcp

import (
	"net"
	"os"
	"syscall"
	"time"

	"code.hybscloud.com/cotls"
	"code.hybscloud.com/cotls/internal/sysfd"
	"golang.org/x/sys/unix"
)

// DefaultBacklog is the listen backlog used when Listen is given zero.
const DefaultBacklog = 128

// Transport dials TCP connections, suspending through Sched while the
// connection is in progress.
type Transport struct {
	Sched cotls.Scheduler
}

// Connect implements cotls.Transport. addr is a host:port pair; names
// are resolved before the deadline starts to matter.
func (t Transport) Connect(addr string, deadline time.Time) (cotls.TransportConn, error) {
	raddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	sa, family, err := sockaddr(raddr)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	cerr := unix.Connect(fd, sa)
	if cerr != nil && cerr != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, os.NewSyscallError("connect", cerr)
	}
	h, err := newHandle(fd, "tcp:"+raddr.String())
	if err != nil {
		return nil, err
	}
	if cerr == unix.EINPROGRESS {
		if err := t.Sched.WaitFor(h, cotls.WantWrite, deadline); err != nil {
			h.Close()
			return nil, err
		}
		if err := soError(h.rc); err != nil {
			h.Close()
			return nil, os.NewSyscallError("connect", err)
		}
	}
	setNoDelay(h.rc)
	return &Conn{h: h}, nil
}

// Listener is a non-blocking listening socket.
type Listener struct {
	f     *os.File
	rc    syscall.RawConn
	addr  *net.TCPAddr
	sched cotls.Scheduler
}

// Listen binds addr with SO_REUSEADDR and listens with the given backlog.
// Accept suspends through sched.
func Listen(addr string, backlog int, sched cotls.Scheduler) (*Listener, error) {
	laddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	sa, family, err := sockaddr(laddr)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("setsockopt", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("getsockname", err)
	}
	f := os.NewFile(uintptr(fd), "tcp-listener:"+addr)
	rc, err := f.SyscallConn()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Listener{f: f, rc: rc, addr: tcpAddr(bound), sched: sched}, nil
}

// Accept implements cotls.Listener.
func (l *Listener) Accept(deadline time.Time) (cotls.TransportConn, error) {
	for {
		var nfd int
		var err error
		cerr := l.rc.Control(func(fd uintptr) {
			nfd, _, err = unix.Accept4(int(fd), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		})
		if cerr != nil {
			return nil, cerr
		}
		switch err {
		case nil:
			h, err := newHandle(nfd, "tcp:accepted")
			if err != nil {
				return nil, err
			}
			setNoDelay(h.rc)
			return &Conn{h: h}, nil
		case unix.EAGAIN, unix.EINTR, unix.ECONNABORTED:
			if err == unix.EAGAIN {
				if err := l.sched.WaitFor(l, cotls.WantRead, deadline); err != nil {
					return nil, err
				}
			}
		default:
			return nil, os.NewSyscallError("accept", err)
		}
	}
}

// Addr returns the bound address, with the port filled in.
func (l *Listener) Addr() net.Addr { return l.addr }

// Ready implements cotls.Pollable.
func (l *Listener) Ready(dir cotls.Direction) bool { return sysfd.Ready(l.rc, dir) }

// SyscallConn exposes the listening socket to descriptor-aware schedulers.
func (l *Listener) SyscallConn() (syscall.RawConn, error) { return l.rc, nil }

func (l *Listener) SetReadDeadline(t time.Time) error  { return l.f.SetReadDeadline(t) }
func (l *Listener) SetWriteDeadline(t time.Time) error { return l.f.SetWriteDeadline(t) }

// Close closes the listening socket.
func (l *Listener) Close() error { return l.f.Close() }

func soError(rc syscall.RawConn) error {
	var soerr int
	var err error
	if cerr := rc.Control(func(fd uintptr) {
		soerr, err = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ERROR)
	}); cerr != nil {
		return cerr
	}
	if err != nil {
		return err
	}
	if soerr != 0 {
		return syscall.Errno(soerr)
	}
	return nil
}

func setNoDelay(rc syscall.RawConn) {
	_ = rc.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
}

func sockaddr(a *net.TCPAddr) (unix.Sockaddr, int, error) {
	if a.IP == nil || a.IP.To4() != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		if ip4 := a.IP.To4(); ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return sa, unix.AF_INET, nil
	}
	sa := &unix.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], a.IP.To16())
	if a.Zone != "" {
		ifi, err := net.InterfaceByName(a.Zone)
		if err != nil {
			return nil, 0, err
		}
		sa.ZoneId = uint32(ifi.Index)
	}
	return sa, unix.AF_INET6, nil
}

func tcpAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]).To16(), Port: sa.Port}
	case *unix.SockaddrInet6:
		a := &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}
		if sa.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(sa.ZoneId)); err == nil {
				a.Zone = ifi.Name
			}
		}
		return a
	}
	return &net.TCPAddr{}
}
