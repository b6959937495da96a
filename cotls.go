// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls

import (
	"net"
	"time"
)

// NoDeadline is the deadline that never elapses.
// It is the zero time, following the net.Conn deadline convention.
var NoDeadline time.Time

// Direction names the readiness a would-block operation is waiting for.
type Direction uint8

const (
	// WantNone means the engine reported would-block without a direction.
	WantNone Direction = iota
	// WantRead means the operation needs the handle to become readable.
	WantRead
	// WantWrite means the operation needs the handle to become writable.
	WantWrite
)

func (d Direction) String() string {
	switch d {
	case WantRead:
		return "read"
	case WantWrite:
		return "write"
	default:
		return "none"
	}
}

// Role is the side of the secure session.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Pollable is anything a Scheduler can wait on.
// Ready is a non-blocking probe. Schedulers that understand kernel
// descriptors also check for syscall.Conn and wait on the fd directly.
type Pollable interface {
	Ready(dir Direction) bool
}

// Handle is a raw byte stream detached from its transport.
// TryRead and TryWrite never block: they return iox.ErrWouldBlock
// when the stream cannot make progress. End of stream is io.EOF.
type Handle interface {
	Pollable
	TryRead(p []byte) (int, error)
	TryWrite(p []byte) (int, error)
	Close() error
}

// Scheduler suspends the calling task until a pollable is ready.
//
// WaitFor returns nil once p is ready in dir, or an error matching
// ErrTimeout once deadline has elapsed. A deadline already in the past
// times out without waiting; the zero deadline never times out.
// Any other error is fatal for the waiting operation.
type Scheduler interface {
	WaitFor(p Pollable, dir Direction, deadline time.Time) error
}

// TransportConn is an established transport connection.
// Detach hands its raw stream over to the caller; the TransportConn
// must not be used afterwards.
type TransportConn interface {
	Detach() Handle
	Close() error
}

// Transport establishes outbound connections.
type Transport interface {
	Connect(addr string, deadline time.Time) (TransportConn, error)
}

// Listener accepts inbound connections.
type Listener interface {
	Accept(deadline time.Time) (TransportConn, error)
	Addr() net.Addr
	Close() error
}

// Engine is a secure-transport engine.
// ServerContext must reject a certificate and key that do not match.
type Engine interface {
	ClientContext() (Context, error)
	ServerContext(certFile, keyFile string) (Context, error)
}

// Context is a role-scoped, read-only engine configuration shared by
// any number of sessions.
type Context interface {
	Role() Role
	NewSession(h Handle) (Session, error)
}

// Session is one secure session over a Handle it owns.
//
// Handshake, Read and Write are attempts: each either completes,
// returns iox.ErrWouldBlock, or fails. After iox.ErrWouldBlock, Want
// reports the direction the session needs, and the caller must invoke
// the same attempt again once the handle is ready.
type Session interface {
	Handshake() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Want() Direction
	// Shutdown starts a graceful close without blocking.
	Shutdown() error
	// Free releases the session and closes its handle.
	Free() error
}
