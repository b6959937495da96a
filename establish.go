// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls

import (
	"time"
)

// Connect establishes a client connection to addr over tr.
//
// The client context is created if this is the first Connect. The
// transport connect is bounded by deadline; the handshake is not, as it
// runs lazily on the first Read or Write unless Handshake is called.
func (r *Registry) Connect(tr Transport, addr string, deadline time.Time) (*Conn, error) {
	ctx, err := r.Client()
	if err != nil {
		return nil, err
	}
	tc, err := tr.Connect(addr, deadline)
	if err != nil {
		return nil, transportError("connect", err)
	}
	return r.newConn("connect", ctx, tc)
}

// Accept accepts one server connection from ln by deadline.
// It fails with ErrNoServerContext, without touching ln, if InitServer
// has not succeeded.
func (r *Registry) Accept(ln Listener, deadline time.Time) (*Conn, error) {
	ctx, err := r.Server()
	if err != nil {
		return nil, err
	}
	tc, err := ln.Accept(deadline)
	if err != nil {
		return nil, transportError("accept", err)
	}
	return r.newConn("accept", ctx, tc)
}

// newConn takes the raw handle over from tc and wraps it in a session.
// If the session cannot be created the handle is closed.
func (r *Registry) newConn(op string, ctx Context, tc TransportConn) (*Conn, error) {
	h := tc.Detach()
	sess, err := ctx.NewSession(h)
	if err != nil {
		_ = h.Close()
		return nil, resourceError(op, err)
	}
	c := newConn(sess, h, r.sched, ctx.Role(), r.log)
	r.log.Tracef("conn %d: %s established as %s", c.serial, op, c.role)
	return c, nil
}

func transportError(op string, err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	if isTimeout(err) {
		return timeoutError(op)
	}
	return fatalError(op, err)
}
