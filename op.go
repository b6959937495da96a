// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls

import (
	"code.hybscloud.com/kont"
)

// connDispatcher is the structural interface for connection operations.
// DispatchConn performs exactly one engine attempt: it returns
// iox.ErrWouldBlock at the I/O boundary and never suspends.
type connDispatcher interface {
	DispatchConn(c *Conn) (kont.Resumed, error)
	opName() string
}

const (
	opHandshake = "handshake"
	opRead      = "read"
	opWrite     = "write"
)

// Handshake is the effect operation for completing the secure handshake.
// Perform(Handshake{}) advances the handshake on the connection.
type Handshake struct {
	kont.Phantom[struct{}]
}

// DispatchConn makes one handshake attempt.
func (Handshake) DispatchConn(c *Conn) (kont.Resumed, error) {
	if err := c.sess.Handshake(); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (Handshake) opName() string { return opHandshake }

// Read is the effect operation for reading into Buf.
// Perform(Read{Buf: b}) resumes with the number of bytes read.
// End of stream short-circuits the protocol with io.EOF.
type Read struct {
	kont.Phantom[int]
	Buf []byte
}

// DispatchConn makes one read attempt into r.Buf.
func (r Read) DispatchConn(c *Conn) (kont.Resumed, error) {
	n, err := c.sess.Read(r.Buf)
	if n, err = bounded(n, len(r.Buf), err); err != nil {
		return nil, err
	}
	return n, nil
}

func (Read) opName() string { return opRead }

// Write is the effect operation for writing Buf.
// Perform(Write{Buf: b}) resumes with the number of bytes written,
// which may be short.
type Write struct {
	kont.Phantom[int]
	Buf []byte
}

// DispatchConn makes one write attempt from w.Buf.
func (w Write) DispatchConn(c *Conn) (kont.Resumed, error) {
	n, err := c.sess.Write(w.Buf)
	if n, err = bounded(n, len(w.Buf), err); err != nil {
		return nil, err
	}
	return n, nil
}

func (Write) opName() string { return opWrite }

// bounded rejects an engine count outside [0, limit]. Such a count would
// claim bytes the caller never passed.
func bounded(n, limit int, err error) (int, error) {
	if n < 0 || n > limit {
		return 0, ErrBadCount
	}
	return n, err
}
