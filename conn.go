// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls

import (
	"syscall"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"github.com/pion/logging"
)

// Serial identifies a Conn within the process. Serials are assigned in
// establishment order starting at 1.
type Serial = uint32

var serials atomix.Uint32

func nextSerial() Serial { return serials.Add(1) }

// Conn is one secure connection: a detached transport handle plus the
// engine session that owns it.
//
// A Conn has a single owner. It carries no locks and must be used by one
// task at a time; whether a read and a write may overlap from two tasks
// depends on the engine.
type Conn struct {
	sess   Session
	h      Handle
	sched  Scheduler
	role   Role
	serial Serial
	log    logging.LeveledLogger

	last   *Error
	errno  syscall.Errno
	closed bool
}

func newConn(sess Session, h Handle, sched Scheduler, role Role, log logging.LeveledLogger) *Conn {
	return &Conn{
		sess:   sess,
		h:      h,
		sched:  sched,
		role:   role,
		serial: nextSerial(),
		log:    log,
	}
}

// Serial returns the connection's process-unique serial number.
func (c *Conn) Serial() Serial { return c.serial }

// Role reports whether c is the client or the server side.
func (c *Conn) Role() Role { return c.role }

// Pollable returns the handle the connection suspends on. Together with
// Want it lets an external proactor register interest after Advance
// returns iox.ErrWouldBlock.
func (c *Conn) Pollable() Pollable { return c.h }

// Session returns the engine session for engine-specific inspection, such
// as the peer certificate after the handshake. Driving it directly
// bypasses the deadline and classification of Conn.
func (c *Conn) Session() Session { return c.sess }

// Want reports the direction the last would-block attempt needs.
func (c *Conn) Want() Direction { return c.sess.Want() }

// Handshake completes the secure handshake by deadline.
// It is optional: the first Read or Write performs it otherwise.
func (c *Conn) Handshake(deadline time.Time) error {
	return c.drive(opHandshake, deadline, c.sess.Handshake)
}

// Read reads at most maxLen bytes into buf and returns the engine's byte
// count. A negative maxLen, or one larger than buf, fails with
// KindInvalidArgument before the engine is touched. An engine count above
// maxLen is fatal (ErrBadCount). At end of stream Read returns 0, io.EOF.
func (c *Conn) Read(buf []byte, maxLen int, deadline time.Time) (int, error) {
	if maxLen < 0 || maxLen > len(buf) {
		return 0, invalidArgument(opRead)
	}
	var n int
	err := c.drive(opRead, deadline, func() (err error) {
		n, err = c.sess.Read(buf[:maxLen])
		n, err = bounded(n, maxLen, err)
		return err
	})
	return n, err
}

// Write writes the first n bytes of buf and returns the engine's byte
// count. An engine count above n is fatal (ErrBadCount).
//
// Write may return a count smaller than n without an error: short writes
// are not retried. Only would-block conditions are. Callers that need the
// whole buffer on the wire loop themselves or use WriteFull.
func (c *Conn) Write(buf []byte, n int, deadline time.Time) (int, error) {
	if n < 0 || n > len(buf) {
		return 0, invalidArgument(opWrite)
	}
	var m int
	err := c.drive(opWrite, deadline, func() (err error) {
		m, err = c.sess.Write(buf[:n])
		m, err = bounded(m, n, err)
		return err
	})
	return m, err
}

// WriteFull writes all of buf, calling Write until it is consumed or an
// error occurs. It returns the number of bytes written.
func (c *Conn) WriteFull(buf []byte, deadline time.Time) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Write(buf[total:], len(buf)-total, deadline)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, c.fail(opWrite, syscall.EPIPE)
		}
	}
	return total, nil
}

// Close shuts the secure session down and releases it together with the
// transport handle. The shutdown is a single non-blocking attempt; it is
// never retried against a deadline. Close must be called exactly once.
func (c *Conn) Close() error {
	if c.closed {
		return closedError("close")
	}
	c.closed = true
	if err := c.sess.Shutdown(); err != nil && !iox.IsWouldBlock(err) {
		c.log.Debugf("conn %d: shutdown: %v", c.serial, err)
	}
	if err := c.sess.Free(); err != nil {
		return fatalError("close", err)
	}
	return nil
}

// LastError describes the connection's most recent failure: the last
// fatal engine error if any, then the last system error code, then a
// generic fallback. It does not clear state.
func (c *Conn) LastError() string {
	if c.last != nil && c.last.Err != nil {
		return c.last.Err.Error()
	}
	if c.errno != 0 {
		return c.errno.Error()
	}
	return "unknown error"
}

func closedError(op string) *Error {
	return &Error{Op: op, Kind: KindFatal, Errno: syscall.EBADF, Err: ErrClosed}
}
