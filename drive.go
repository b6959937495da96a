// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls

import (
	"io"
	"time"

	"code.hybscloud.com/iox"
)

// drive runs attempt until it completes, fails, or the deadline elapses.
//
// On iox.ErrWouldBlock the session names the direction it needs and the
// calling task is suspended on the connection's handle; once the handle
// is ready the very same attempt is invoked again. The fast path (attempt
// succeeds at once) never reaches the scheduler. End of stream on a read
// passes through as io.EOF, unclassified.
//
// This is the only place a Conn operation suspends.
func (c *Conn) drive(op string, deadline time.Time, attempt func() error) error {
	if c.closed {
		return closedError(op)
	}
	for {
		err := attempt()
		if err == nil {
			return nil
		}
		if err == io.EOF && op == opRead {
			return io.EOF
		}
		if !iox.IsWouldBlock(err) {
			return c.fail(op, err)
		}
		dir := c.sess.Want()
		if dir == WantNone {
			return c.fail(op, ErrNoDirection)
		}
		c.log.Tracef("conn %d: %s waits for %s", c.serial, op, dir)
		if err := c.sched.WaitFor(c.h, dir, deadline); err != nil {
			if isTimeout(err) {
				return c.timeout(op)
			}
			return c.fail(op, err)
		}
	}
}

// fail records a fatal classification on c and returns it.
func (c *Conn) fail(op string, err error) *Error {
	e := fatalError(op, err)
	c.last = e
	c.errno = e.Errno
	c.log.Debugf("conn %d: %s failed: %v", c.serial, op, err)
	return e
}

// timeout sets the ambient errno only; the engine error, if any, is kept.
func (c *Conn) timeout(op string) *Error {
	e := timeoutError(op)
	c.errno = e.Errno
	return e
}
