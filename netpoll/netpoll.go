// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package netpoll is a cotls.Scheduler for plain goroutines.
//
// Each waiting task is its own goroutine. Descriptor-backed pollables
// (those implementing syscall.Conn and the read/write deadline setters)
// are parked in the Go runtime's network poller; the deadline is handed
// to the poller so expiry costs nothing. Every other pollable is probed
// with adaptive backoff (iox.Backoff) until it is ready or the deadline
// elapses.
//
//	sched := netpoll.New()
//	reg := cotls.NewRegistry(tlsengine.New(cfg), sched)
package netpoll

import (
	"errors"
	"os"
	"syscall"
	"time"

	"code.hybscloud.com/cotls"
	"code.hybscloud.com/iox"
)

type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Scheduler waits on the calling goroutine. The zero value is ready to use
// and safe for concurrent use by any number of tasks.
type Scheduler struct{}

// New returns a Scheduler.
func New() *Scheduler { return &Scheduler{} }

// WaitFor implements cotls.Scheduler.
func (s *Scheduler) WaitFor(p cotls.Pollable, dir cotls.Direction, deadline time.Time) error {
	if dir != cotls.WantRead && dir != cotls.WantWrite {
		return cotls.ErrNoDirection
	}
	if expired(deadline) {
		return cotls.ErrTimeout
	}
	if sc, ok := p.(syscall.Conn); ok {
		if dl, ok := p.(deadliner); ok {
			err := waitFd(sc, dl, dir, deadline)
			if !errors.Is(err, errNotPollable) {
				return err
			}
		}
	}
	return backoff(p, dir, deadline)
}

func backoff(p cotls.Pollable, dir cotls.Direction, deadline time.Time) error {
	var bo iox.Backoff
	for !p.Ready(dir) {
		if expired(deadline) {
			return cotls.ErrTimeout
		}
		bo.Wait()
	}
	return nil
}

func expired(deadline time.Time) bool {
	return !deadline.IsZero() && !time.Now().Before(deadline)
}

var errNotPollable = errors.New("netpoll: descriptor not registered with the runtime poller")

// waitFd parks in the runtime poller. The callback probes the descriptor
// first because RawConn.Read clears the poller's cached readiness before
// its first call.
func waitFd(sc syscall.Conn, dl deadliner, dir cotls.Direction, deadline time.Time) error {
	rc, err := sc.SyscallConn()
	if err != nil {
		return errNotPollable
	}
	set, wait := dl.SetReadDeadline, rc.Read
	if dir == cotls.WantWrite {
		set, wait = dl.SetWriteDeadline, rc.Write
	}
	if err := set(deadline); err != nil {
		return errNotPollable
	}
	defer set(time.Time{})

	var perr error
	parked := false
	err = wait(func(fd uintptr) bool {
		if !canProbe {
			ready := parked
			parked = true
			return ready
		}
		ok, err := probe(int(fd), dir)
		if err != nil {
			perr = err
			return true
		}
		return ok
	})
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return cotls.ErrTimeout
	case err != nil:
		return err
	}
	return perr
}
