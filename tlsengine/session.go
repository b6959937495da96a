// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tlsengine

import (
	"bytes"
	"crypto/tls"

	"code.hybscloud.com/cotls"
	"code.hybscloud.com/iox"
	"github.com/pion/logging"
)

// recordBuf holds one maximum-size TLS record with header and overhead.
const recordBuf = 18 << 10

type opKind uint8

const (
	opHandshake opKind = iota
	opRead
	opWrite
	opShutdown
)

type lane uint8

const (
	laneIn  lane = iota // handshake and read
	laneOut             // write and shutdown
)

func (k opKind) lane() lane {
	if k == opWrite || k == opShutdown {
		return laneOut
	}
	return laneIn
}

// request is one operation running on a worker goroutine.
// Its result fields are written by the driver on evDone.
type request struct {
	kind opKind
	buf  []byte
	n    int
	err  error
	done bool
}

type evKind uint8

const (
	evOut evKind = iota
	evStarved
	evDone
)

type event struct {
	kind evKind
	data []byte
	req  *request
	n    int
	err  error
}

type feed struct {
	data []byte
	err  error
}

// Session is one TLS session over a cotls.Handle. It implements
// cotls.Session. The driver side (every exported method) must not be
// called concurrently.
type Session struct {
	h    cotls.Handle
	conn *tls.Conn
	bio  bio
	log  logging.LeveledLogger

	ev   chan event
	feed chan feed
	quit chan struct{}

	pending     [2]*request
	out         []byte
	rbuf        []byte
	rest        []byte // plaintext a completed read could not hand out
	restErr     error
	starved     bool
	established bool
	want        cotls.Direction
	broken      error
	freed       bool
}

func newSession(h cotls.Handle, log logging.LeveledLogger) *Session {
	s := &Session{
		h:    h,
		log:  log,
		ev:   make(chan event),
		feed: make(chan feed),
		quit: make(chan struct{}),
		rbuf: make([]byte, recordBuf),
	}
	s.bio.s = s
	return s
}

// Handshake implements cotls.Session.
func (s *Session) Handshake() error {
	if s.established {
		return nil
	}
	_, err := s.attempt(opHandshake, nil)
	return err
}

// Read implements cotls.Session. A repeated call after iox.ErrWouldBlock
// continues the same read; its result is copied into the p of the call
// that completes it. Plaintext that does not fit is kept and returned by
// the following Reads before any new record is read.
func (s *Session) Read(p []byte) (int, error) {
	if s.freed {
		return 0, ErrFreed
	}
	if len(s.rest) == 0 {
		return s.attempt(opRead, p)
	}
	n := copy(p, s.rest)
	s.rest = s.rest[n:]
	if len(s.rest) > 0 {
		return n, nil
	}
	err := s.restErr
	s.rest, s.restErr = nil, nil
	return n, err
}

// Write implements cotls.Session. A repeated call after iox.ErrWouldBlock
// must pass the same bytes: it continues the pending write and reports
// its count. Different bytes fail with ErrBadWriteRetry.
func (s *Session) Write(p []byte) (int, error) { return s.attempt(opWrite, p) }

// ConnectionState returns the negotiated TLS parameters, including the
// peer certificates once the handshake has completed.
func (s *Session) ConnectionState() tls.ConnectionState {
	if !s.established {
		return tls.ConnectionState{}
	}
	return s.conn.ConnectionState()
}

// Want implements cotls.Session.
func (s *Session) Want() cotls.Direction { return s.want }

// Shutdown sends close_notify. It returns iox.ErrWouldBlock if the alert
// could not be flushed yet, and nil without sending anything if the
// handshake never completed.
func (s *Session) Shutdown() error {
	if s.freed {
		return ErrFreed
	}
	if !s.established {
		return nil
	}
	_, err := s.attempt(opShutdown, nil)
	return err
}

// Free stops the workers and closes the handle.
func (s *Session) Free() error {
	if s.freed {
		return ErrFreed
	}
	s.freed = true
	close(s.quit)
	s.pending = [2]*request{}
	s.out, s.rest, s.restErr = nil, nil, nil
	return s.h.Close()
}

// attempt advances kind by as much as the handle allows without blocking.
func (s *Session) attempt(kind opKind, p []byte) (int, error) {
	if s.freed {
		return 0, ErrFreed
	}
	if s.broken != nil {
		return 0, s.broken
	}
	s.want = cotls.WantNone
	r, err := s.request(kind, p)
	if err != nil {
		return 0, err
	}
	for {
		if len(s.out) > 0 {
			if err := s.flush(); err != nil {
				return 0, err
			}
		}
		if r.done {
			s.pending[r.kind.lane()] = nil
			if r.kind == opHandshake && r.err == nil {
				s.established = true
				s.log.Trace("handshake complete")
			}
			if r.kind != kind {
				// The handshake ran ahead of this operation.
				if r.err != nil {
					return 0, r.err
				}
				if r, err = s.request(kind, p); err != nil {
					return 0, err
				}
				continue
			}
			if kind == opRead {
				return s.hand(p, r)
			}
			return r.n, r.err
		}
		if s.starved && s.starvedBy() == r {
			if err := s.fill(); err != nil {
				return 0, err
			}
			continue
		}
		s.await()
	}
}

// request returns the pending request kind continues, or starts one.
// Until the handshake has completed every operation drives the handshake.
func (s *Session) request(kind opKind, p []byte) (*request, error) {
	if r := s.pending[laneIn]; r != nil && r.kind == opHandshake {
		return r, nil
	}
	if !s.established {
		return s.start(opHandshake, nil), nil
	}
	if r := s.pending[kind.lane()]; r != nil {
		if r.kind != kind {
			return nil, ErrOperationPending
		}
		if kind == opWrite && !bytes.Equal(p, r.buf) {
			return nil, ErrBadWriteRetry
		}
		return r, nil
	}
	return s.start(kind, p), nil
}

// hand copies the result of the completed read r into p. The read may
// have been started by an earlier call with a larger buffer.
func (s *Session) hand(p []byte, r *request) (int, error) {
	n := copy(p, r.buf[:r.n])
	if n < r.n {
		s.rest, s.restErr = r.buf[n:r.n], r.err
		return n, nil
	}
	return n, r.err
}

func (s *Session) start(kind opKind, p []byte) *request {
	r := &request{kind: kind}
	switch kind {
	case opRead:
		r.buf = make([]byte, len(p))
	case opWrite:
		r.buf = append([]byte(nil), p...)
	}
	s.pending[kind.lane()] = r
	go s.run(r)
	return r
}

// run executes r against the TLS state machine on a worker goroutine.
func (s *Session) run(r *request) {
	var n int
	var err error
	switch r.kind {
	case opHandshake:
		err = s.conn.Handshake()
	case opRead:
		n, err = s.conn.Read(r.buf)
	case opWrite:
		n, err = s.conn.Write(r.buf)
	case opShutdown:
		err = s.conn.CloseWrite()
	}
	select {
	case s.ev <- event{kind: evDone, req: r, n: n, err: err}:
	case <-s.quit:
	}
}

// starvedBy names the request the starving worker belongs to. Only one
// worker reads at a time: the handshake runs alone, and once it is done
// only reads consume input.
func (s *Session) starvedBy() *request {
	if r := s.pending[laneIn]; r != nil && !r.done {
		return r
	}
	if r := s.pending[laneOut]; r != nil && !r.done {
		return r
	}
	return nil
}

// await receives one event from a running worker.
func (s *Session) await() {
	e := <-s.ev
	switch e.kind {
	case evOut:
		s.out = append(s.out, e.data...)
	case evStarved:
		s.starved = true
	case evDone:
		e.req.n, e.req.err, e.req.done = e.n, e.err, true
	}
}

// flush writes queued ciphertext to the handle.
func (s *Session) flush() error {
	for len(s.out) > 0 {
		n, err := s.h.TryWrite(s.out)
		s.out = s.out[n:]
		if err != nil {
			if iox.IsWouldBlock(err) {
				s.want = cotls.WantWrite
				return iox.ErrWouldBlock
			}
			s.broken = err
			s.log.Debugf("flush: %v", err)
			return err
		}
		if n == 0 {
			s.want = cotls.WantWrite
			return iox.ErrWouldBlock
		}
	}
	s.out = nil
	return nil
}

// fill reads ciphertext from the handle into the starving worker.
// End of stream and transport errors are handed to the TLS state machine.
func (s *Session) fill() error {
	n, err := s.h.TryRead(s.rbuf)
	var f feed
	switch {
	case err != nil && iox.IsWouldBlock(err), err == nil && n == 0:
		s.want = cotls.WantRead
		return iox.ErrWouldBlock
	case err != nil:
		f.err = err
	default:
		f.data = append([]byte(nil), s.rbuf[:n]...)
	}
	s.starved = false
	s.feed <- f
	return nil
}
