// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls_test

import (
	"errors"
	"net"
	"testing"
	"time"

	"code.hybscloud.com/cotls"
	"code.hybscloud.com/iox"
	"github.com/pion/logging"
)

// all asks the mock session to complete with the whole buffer.
const all = -1

// step is the scripted outcome of one session attempt.
type step struct {
	n    int
	err  error
	want cotls.Direction
}

func blocked(dir cotls.Direction) step { return step{err: iox.ErrWouldBlock, want: dir} }

// mockSession replays a script: every attempt, whatever the operation,
// consumes the next step. An exhausted script completes everything.
type mockSession struct {
	script      []step
	ops         []string
	want        cotls.Direction
	written     []byte
	shutdownErr error
	shutdowns   int
	freed       int
	h           cotls.Handle

	// inflate is added to every count Read and Write report.
	inflate int
}

func (s *mockSession) next(op string) (int, error) {
	s.ops = append(s.ops, op)
	st := step{n: all}
	if len(s.script) > 0 {
		st = s.script[0]
		s.script = s.script[1:]
	}
	s.want = st.want
	return st.n, st.err
}

func (s *mockSession) Handshake() error {
	_, err := s.next("handshake")
	return err
}

func (s *mockSession) Read(p []byte) (int, error) {
	n, err := s.next("read")
	if err != nil {
		return 0, err
	}
	if n == all || n > len(p) {
		n = len(p)
	}
	for i := range p[:n] {
		p[i] = byte('a' + i%26)
	}
	return n + s.inflate, nil
}

func (s *mockSession) Write(p []byte) (int, error) {
	n, err := s.next("write")
	if err != nil {
		return 0, err
	}
	if n == all || n > len(p) {
		n = len(p)
	}
	s.written = append(s.written, p[:n]...)
	return n + s.inflate, nil
}

func (s *mockSession) Want() cotls.Direction { return s.want }

func (s *mockSession) Shutdown() error {
	s.shutdowns++
	return s.shutdownErr
}

func (s *mockSession) Free() error {
	s.freed++
	if s.h != nil {
		return s.h.Close()
	}
	return nil
}

func (s *mockSession) attempts() int { return len(s.ops) }

// mockHandle becomes ready after readyAfter probes.
type mockHandle struct {
	readyAfter int
	probes     int
	closed     int
}

func (h *mockHandle) Ready(cotls.Direction) bool {
	h.probes++
	return h.probes > h.readyAfter
}

func (h *mockHandle) TryRead([]byte) (int, error)  { return 0, iox.ErrWouldBlock }
func (h *mockHandle) TryWrite([]byte) (int, error) { return 0, iox.ErrWouldBlock }

func (h *mockHandle) Close() error {
	h.closed++
	return nil
}

type mockEngine struct {
	sess        *mockSession
	sessErr     error
	clientErr   error
	serverErr   error
	clientCalls int
	serverCalls int
}

func (e *mockEngine) ClientContext() (cotls.Context, error) {
	e.clientCalls++
	if e.clientErr != nil {
		return nil, e.clientErr
	}
	return &mockContext{e: e, role: cotls.RoleClient}, nil
}

func (e *mockEngine) ServerContext(certFile, keyFile string) (cotls.Context, error) {
	e.serverCalls++
	if e.serverErr != nil {
		return nil, e.serverErr
	}
	return &mockContext{e: e, role: cotls.RoleServer}, nil
}

type mockContext struct {
	e    *mockEngine
	role cotls.Role
}

func (c *mockContext) Role() cotls.Role { return c.role }

func (c *mockContext) NewSession(h cotls.Handle) (cotls.Session, error) {
	if c.e.sessErr != nil {
		return nil, c.e.sessErr
	}
	c.e.sess.h = h
	return c.e.sess, nil
}

// recordingScheduler records every wait. It honours past deadlines and
// otherwise returns err at once.
type recordingScheduler struct {
	waits []cotls.Direction
	err   error
}

func (s *recordingScheduler) WaitFor(p cotls.Pollable, dir cotls.Direction, deadline time.Time) error {
	s.waits = append(s.waits, dir)
	if !deadline.IsZero() && !time.Now().Before(deadline) {
		return cotls.ErrTimeout
	}
	return s.err
}

type mockTransportConn struct {
	h *mockHandle
}

func (c *mockTransportConn) Detach() cotls.Handle { return c.h }
func (c *mockTransportConn) Close() error         { return c.h.Close() }

type mockTransport struct {
	h     *mockHandle
	err   error
	calls int
}

func (t *mockTransport) Connect(addr string, deadline time.Time) (cotls.TransportConn, error) {
	t.calls++
	if t.err != nil {
		return nil, t.err
	}
	return &mockTransportConn{h: t.h}, nil
}

type mockListener struct {
	h     *mockHandle
	err   error
	calls int
}

func (l *mockListener) Accept(deadline time.Time) (cotls.TransportConn, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return &mockTransportConn{h: l.h}, nil
}

func (l *mockListener) Addr() net.Addr { return &net.TCPAddr{} }
func (l *mockListener) Close() error   { return nil }

var errBoom = errors.New("boom")

func quietLoggers() logging.LoggerFactory {
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = logging.LogLevelDisabled
	return lf
}

// fixture wires a mock engine and a recording scheduler to a Registry.
type fixture struct {
	eng   *mockEngine
	sess  *mockSession
	sched *recordingScheduler
	h     *mockHandle
	reg   *cotls.Registry
}

func newFixture(script ...step) *fixture {
	f := &fixture{
		sess:  &mockSession{script: script},
		sched: &recordingScheduler{},
		h:     &mockHandle{},
	}
	f.eng = &mockEngine{sess: f.sess}
	f.reg = cotls.NewRegistry(f.eng, f.sched, cotls.WithLoggerFactory(quietLoggers()))
	return f
}

// connect establishes a client Conn through the fixture.
func (f *fixture) connect(t testing.TB) *cotls.Conn {
	t.Helper()
	c, err := f.reg.Connect(&mockTransport{h: f.h}, "peer", cotls.NoDeadline)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return c
}

func asError(t testing.TB, err error) *cotls.Error {
	t.Helper()
	var e *cotls.Error
	if !errors.As(err, &e) {
		t.Fatalf("got %T (%v), want *cotls.Error", err, err)
	}
	return e
}
