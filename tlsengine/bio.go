// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tlsengine

import (
	"net"
	"time"
)

// bio is the net.Conn the TLS state machine runs on. Only worker
// goroutines call it; every byte crosses to the driver over channels.
type bio struct {
	s    *Session
	rest []byte
	err  error
}

// Read blocks until the driver feeds ciphertext from the handle.
func (b *bio) Read(p []byte) (int, error) {
	if len(b.rest) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		select {
		case b.s.ev <- event{kind: evStarved}:
		case <-b.s.quit:
			return 0, net.ErrClosed
		}
		select {
		case f := <-b.s.feed:
			if f.err != nil {
				b.err = f.err
				return 0, f.err
			}
			b.rest = f.data
		case <-b.s.quit:
			return 0, net.ErrClosed
		}
	}
	n := copy(p, b.rest)
	b.rest = b.rest[n:]
	return n, nil
}

// Write hands a copy of p to the driver. It completes once the driver
// has queued the bytes, not when they reach the handle.
func (b *bio) Write(p []byte) (int, error) {
	data := make([]byte, len(p))
	copy(data, p)
	select {
	case b.s.ev <- event{kind: evOut, data: data}:
		return len(p), nil
	case <-b.s.quit:
		return 0, net.ErrClosed
	}
}

func (b *bio) Close() error                     { return nil }
func (b *bio) LocalAddr() net.Addr              { return bioAddr{} }
func (b *bio) RemoteAddr() net.Addr             { return bioAddr{} }
func (b *bio) SetDeadline(time.Time) error      { return nil }
func (b *bio) SetReadDeadline(time.Time) error  { return nil }
func (b *bio) SetWriteDeadline(time.Time) error { return nil }

type bioAddr struct{}

func (bioAddr) Network() string { return "tlsengine" }
func (bioAddr) String() string  { return "handle" }
