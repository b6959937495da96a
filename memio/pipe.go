// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package memio

import (
	"io"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/cotls"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// queueCapacity is the bounded capacity, in chunks, of each pipe direction.
const queueCapacity = 64

// maxChunk bounds a single TryWrite. Larger writes are short.
const maxChunk = 16 << 10

// End is one side of an in-memory, non-blocking byte pipe.
// Each direction is a single-producer single-consumer bounded queue of
// chunks: an End must be read by one task and written by one task.
type End struct {
	sendQ  *lfq.SPSC[[]byte]
	recvQ  *lfq.SPSC[[]byte]
	sendN  *atomix.Uint32
	recvN  *atomix.Uint32
	closed *atomix.Uint32
	rest   []byte
	self   bool
	serial uint32
}

// pipe holds both ends, queues, and shared state in a single allocation.
// SPSC queues are embedded as values; only the ring buffers are separate
// heap objects.
type pipe struct {
	a      End
	b      End
	closed atomix.Uint32
	dataAB lfq.SPSC[[]byte]
	dataBA lfq.SPSC[[]byte]
	nAB    atomix.Uint32
	nBA    atomix.Uint32
}

// serials numbers pipes for diagnostics.
var serials atomix.Uint32

// Pipe creates a connected pair of Ends. Bytes written to one are read
// from the other in order. Closing either End closes the pipe: the peer
// drains what was written and then reads io.EOF.
func Pipe() (*End, *End) {
	s := serials.Add(1)

	p := &pipe{}
	p.dataAB.Init(queueCapacity)
	p.dataBA.Init(queueCapacity)

	p.a = End{
		sendQ:  &p.dataAB,
		recvQ:  &p.dataBA,
		sendN:  &p.nAB,
		recvN:  &p.nBA,
		closed: &p.closed,
		serial: s,
	}
	p.b = End{
		sendQ:  &p.dataBA,
		recvQ:  &p.dataAB,
		sendN:  &p.nBA,
		recvN:  &p.nAB,
		closed: &p.closed,
		serial: s,
	}
	return &p.a, &p.b
}

// Serial returns the serial number shared by both ends of the pipe.
func (e *End) Serial() uint32 { return e.serial }

// TryWrite queues up to maxChunk bytes of p for the peer.
// Returns iox.ErrWouldBlock if the queue is full.
func (e *End) TryWrite(p []byte) (int, error) {
	if e.self || e.closed.Load() > 0 {
		return 0, io.ErrClosedPipe
	}
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) > maxChunk {
		p = p[:maxChunk]
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)
	if err := e.sendQ.Enqueue(&chunk); err != nil {
		return 0, err
	}
	e.sendN.Add(1)
	return len(p), nil
}

// TryRead reads buffered bytes into p.
// Returns iox.ErrWouldBlock if nothing is buffered, and io.EOF once the
// pipe is closed and drained.
func (e *End) TryRead(p []byte) (int, error) {
	if e.self {
		return 0, io.ErrClosedPipe
	}
	if len(e.rest) == 0 {
		// Observe close before the dequeue: anything written before the
		// close is then visible to it.
		closed := e.closed.Load() > 0
		chunk, err := e.recvQ.Dequeue()
		if err != nil {
			if closed {
				return 0, io.EOF
			}
			return 0, iox.ErrWouldBlock
		}
		e.recvN.Add(^uint32(0))
		e.rest = chunk
	}
	n := copy(p, e.rest)
	e.rest = e.rest[n:]
	return n, nil
}

// Ready reports whether TryRead or TryWrite would make progress.
func (e *End) Ready(dir cotls.Direction) bool {
	if e.self || e.closed.Load() > 0 {
		return true
	}
	switch dir {
	case cotls.WantRead:
		return len(e.rest) > 0 || e.recvN.Load() > 0
	case cotls.WantWrite:
		return e.sendN.Load() < queueCapacity-1
	}
	return false
}

// Close closes the pipe for both ends.
func (e *End) Close() error {
	if e.self {
		return io.ErrClosedPipe
	}
	e.self = true
	e.closed.Add(1)
	return nil
}
