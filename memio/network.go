// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package memio

import (
	"errors"
	"net"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/cotls"
)

var (
	ErrAddrInUse  = errors.New("memio: address already in use")
	ErrRefused    = errors.New("memio: connection refused")
	ErrClosed     = errors.New("memio: listener closed")
	ErrBadBacklog = errors.New("memio: backlog must be positive")
	ErrDetached   = errors.New("memio: connection already detached")
)

// Addr is the name a Listener is bound to.
type Addr string

func (Addr) Network() string  { return "memio" }
func (a Addr) String() string { return string(a) }

// Network is an in-memory namespace of listeners.
// Connect and Accept suspend through the scheduler the Network was
// created with.
type Network struct {
	sched cotls.Scheduler

	mu        sync.Mutex
	listeners map[string]*Listener
}

// NewNetwork returns an empty Network whose waits go through sched.
func NewNetwork(sched cotls.Scheduler) *Network {
	return &Network{sched: sched, listeners: make(map[string]*Listener)}
}

// Listen binds name with room for backlog pending connections.
func (n *Network) Listen(name string, backlog int) (*Listener, error) {
	if backlog <= 0 {
		return nil, ErrBadBacklog
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.listeners[name]; ok {
		return nil, ErrAddrInUse
	}
	l := &Listener{net: n, name: name, backlog: make(chan *End, backlog)}
	n.listeners[name] = l
	return l, nil
}

// Connect connects to the listener bound to name. Like TCP with a full
// backlog it is refused at once when nobody can take the connection.
// The deadline is accepted for interface symmetry; connecting never
// waits.
func (n *Network) Connect(name string, deadline time.Time) (cotls.TransportConn, error) {
	n.mu.Lock()
	l, ok := n.listeners[name]
	n.mu.Unlock()
	if !ok || l.closed.Load() > 0 {
		return nil, ErrRefused
	}
	local, remote := Pipe()
	select {
	case l.backlog <- remote:
		return &Conn{end: local}, nil
	default:
		return nil, ErrRefused
	}
}

// Listener accepts connections made to its name.
type Listener struct {
	net     *Network
	name    string
	backlog chan *End
	closed  atomix.Uint32
}

// Addr returns the bound name.
func (l *Listener) Addr() net.Addr { return Addr(l.name) }

// Ready reports whether Accept would return without waiting.
func (l *Listener) Ready(dir cotls.Direction) bool {
	return dir == cotls.WantRead && (len(l.backlog) > 0 || l.closed.Load() > 0)
}

// Accept takes the next pending connection, suspending until one arrives
// or deadline elapses.
func (l *Listener) Accept(deadline time.Time) (cotls.TransportConn, error) {
	for {
		if l.closed.Load() > 0 {
			return nil, ErrClosed
		}
		select {
		case e := <-l.backlog:
			return &Conn{end: e}, nil
		default:
		}
		if err := l.net.sched.WaitFor(l, cotls.WantRead, deadline); err != nil {
			return nil, err
		}
	}
}

// Close unbinds the name. Pending connections are closed.
func (l *Listener) Close() error {
	if l.closed.Add(1) != 1 {
		return ErrClosed
	}
	l.net.mu.Lock()
	delete(l.net.listeners, l.name)
	l.net.mu.Unlock()
	for {
		select {
		case e := <-l.backlog:
			_ = e.Close()
		default:
			return nil
		}
	}
}

// Conn is an established in-memory transport connection.
type Conn struct {
	end *End
}

// Detach hands the pipe end over. The Conn is unusable afterwards.
func (c *Conn) Detach() cotls.Handle {
	e := c.end
	c.end = nil
	return e
}

// Close closes the connection unless it was detached.
func (c *Conn) Close() error {
	if c.end == nil {
		return ErrDetached
	}
	err := c.end.Close()
	c.end = nil
	return err
}
