// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package coop

import (
	"container/heap"
	"fmt"
	"time"

	"code.hybscloud.com/cotls"
	"code.hybscloud.com/cotls/internal/sysfd"
	"github.com/eapache/queue"
	"golang.org/x/sys/unix"
)

const maxEvents = 128

// Loop is a single-baton task scheduler backed by epoll.
//
// Go and WaitFor may only be called from inside a task of the loop, or
// from the goroutine that calls Run before Run starts.
type Loop struct {
	epfd    int
	runq    *queue.Queue // of *task
	timers  timerHeap
	fds     map[int]*fdWaiters
	probes  []*waiter
	yield   chan struct{}
	current *task
	live    int
	closed  bool
	events  [maxEvents]unix.EpollEvent
}

type task struct {
	resume chan error
	wake   error
	exited bool
}

type waiter struct {
	t        *task
	p        cotls.Pollable
	dir      cotls.Direction
	fd       int
	deadline time.Time
	index    int
}

type fdWaiters struct {
	r, w       *waiter
	registered bool
}

// New returns a Loop with its own epoll instance.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("coop: epoll create: %w", err)
	}
	return &Loop{
		epfd:  epfd,
		runq:  queue.New(),
		fds:   make(map[int]*fdWaiters),
		yield: make(chan struct{}),
	}, nil
}

// Go adds fn as a new runnable task.
func (l *Loop) Go(fn func()) {
	t := &task{resume: make(chan error)}
	l.live++
	l.runq.Add(t)
	go func() {
		<-t.resume
		fn()
		t.exited = true
		l.yield <- struct{}{}
	}()
}

// Run executes tasks until all of them have returned.
func (l *Loop) Run() error {
	if l.closed {
		return ErrClosed
	}
	for l.live > 0 {
		for l.runq.Length() > 0 {
			t := l.runq.Remove().(*task)
			l.current = t
			t.resume <- t.wake
			<-l.yield
			l.current = nil
			if t.exited {
				l.live--
			}
		}
		if l.live == 0 {
			break
		}
		if err := l.poll(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the epoll instance. Call it after Run returns.
func (l *Loop) Close() error {
	if l.closed {
		return ErrClosed
	}
	l.closed = true
	return unix.Close(l.epfd)
}

// WaitFor implements cotls.Scheduler. It hands the baton back to the loop
// and returns once p is ready in dir or the deadline has elapsed.
func (l *Loop) WaitFor(p cotls.Pollable, dir cotls.Direction, deadline time.Time) error {
	t := l.current
	if t == nil {
		return ErrNotInTask
	}
	if dir != cotls.WantRead && dir != cotls.WantWrite {
		return cotls.ErrNoDirection
	}
	if !deadline.IsZero() && !time.Now().Before(deadline) {
		return cotls.ErrTimeout
	}
	w := &waiter{t: t, p: p, dir: dir, fd: -1, deadline: deadline, index: -1}
	if fd, err := sysfd.Fd(p); err == nil {
		w.fd = fd
		if err := l.watch(w); err != nil {
			return err
		}
	} else {
		l.probes = append(l.probes, w)
	}
	if !deadline.IsZero() {
		heap.Push(&l.timers, w)
	}
	l.yield <- struct{}{}
	return <-t.resume
}

func (l *Loop) watch(w *waiter) error {
	fw := l.fds[w.fd]
	if fw == nil {
		fw = &fdWaiters{}
		l.fds[w.fd] = fw
	}
	slot := &fw.r
	if w.dir == cotls.WantWrite {
		slot = &fw.w
	}
	if *slot != nil {
		return ErrBusy
	}
	*slot = w
	if err := l.update(w.fd, fw); err != nil {
		*slot = nil
		return err
	}
	return nil
}

// update syncs the epoll interest set of fd with its waiters.
// Level-triggered, so a descriptor that is already ready fires at once.
func (l *Loop) update(fd int, fw *fdWaiters) error {
	var ev unix.EpollEvent
	if fw.r != nil {
		ev.Events |= unix.EPOLLIN
	}
	if fw.w != nil {
		ev.Events |= unix.EPOLLOUT
	}
	ev.Fd = int32(fd)
	switch {
	case ev.Events == 0:
		delete(l.fds, fd)
		if fw.registered {
			fw.registered = false
			// The descriptor may already be closed; that removes it too.
			_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		}
		return nil
	case fw.registered:
		if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
			return fmt.Errorf("coop: epoll ctl mod: %w", err)
		}
	default:
		if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			delete(l.fds, fd)
			return fmt.Errorf("coop: epoll ctl add: %w", err)
		}
		fw.registered = true
	}
	return nil
}

// wake makes w's task runnable with err as the result of its WaitFor and
// drops every other registration of w.
func (l *Loop) wake(w *waiter, err error) {
	if w.index >= 0 {
		heap.Remove(&l.timers, w.index)
	}
	if w.fd >= 0 {
		if fw := l.fds[w.fd]; fw != nil {
			if fw.r == w {
				fw.r = nil
			}
			if fw.w == w {
				fw.w = nil
			}
			_ = l.update(w.fd, fw)
		}
	} else {
		for i, pw := range l.probes {
			if pw == w {
				l.probes = append(l.probes[:i], l.probes[i+1:]...)
				break
			}
		}
	}
	w.t.wake = err
	l.runq.Add(w.t)
}

// poll blocks until at least one waiter can be woken.
func (l *Loop) poll() error {
	if l.probe() {
		return nil
	}
	timeout := -1
	if len(l.probes) > 0 {
		timeout = int(ProbeInterval / time.Millisecond)
	}
	if next, ok := l.timers.next(); ok {
		ms := int((time.Until(next) + time.Millisecond - 1) / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
		if timeout < 0 || ms < timeout {
			timeout = ms
		}
	}

	n, err := unix.EpollWait(l.epfd, l.events[:], timeout)
	if err != nil && err != unix.EINTR {
		return fmt.Errorf("coop: epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		ev := l.events[i]
		fw := l.fds[int(ev.Fd)]
		if fw == nil {
			continue
		}
		failed := ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
		if w := fw.r; w != nil && (failed || ev.Events&unix.EPOLLIN != 0) {
			l.wake(w, nil)
		}
		if w := fw.w; w != nil && (failed || ev.Events&unix.EPOLLOUT != 0) {
			l.wake(w, nil)
		}
	}

	now := time.Now()
	for {
		next, ok := l.timers.next()
		if !ok || next.After(now) {
			break
		}
		l.wake(l.timers[0], cotls.ErrTimeout)
	}
	return nil
}

// probe wakes every descriptor-less waiter whose pollable is ready.
func (l *Loop) probe() bool {
	woke := false
	for i := 0; i < len(l.probes); {
		w := l.probes[i]
		if w.p.Ready(w.dir) {
			l.wake(w, nil)
			woke = true
			continue
		}
		i++
	}
	return woke
}
