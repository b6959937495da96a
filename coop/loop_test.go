// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package coop_test

import (
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"code.hybscloud.com/cotls"
	"code.hybscloud.com/cotls/coop"
	"golang.org/x/sys/unix"
)

type fdPollable struct{ *os.File }

func (fdPollable) Ready(cotls.Direction) bool { return false }

type flag struct{ ready bool }

func (f *flag) Ready(cotls.Direction) bool { return f.ready }

func socketpair(t *testing.T) (fdPollable, fdPollable) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	a, b := os.NewFile(uintptr(fds[0]), "a"), os.NewFile(uintptr(fds[1]), "b")
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return fdPollable{a}, fdPollable{b}
}

func newLoop(t *testing.T) *coop.Loop {
	t.Helper()
	l, err := coop.New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLoopRunsTasksInOrder(t *testing.T) {
	l := newLoop(t)
	var order []int
	for i := 1; i <= 3; i++ {
		l.Go(func() { order = append(order, i) })
	}
	if err := l.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reflect.DeepEqual(order, []int{1, 2, 3}) {
		t.Fatalf("got %v, want [1 2 3]", order)
	}
}

func TestLoopWaitForReadable(t *testing.T) {
	l := newLoop(t)
	a, b := socketpair(t)
	var order []string
	var werr error
	l.Go(func() {
		order = append(order, "wait")
		werr = l.WaitFor(a, cotls.WantRead, time.Now().Add(5*time.Second))
		order = append(order, "woken")
	})
	l.Go(func() {
		order = append(order, "write")
		if _, err := b.Write([]byte("x")); err != nil {
			t.Errorf("write: %v", err)
		}
	})
	if err := l.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if werr != nil {
		t.Fatalf("wait: %v", werr)
	}
	if want := []string{"wait", "write", "woken"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("got %v, want %v", order, want)
	}
}

func TestLoopWaitForWritable(t *testing.T) {
	l := newLoop(t)
	a, _ := socketpair(t)
	var werr error
	l.Go(func() { werr = l.WaitFor(a, cotls.WantWrite, cotls.NoDeadline) })
	if err := l.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if werr != nil {
		t.Fatalf("wait: %v", werr)
	}
}

func TestLoopTimeout(t *testing.T) {
	l := newLoop(t)
	a, _ := socketpair(t)
	var werr error
	var elapsed time.Duration
	l.Go(func() {
		start := time.Now()
		werr = l.WaitFor(a, cotls.WantRead, start.Add(20*time.Millisecond))
		elapsed = time.Since(start)
	})
	if err := l.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !errors.Is(werr, cotls.ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", werr)
	}
	if elapsed < 20*time.Millisecond {
		t.Fatalf("timed out after %v", elapsed)
	}
}

func TestLoopPastDeadline(t *testing.T) {
	l := newLoop(t)
	var werr error
	l.Go(func() { werr = l.WaitFor(&flag{ready: true}, cotls.WantRead, time.Now().Add(-time.Second)) })
	if err := l.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !errors.Is(werr, cotls.ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", werr)
	}
}

func TestLoopProbesPollables(t *testing.T) {
	l := newLoop(t)
	f := &flag{}
	var werr error
	l.Go(func() { werr = l.WaitFor(f, cotls.WantRead, time.Now().Add(5*time.Second)) })
	l.Go(func() { f.ready = true })
	if err := l.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if werr != nil {
		t.Fatalf("wait: %v", werr)
	}
}

func TestLoopOneTaskAtATime(t *testing.T) {
	l := newLoop(t)
	running, maxRunning := 0, 0
	enter := func() {
		running++
		maxRunning = max(maxRunning, running)
	}
	woken := 0
	for i := 0; i < 4; i++ {
		a, b := socketpair(t)
		l.Go(func() {
			enter()
			defer func() { running-- }()
			running--
			err := l.WaitFor(a, cotls.WantWrite, time.Now().Add(5*time.Second))
			enter()
			if err != nil {
				t.Errorf("task %d: wait: %v", i, err)
				return
			}
			woken++
			b.Write([]byte{byte(i)})
		})
	}
	if err := l.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if woken != 4 {
		t.Fatalf("got %d tasks woken, want 4", woken)
	}
	if maxRunning != 1 {
		t.Fatalf("got %d tasks running at once, want 1", maxRunning)
	}
}

func TestLoopBusyDescriptor(t *testing.T) {
	l := newLoop(t)
	a, b := socketpair(t)
	var first, second error
	l.Go(func() { first = l.WaitFor(a, cotls.WantRead, time.Now().Add(5*time.Second)) })
	l.Go(func() {
		second = l.WaitFor(a, cotls.WantRead, time.Now().Add(5*time.Second))
		b.Write([]byte("x"))
	})
	if err := l.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if first != nil {
		t.Fatalf("first waiter: %v", first)
	}
	if !errors.Is(second, coop.ErrBusy) {
		t.Fatalf("got %v, want ErrBusy", second)
	}
}

func TestWaitForOutsideTask(t *testing.T) {
	l := newLoop(t)
	if err := l.WaitFor(&flag{}, cotls.WantRead, cotls.NoDeadline); !errors.Is(err, coop.ErrNotInTask) {
		t.Fatalf("got %v, want ErrNotInTask", err)
	}
}

func TestLoopClose(t *testing.T) {
	l, err := coop.New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := l.Close(); !errors.Is(err, coop.ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
	if err := l.Run(); !errors.Is(err, coop.ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}
