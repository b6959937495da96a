// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package tlsengine_test

import (
	"fmt"
	"io"
	"testing"
	"time"

	"code.hybscloud.com/cotls/coop"
	"code.hybscloud.com/cotls/netpoll"
	"code.hybscloud.com/cotls/tcp"
)

func TestEchoOverTCPCoop(t *testing.T) {
	p := newPKI(t)
	loop, err := coop.New()
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	defer loop.Close()
	reg := newRegistry(t, p, loop)
	ln, err := tcp.Listen("127.0.0.1:0", tcp.DefaultBacklog, loop)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	addr := ln.Addr().String()
	deadline := time.Now().Add(10 * time.Second)
	const clients = 3

	loop.Go(func() {
		for i := 0; i < clients; i++ {
			c, err := reg.Accept(ln, deadline)
			if err != nil {
				t.Errorf("accept: %v", err)
				return
			}
			loop.Go(func() {
				defer c.Close()
				for {
					line, err := readLine(c, deadline)
					if err == io.EOF {
						return
					}
					if err != nil {
						t.Errorf("server read: %v", err)
						return
					}
					if _, err := c.WriteFull([]byte(line), deadline); err != nil {
						t.Errorf("server write: %v", err)
						return
					}
				}
			})
		}
	})

	echoed := 0
	for i := 0; i < clients; i++ {
		loop.Go(func() {
			c, err := reg.Connect(tcp.Transport{Sched: loop}, addr, deadline)
			if err != nil {
				t.Errorf("connect: %v", err)
				return
			}
			defer c.Close()
			for j := 1; j <= 2; j++ {
				msg := fmt.Sprintf("%d: This is test %d.\n", i, j)
				if _, err := c.WriteFull([]byte(msg), deadline); err != nil {
					t.Errorf("client write: %v", err)
					return
				}
				got, err := readLine(c, deadline)
				if err != nil {
					t.Errorf("client read: %v", err)
					return
				}
				if got != msg {
					t.Errorf("got %q, want %q", got, msg)
					return
				}
				echoed++
			}
		})
	}

	if err := loop.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if echoed != clients*2 {
		t.Fatalf("got %d echoes, want %d", echoed, clients*2)
	}
}

func TestEchoOverTCPNetpoll(t *testing.T) {
	p := newPKI(t)
	sched := netpoll.New()
	reg := newRegistry(t, p, sched)
	ln, err := tcp.Listen("127.0.0.1:0", tcp.DefaultBacklog, sched)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	deadline := time.Now().Add(10 * time.Second)

	done := make(chan error, 1)
	go func() {
		c, err := reg.Accept(ln, deadline)
		if err != nil {
			done <- err
			return
		}
		defer c.Close()
		line, err := readLine(c, deadline)
		if err == nil {
			_, err = c.WriteFull([]byte(line), deadline)
		}
		done <- err
	}()

	c, err := reg.Connect(tcp.Transport{Sched: sched}, ln.Addr().String(), deadline)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	if err := c.Handshake(deadline); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	msg := "1: This is a test.\n"
	if _, err := c.WriteFull([]byte(msg), deadline); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := readLine(c, deadline)
	if err != nil || got != msg {
		t.Fatalf("got (%q, %v), want %q", got, err, msg)
	}
	if err := <-done; err != nil {
		t.Fatalf("server: %v", err)
	}
}
