// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/cotls"
	"code.hybscloud.com/cotls/coop"
	"code.hybscloud.com/cotls/netpoll"
	"github.com/rs/zerolog"
)

const maxLine = 256

var errLineTooLong = errors.New("line too long")

// runner starts tasks on the configured scheduler and waits for them.
type runner struct {
	sched cotls.Scheduler
	spawn func(func())
	wait  func() error
	close func() error
}

func newRunner(kind string) (*runner, error) {
	switch kind {
	case "coop":
		loop, err := coop.New()
		if err != nil {
			return nil, fmt.Errorf("coop loop: %w", err)
		}
		return &runner{sched: loop, spawn: loop.Go, wait: loop.Run, close: loop.Close}, nil
	case "netpoll":
		var wg sync.WaitGroup
		return &runner{
			sched: netpoll.New(),
			spawn: func(fn func()) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					fn()
				}()
			},
			wait:  func() error { wg.Wait(); return nil },
			close: func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("%w: unsupported scheduler %q", errInvalidConfig, kind)
}

// echo is the line echo exchange: every client sends one line, the server
// sends it back and closes.
type echo struct {
	cfg config
	reg *cotls.Registry
	run *runner
	log zerolog.Logger

	exchanges atomix.Uint32
	failures  atomix.Uint32
}

// serve accepts until the listener fails. With stopOnIdle an accept
// timeout ends the loop as well; otherwise the loop keeps accepting.
func (e *echo) serve(ln cotls.Listener, stopOnIdle bool) {
	defer ln.Close()
	for {
		c, err := e.reg.Accept(ln, time.Now().Add(e.cfg.AcceptDeadline))
		if errors.Is(err, cotls.ErrTimeout) {
			if stopOnIdle {
				e.log.Info().Msg("no more connections")
				return
			}
			e.log.Debug().Msg("accept timed out")
			continue
		}
		if err != nil {
			e.log.Error().Err(err).Msg("accept failed")
			return
		}
		e.run.spawn(func() { e.handle(c) })
	}
}

func (e *echo) handle(c *cotls.Conn) {
	log := e.log.With().Uint32("conn", c.Serial()).Logger()
	defer func() {
		if err := c.Close(); err != nil {
			log.Debug().Err(err).Msg("close")
		}
	}()
	deadline := time.Now().Add(e.cfg.Deadline)
	line, err := readLine(c, deadline)
	if err != nil {
		log.Warn().Err(err).Str("last_error", c.LastError()).Msg("read request")
		return
	}
	log.Info().Str("request", line).Msg("request")
	if _, err := c.WriteFull([]byte(line), deadline); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

// client runs one exchange as client num.
func (e *echo) client(num int, tr cotls.Transport, addr string) {
	e.exchanges.Add(1)
	log := e.log.With().Int("client", num).Logger()
	if err := e.exchange(num, tr, addr, log); err != nil {
		e.failures.Add(1)
		log.Error().Err(err).Msg("exchange failed")
	}
}

func (e *echo) exchange(num int, tr cotls.Transport, addr string, log zerolog.Logger) error {
	deadline := time.Now().Add(e.cfg.Deadline)
	c, err := e.reg.Connect(tr, addr, deadline)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer c.Close()

	req := fmt.Sprintf("%d: This is a test.\n", num)
	if _, err := c.WriteFull([]byte(req), deadline); err != nil {
		return fmt.Errorf("write: %w (%s)", err, c.LastError())
	}
	resp, err := readLine(c, deadline)
	if err != nil {
		return fmt.Errorf("read: %w (%s)", err, c.LastError())
	}
	if resp != req {
		return fmt.Errorf("response %q does not echo %q", resp, req)
	}
	log.Info().Str("response", resp).Msg("response")
	return nil
}

func (e *echo) startClients(tr cotls.Transport, addr string) {
	for i := 1; i <= e.cfg.Clients; i++ {
		e.run.spawn(func() { e.client(i, tr, addr) })
	}
}

// readLine reads the first line on c. Each side of an exchange sends one
// line and waits for the answer, so nothing follows it on the wire.
func readLine(c *cotls.Conn, deadline time.Time) (string, error) {
	var buf [maxLine]byte
	result := cotls.Exec(c, deadline, cotls.ReadUntil(buf[:], '\n'))
	if err, ok := result.GetLeft(); ok {
		if errors.Is(err, cotls.ErrNoDelimiter) {
			return "", errLineTooLong
		}
		return "", err
	}
	n, _ := result.GetRight()
	end := bytes.IndexByte(buf[:n], '\n')
	return string(buf[:end+1]), nil
}
