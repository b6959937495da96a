// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"code.hybscloud.com/cotls"
	"code.hybscloud.com/cotls/internal/certtest"
	"code.hybscloud.com/cotls/memio"
	"code.hybscloud.com/cotls/netpoll"
	"code.hybscloud.com/cotls/tlsengine"
	"github.com/rs/zerolog"
)

func TestEchoOverMemio(t *testing.T) {
	skipRace(t)
	dir := t.TempDir()
	ca := certtest.NewAuthority(t, dir, "cotls-echo test CA")
	certFile, keyFile := ca.IssueServerCert(t, dir, "localhost", []string{"localhost"}, nil)

	cfg := defaultConfig()
	cfg.Clients = 3
	cfg.Deadline = 10 * time.Second
	cfg.AcceptDeadline = 300 * time.Millisecond
	cfg.CertFile, cfg.KeyFile, cfg.CAFile = certFile, keyFile, ca.CAFile()

	rn, err := newRunner("netpoll")
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	var logs bytes.Buffer
	log := zerolog.New(zerolog.SyncWriter(&logs))
	lf := loggerFactory{log}
	eng := tlsengine.New(tlsengine.Config{CAFile: cfg.CAFile, ServerName: cfg.ServerName, LoggerFactory: lf})
	e := &echo{
		cfg: cfg,
		reg: cotls.NewRegistry(eng, rn.sched, cotls.WithLoggerFactory(lf)),
		run: rn,
		log: log,
	}
	if err := e.reg.InitServer(certFile, keyFile); err != nil {
		t.Fatalf("init server: %v", err)
	}
	nw := memio.NewNetwork(rn.sched)
	ln, err := nw.Listen("echo", cfg.Clients)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	rn.spawn(func() { e.serve(ln, true) })
	e.startClients(nw, "echo")
	if err := rn.wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := e.exchanges.Load(); got != 3 {
		t.Fatalf("got %d exchanges, want 3", got)
	}
	if got := e.failures.Load(); got != 0 {
		t.Fatalf("got %d failures, want 0:\n%s", got, logs.String())
	}
	for i := 1; i <= 3; i++ {
		if want := `"response":"` + string(rune('0'+i)) + `: This is a test.\n"`; !strings.Contains(logs.String(), want) {
			t.Fatalf("missing %s in logs:\n%s", want, logs.String())
		}
	}
	if !strings.Contains(logs.String(), "no more connections") {
		t.Fatalf("server did not stop on idle:\n%s", logs.String())
	}
}

func TestReadLine(t *testing.T) {
	skipRace(t)
	dir := t.TempDir()
	ca := certtest.NewAuthority(t, dir, "cotls-echo test CA")
	certFile, keyFile := ca.IssueServerCert(t, dir, "localhost", []string{"localhost"}, nil)
	lf := loggerFactory{zerolog.New(io.Discard)}
	sched := netpoll.New()
	eng := tlsengine.New(tlsengine.Config{CAFile: ca.CAFile(), ServerName: "localhost", LoggerFactory: lf})
	reg := cotls.NewRegistry(eng, sched, cotls.WithLoggerFactory(lf))
	if err := reg.InitServer(certFile, keyFile); err != nil {
		t.Fatalf("init server: %v", err)
	}
	nw := memio.NewNetwork(sched)
	ln, err := nw.Listen("echo", 2)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	deadline := time.Now().Add(10 * time.Second)

	// The line arrives in two records; the second exceeds maxLine.
	sends := [][]string{{"hel", "lo\n"}, {strings.Repeat("x", maxLine), "\n"}}
	done := make(chan error, len(sends))
	go func() {
		for _, parts := range sends {
			c, err := reg.Accept(ln, deadline)
			if err != nil {
				done <- err
				return
			}
			for _, part := range parts {
				if _, err = c.WriteFull([]byte(part), deadline); err != nil {
					break
				}
			}
			c.Close()
			done <- err
		}
	}()

	c, err := reg.Connect(nw, "echo", deadline)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if line, err := readLine(c, deadline); err != nil || line != "hello\n" {
		t.Fatalf("got (%q, %v), want hello", line, err)
	}
	c.Close()
	if err := <-done; err != nil {
		t.Fatalf("server: %v", err)
	}

	c, err = reg.Connect(nw, "echo", deadline)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	if _, err := readLine(c, deadline); !errors.Is(err, errLineTooLong) {
		t.Fatalf("got %v, want errLineTooLong", err)
	}
	<-done
}

func TestRunServerInitHint(t *testing.T) {
	dir := t.TempDir()
	cfg := defaultConfig()
	cfg.Mode = "server"
	cfg.CertFile = filepath.Join(dir, "cert.pem")
	cfg.KeyFile = filepath.Join(dir, "key.pem")

	var stderr bytes.Buffer
	err := run(cfg, zerolog.New(io.Discard), &stderr)
	if !errors.Is(err, errServerInit) {
		t.Fatalf("got %v, want errServerInit", err)
	}
	if !strings.Contains(stderr.String(), "openssl req -x509") {
		t.Fatalf("missing certificate hint:\n%s", stderr.String())
	}
}

func TestLoggerFactoryScopes(t *testing.T) {
	var buf bytes.Buffer
	lf := loggerFactory{zerolog.New(&buf).Level(zerolog.DebugLevel)}
	l := lf.NewLogger("tlsengine")
	l.Tracef("hidden %d", 1)
	l.Debugf("shown %d", 2)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("trace logged at debug level: %s", out)
	}
	if !strings.Contains(out, `"scope":"tlsengine"`) || !strings.Contains(out, "shown 2") {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := newLogger(io.Discard, "loud"); err == nil {
		t.Fatal("unknown level accepted")
	}
}
