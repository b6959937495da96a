// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command cotls-echo exchanges TLS-protected lines between cooperative
// clients and a server.
//
// In server mode it accepts connections and echoes one line on each. In
// client mode it starts the configured number of clients, each sending
// "<n>: This is a test.\n" and reading the echo. Demo mode runs both in
// one process and stops once the server has been idle for the accept
// deadline.
//
//	cotls-echo -mode demo -scheduler coop
//	cotls-echo -config echo.toml -mode server
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"code.hybscloud.com/cotls"
	"code.hybscloud.com/cotls/tcp"
	"code.hybscloud.com/cotls/tlsengine"
	"github.com/rs/zerolog"
)

var errServerInit = errors.New("server initialization failed")

func main() {
	cfg, err := resolveConfig(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cotls-echo: %v\n", err)
		os.Exit(2)
	}
	log, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cotls-echo: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg, log, os.Stderr); err != nil {
		log.Error().Err(err).Msg("cotls-echo failed")
		os.Exit(1)
	}
}

func run(cfg config, log zerolog.Logger, stderr io.Writer) error {
	rn, err := newRunner(cfg.Scheduler)
	if err != nil {
		return err
	}
	defer rn.close()

	lf := loggerFactory{log}
	eng := tlsengine.New(tlsengine.Config{
		CAFile:             cfg.CAFile,
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		LoggerFactory:      lf,
	})
	e := &echo{
		cfg: cfg,
		reg: cotls.NewRegistry(eng, rn.sched, cotls.WithLoggerFactory(lf)),
		run: rn,
		log: log,
	}

	if cfg.Mode != "client" {
		ln, err := e.listen(stderr)
		if err != nil {
			return err
		}
		log.Info().Str("addr", ln.Addr().String()).Str("scheduler", cfg.Scheduler).Msg("listening")
		stopOnIdle := cfg.Mode == "demo"
		rn.spawn(func() { e.serve(ln, stopOnIdle) })
	}
	if cfg.Mode != "server" {
		e.startClients(tcp.Transport{Sched: rn.sched}, cfg.Connect)
	}
	if err := rn.wait(); err != nil {
		return err
	}
	if n := e.failures.Load(); n > 0 {
		return fmt.Errorf("%d of %d exchanges failed", n, e.exchanges.Load())
	}
	return nil
}

// listen initializes the server context and opens the listening socket.
func (e *echo) listen(stderr io.Writer) (cotls.Listener, error) {
	if err := e.reg.InitServer(e.cfg.CertFile, e.cfg.KeyFile); err != nil {
		e.log.Error().Err(err).Str("cert_file", e.cfg.CertFile).Str("key_file", e.cfg.KeyFile).Msg("server init")
		fmt.Fprintln(stderr, "Use the following command to create a self-signed certificate:")
		fmt.Fprintln(stderr, "openssl req -x509 -newkey rsa:2048 -keyout key.pem -out cert.pem -days 100 -nodes -subj /CN=localhost -addext subjectAltName=DNS:localhost")
		return nil, errServerInit
	}
	ln, err := tcp.Listen(e.cfg.Listen, e.cfg.Backlog, e.run.sched)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", e.cfg.Listen, err)
	}
	return ln, nil
}
