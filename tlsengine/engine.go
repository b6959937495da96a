// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tlsengine

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"code.hybscloud.com/cotls"
	"github.com/pion/logging"
)

// Errors reported by the engine.
var (
	ErrOperationPending = errors.New("tlsengine: a conflicting operation is pending")
	ErrBadWriteRetry    = errors.New("tlsengine: write retried with different bytes")
	ErrNilHandle        = errors.New("tlsengine: nil handle")
	ErrFreed            = errors.New("tlsengine: session freed")
	ErrNoCertificates   = errors.New("tlsengine: no certificates in CA file")
)

// Config configures an Engine. The zero value is usable: clients verify
// peers against the system roots and require ServerName.
type Config struct {
	// TLS is cloned for every context. Certificates are replaced for the
	// server context.
	TLS *tls.Config
	// CAFile, if set, replaces RootCAs with the PEM certificates it holds.
	CAFile string
	// ServerName sets the client's expected server name.
	ServerName string
	// InsecureSkipVerify disables client-side verification.
	InsecureSkipVerify bool

	LoggerFactory logging.LoggerFactory
}

// Engine creates client and server contexts. It implements cotls.Engine.
type Engine struct {
	cfg Config
	log logging.LeveledLogger
}

// New returns an Engine.
func New(cfg Config) *Engine {
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Engine{cfg: cfg, log: cfg.LoggerFactory.NewLogger("tlsengine")}
}

func (e *Engine) base() *tls.Config {
	if e.cfg.TLS == nil {
		return &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return e.cfg.TLS.Clone()
}

// ClientContext implements cotls.Engine.
func (e *Engine) ClientContext() (cotls.Context, error) {
	c := e.base()
	if e.cfg.CAFile != "" {
		pool, err := loadPool(e.cfg.CAFile)
		if err != nil {
			return nil, err
		}
		c.RootCAs = pool
	}
	if e.cfg.ServerName != "" {
		c.ServerName = e.cfg.ServerName
	}
	if e.cfg.InsecureSkipVerify {
		c.InsecureSkipVerify = true
	}
	e.log.Debugf("client context: server name %q, verify %t", c.ServerName, !c.InsecureSkipVerify)
	return &Context{role: cotls.RoleClient, config: c, log: e.log}, nil
}

// ServerContext implements cotls.Engine. It fails if the private key does
// not match the certificate.
func (e *Engine) ServerContext(certFile, keyFile string) (cotls.Context, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("tlsengine: load key pair: %w", err)
	}
	c := e.base()
	c.Certificates = []tls.Certificate{cert}
	e.log.Debugf("server context: certificate %s", certFile)
	return &Context{role: cotls.RoleServer, config: c, log: e.log}, nil
}

func loadPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlsengine: read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("tlsengine: %s: %w", path, ErrNoCertificates)
	}
	return pool, nil
}

// Context is a read-only TLS configuration for one role.
type Context struct {
	role   cotls.Role
	config *tls.Config
	log    logging.LeveledLogger
}

// Role implements cotls.Context.
func (c *Context) Role() cotls.Role { return c.role }

// NewSession implements cotls.Context. The session owns h from now on.
func (c *Context) NewSession(h cotls.Handle) (cotls.Session, error) {
	if h == nil {
		return nil, ErrNilHandle
	}
	s := newSession(h, c.log)
	if c.role == cotls.RoleServer {
		s.conn = tls.Server(&s.bio, c.config)
	} else {
		s.conn = tls.Client(&s.bio, c.config)
	}
	return s, nil
}
