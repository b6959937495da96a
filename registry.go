// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls

import (
	"sync"

	"github.com/pion/logging"
)

// Option configures a Registry.
type Option func(*options)

type options struct {
	loggerFactory logging.LoggerFactory
}

// WithLoggerFactory sets the factory Conn and Registry loggers are taken
// from. The default is logging.NewDefaultLoggerFactory().
func WithLoggerFactory(f logging.LoggerFactory) Option {
	return func(o *options) {
		o.loggerFactory = f
	}
}

// Registry holds the process's engine contexts: exactly one client
// context, created lazily on the first Connect, and at most one server
// context, created by InitServer before any Accept.
//
// Create one Registry during startup and pass it to every establishment
// call. Contexts are read-only once created and shared by all Conns.
type Registry struct {
	engine Engine
	sched  Scheduler
	log    logging.LeveledLogger

	mu     sync.Mutex
	client Context
	server Context
}

// NewRegistry returns a Registry whose connections run sessions from
// engine and suspend on sched.
func NewRegistry(engine Engine, sched Scheduler, opts ...Option) *Registry {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.loggerFactory == nil {
		o.loggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Registry{
		engine: engine,
		sched:  sched,
		log:    o.loggerFactory.NewLogger("cotls"),
	}
}

// Client returns the client context, creating it on first use.
func (r *Registry) Client() (Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}
	ctx, err := r.engine.ClientContext()
	if err != nil {
		return nil, configError("client context", err)
	}
	r.client = ctx
	r.log.Debug("client context initialized")
	return ctx, nil
}

// InitServer creates the server context from a PEM certificate and
// private key. A mismatched pair is rejected here, not at handshake time.
// The server context cannot be replaced once created.
func (r *Registry) InitServer(certFile, keyFile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.server != nil {
		return configError("server context", ErrAlreadyInitialized)
	}
	ctx, err := r.engine.ServerContext(certFile, keyFile)
	if err != nil {
		return configError("server context", err)
	}
	r.server = ctx
	r.log.Debugf("server context initialized from %s", certFile)
	return nil
}

// Server returns the server context, or ErrNoServerContext if InitServer
// has not succeeded.
func (r *Registry) Server() (Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.server == nil {
		return nil, configError("server context", ErrNoServerContext)
	}
	return r.server, nil
}
