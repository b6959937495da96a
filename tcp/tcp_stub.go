// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package tcp

import (
	"errors"
	"net"
	"time"

	"code.hybscloud.com/cotls"
)

// DefaultBacklog is the listen backlog used when Listen is given zero.
const DefaultBacklog = 128

// ErrUnsupported is returned on platforms without the TCP transport.
var ErrUnsupported = errors.New("tcp: this platform is not supported")

type Transport struct {
	Sched cotls.Scheduler
}

func (Transport) Connect(string, time.Time) (cotls.TransportConn, error) {
	return nil, ErrUnsupported
}

type Listener struct{}

func Listen(string, int, cotls.Scheduler) (*Listener, error) { return nil, ErrUnsupported }

func (*Listener) Accept(time.Time) (cotls.TransportConn, error) { return nil, ErrUnsupported }
func (*Listener) Addr() net.Addr                               { return nil }
func (*Listener) Close() error                                 { return ErrUnsupported }
