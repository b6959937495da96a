// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package coop

import (
	"time"

	"code.hybscloud.com/cotls"
)

// Loop is unavailable on this platform.
type Loop struct{}

// New returns ErrUnsupported on this platform.
func New() (*Loop, error) { return nil, ErrUnsupported }

func (l *Loop) Go(fn func()) {}

func (l *Loop) Run() error { return ErrUnsupported }

func (l *Loop) Close() error { return ErrUnsupported }

func (l *Loop) WaitFor(cotls.Pollable, cotls.Direction, time.Time) error {
	return ErrUnsupported
}
