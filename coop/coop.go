// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coop

import (
	"errors"
	"time"
)

// ProbeInterval bounds how long the loop sleeps while a task waits on a
// pollable without a descriptor.
const ProbeInterval = time.Millisecond

var (
	// ErrNotInTask is returned by WaitFor when called outside a task of the loop.
	ErrNotInTask = errors.New("coop: WaitFor called outside a loop task")
	// ErrBusy is returned when two tasks wait on the same descriptor in the same direction.
	ErrBusy = errors.New("coop: descriptor already has a waiter in this direction")
	// ErrClosed is returned by operations on a closed loop.
	ErrClosed = errors.New("coop: loop closed")
	// ErrUnsupported is returned by New on platforms without epoll.
	ErrUnsupported = errors.New("coop: this platform is not supported")
)
