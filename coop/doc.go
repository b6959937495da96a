// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package coop is a cooperative cotls.Scheduler.
//
// A Loop runs tasks one at a time. A task keeps the baton until it
// returns or waits in WaitFor; the loop then resumes the next runnable
// task, or blocks in epoll(7) until a descriptor becomes ready or a
// deadline elapses. Code running inside tasks therefore needs no locks,
// which is the execution model cotls connections are written for.
//
//	loop, err := coop.New()
//	if err != nil {
//		return err
//	}
//	defer loop.Close()
//	reg := cotls.NewRegistry(engine, loop)
//	loop.Go(func() { serve(reg) })
//	return loop.Run()
//
// Pollables that do not expose a descriptor are re-probed every
// ProbeInterval while the loop is otherwise idle.
//
// Loops are only available on Linux; New fails elsewhere.
package coop
