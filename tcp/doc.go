// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tcp is the TCP transport for cotls.
//
// Sockets are created non-blocking with golang.org/x/sys/unix. Connect
// and Accept suspend through a cotls.Scheduler instead of blocking the
// thread, and the detached Handle reads and writes with single
// non-blocking system calls. Handles expose their descriptor through
// syscall.Conn so both netpoll and coop schedulers wait on it directly.
//
// The transport is only available on Linux.
package tcp
