// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tlsengine implements the cotls engine interfaces with crypto/tls.
//
// crypto/tls expects a blocking net.Conn and latches the first I/O error
// it sees, so a would-block cannot travel through it. Each session
// therefore runs the TLS state machine against an in-memory transport:
// every pending operation executes on a worker goroutine, and the
// calling task acts as the driver. Ciphertext the worker produces is
// flushed to the handle with non-blocking writes; when the worker starves
// for input the driver reads from the handle. Whenever the handle cannot
// make progress the driver returns iox.ErrWouldBlock and Want names the
// direction, so the caller can suspend and repeat the same call.
//
// At most one handshake, one read, and one write or shutdown are pending
// at a time. A read and a write may overlap only once the handshake has
// completed; any other overlap fails with ErrOperationPending.
package tlsengine
