// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cotls runs secure-transport sessions over non-blocking byte
// streams under a cooperative scheduler, with an absolute deadline on
// every blocking operation.
//
// A [Conn] pairs a transport [Handle] with an engine [Session]. Every
// operation tries the engine first; when the engine reports
// [code.hybscloud.com/iox.ErrWouldBlock] together with a [Direction], the
// calling task is suspended on the handle through a [Scheduler] and the
// same attempt is repeated once the handle is ready. Only the scheduler
// ever blocks. If the deadline elapses first the operation fails with
// [KindTimeout] and the connection stays usable.
//
// # Architecture
//
//   - Contexts: a [Registry] holds one client context (created lazily) and
//     at most one server context ([Registry.InitServer]).
//   - Establishment: [Registry.Connect] and [Registry.Accept] take a
//     transport connection, detach its handle and wrap it in a session.
//   - Errors: every failure is an [*Error] with a [Kind] and an errno;
//     errors.Is matches [ErrTimeout], [ErrFatal] and the other kind
//     sentinels. [Conn.LastError] describes the most recent failure.
//   - Collaborators: engines live in tlsengine, schedulers in netpoll and
//     coop, transports in tcp and memio.
//
// # Protocols
//
// Conn operations are also effects on [code.hybscloud.com/kont]:
// [Handshake], [Read] and [Write]. Protocols compose them with
// [HandshakeThen], [ReadBind], [WriteBind], [WriteThen] and [Loop] (or
// the Expr-world variants) and run with [Exec], which applies the same
// retry and deadline rules, or step with [Step] and [Advance], which make
// exactly one attempt per call and leave waiting to a proactor:
//
//	_, susp := cotls.Step(protocol)
//	for susp != nil {
//		var err error
//		if _, susp, err = cotls.Advance(c, susp); err != nil {
//			register(c.Pollable(), c.Want()) // iox.ErrWouldBlock
//		}
//	}
//
// # Example
//
//	sched := netpoll.New()
//	reg := cotls.NewRegistry(tlsengine.New(tlsengine.Config{ServerName: "example.com"}), sched)
//	c, err := reg.Connect(tcp.Transport{Sched: sched}, "example.com:443", time.Now().Add(5*time.Second))
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//	_, err = c.WriteFull([]byte("ping\n"), time.Now().Add(time.Second))
package cotls
