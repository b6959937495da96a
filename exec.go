// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls

import (
	"time"

	"code.hybscloud.com/kont"
)

// connHandler handles connection and error effects.
// Connection ops run through the retry/suspend loop; error ops
// short-circuit on Throw.
// Value type: passed to evalFrames on the stack, avoiding heap allocation.
type connHandler[A any] struct {
	c        *Conn
	deadline time.Time
	errCtx   *kont.ErrorContext[error]
}

// Dispatch implements kont.Handler for the composed Conn+Error handler.
// Dispatch order: Conn → Error.
func (h connHandler[A]) Dispatch(op kont.Operation) (kont.Resumed, bool) {
	if cop, ok := op.(connDispatcher); ok {
		var v kont.Resumed
		err := h.c.drive(cop.opName(), h.deadline, func() (err error) {
			v, err = cop.DispatchConn(h.c)
			return err
		})
		if err != nil {
			return kont.Left[error, A](err), false
		}
		return v, true
	}
	if eop, ok := op.(interface {
		DispatchError(ctx *kont.ErrorContext[error]) (kont.Resumed, bool)
	}); ok {
		v, _ := eop.DispatchError(h.errCtx)
		if h.errCtx.HasErr {
			return kont.Left[error, A](h.errCtx.Err), false
		}
		return v, true
	}
	panic("cotls: unhandled effect in connHandler")
}

// Exec runs a protocol on c with every operation bounded by deadline.
// Returns Either[error, R]: Right on success, Left with the first
// operation error (classified *Error, or io.EOF) or thrown error.
//
// Suspends only inside the connection's scheduler, without spawning
// goroutines or creating channels.
func Exec[R any](c *Conn, deadline time.Time, protocol kont.Eff[R]) kont.Either[error, R] {
	wrapped := kont.Map[kont.Resumed, R, kont.Either[error, R]](protocol, func(r R) kont.Either[error, R] {
		return kont.Right[error, R](r)
	})
	var errCtx kont.ErrorContext[error]
	h := connHandler[R]{c: c, deadline: deadline, errCtx: &errCtx}
	return kont.Handle(wrapped, h)
}

// ExecExpr runs an Expr-world connection protocol on c.
// It behaves like Exec.
func ExecExpr[R any](c *Conn, deadline time.Time, protocol kont.Expr[R]) kont.Either[error, R] {
	wrapped := kont.ExprMap(protocol, func(r R) kont.Either[error, R] {
		return kont.Right[error, R](r)
	})
	var errCtx kont.ErrorContext[error]
	h := connHandler[R]{c: c, deadline: deadline, errCtx: &errCtx}
	return kont.HandleExpr(wrapped, h)
}

// Reify converts a Cont-world protocol for Step, Advance, ExecExpr or
// RunPair.
func Reify[A any](m kont.Eff[A]) kont.Expr[A] { return kont.Reify(m) }

// Reflect converts an Expr-world protocol for Exec.
func Reflect[A any](m kont.Expr[A]) kont.Eff[A] { return kont.Reflect(m) }
