// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls

import (
	"io"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// Step evaluates an Expr-world connection protocol until the first effect
// suspension. Returns (Either[error, R], nil) on completion or error, or
// (zero, suspension) if an operation is pending. Cont-world protocols are
// converted with Reify.
func Step[R any](protocol kont.Expr[R]) (kont.Either[error, R], *kont.Suspension[kont.Either[error, R]]) {
	wrapped := kont.ExprMap(protocol, func(r R) kont.Either[error, R] {
		return kont.Right[error, R](r)
	})
	return kont.StepExpr(wrapped)
}

// Advance makes one attempt of the suspended operation on c.
//
// On success the suspension is consumed and the protocol advances to the
// next effect or completion. On iox.ErrWouldBlock the suspension is
// returned unconsumed; c.Want and c.Pollable name what to wait for before
// calling Advance again with it. A fatal error or end of stream discards
// the suspension and returns Left. Error ops are eager: Throw discards the
// suspension and returns Left.
func Advance[R any](c *Conn, susp *kont.Suspension[kont.Either[error, R]]) (kont.Either[error, R], *kont.Suspension[kont.Either[error, R]], error) {
	if cop, ok := susp.Op().(connDispatcher); ok {
		if c.closed {
			susp.Discard()
			return kont.Left[error, R](closedError(cop.opName())), nil, nil
		}
		v, err := cop.DispatchConn(c)
		if err == nil {
			result, next := susp.Resume(v)
			return result, next, nil
		}
		if iox.IsWouldBlock(err) && c.sess.Want() != WantNone {
			var zero kont.Either[error, R]
			return zero, susp, err
		}
		susp.Discard()
		switch {
		case err == io.EOF && cop.opName() == opRead:
			return kont.Left[error, R](io.EOF), nil, nil
		case iox.IsWouldBlock(err):
			return kont.Left[error, R](c.fail(cop.opName(), ErrNoDirection)), nil, nil
		default:
			return kont.Left[error, R](c.fail(cop.opName(), err)), nil, nil
		}
	}
	if eop, ok := susp.Op().(interface {
		DispatchError(ctx *kont.ErrorContext[error]) (kont.Resumed, bool)
	}); ok {
		var ctx kont.ErrorContext[error]
		v, _ := eop.DispatchError(&ctx)
		if ctx.HasErr {
			susp.Discard()
			return kont.Left[error, R](ctx.Err), nil, nil
		}
		result, next := susp.Resume(v)
		return result, next, nil
	}
	panic("cotls: unhandled effect in Advance")
}
