// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls

import (
	"bytes"
	"io"

	"code.hybscloud.com/kont"
)

// Loop runs a recursive connection protocol such as a read-until-delimiter
// loop. step returns Left(nextState) to continue or Right(result) to finish.
func Loop[S, A any](initial S, step func(S) kont.Eff[kont.Either[S, A]]) kont.Eff[A] {
	return kont.Bind(step(initial), func(e kont.Either[S, A]) kont.Eff[A] {
		if next, ok := e.GetLeft(); ok {
			return Loop(next, step)
		}
		result, _ := e.GetRight()
		return kont.Pure(result)
	})
}

// ExprLoop is the Expr-world Loop. When a step completes without
// performing an effect the next step runs directly; otherwise the
// continuation is chained after the step's frames.
func ExprLoop[S, A any](initial S, step func(S) kont.Expr[kont.Either[S, A]]) kont.Expr[A] {
	m := step(initial)
	if _, ok := m.Frame.(kont.ReturnFrame); ok {
		if next, ok := m.Value.GetLeft(); ok {
			return ExprLoop(next, step)
		}
		result, _ := m.Value.GetRight()
		return kont.ExprReturn(result)
	}
	bf := kont.AcquireBindFrame()
	bf.F = func(v kont.Erased) kont.Expr[kont.Erased] {
		e := v.(kont.Either[S, A])
		if next, ok := e.GetLeft(); ok {
			loop := ExprLoop(next, step)
			return kont.Expr[kont.Erased]{Value: kont.Erased(loop.Value), Frame: loop.Frame}
		}
		result, _ := e.GetRight()
		return kont.Expr[kont.Erased]{Value: kont.Erased(result), Frame: kont.ReturnFrame{}}
	}
	bf.Next = kont.ReturnFrame{}
	var zero A
	return kont.Expr[A]{Value: zero, Frame: kont.ChainFrames(m.Frame, bf)}
}

// ReadUntil reads into buf until the bytes read so far contain delim and
// resumes with their count. Bytes past the delimiter stay in buf for the
// caller. A full buf without delim throws ErrNoDelimiter and a read of
// zero bytes throws io.ErrNoProgress. End of stream short-circuits with
// io.EOF as for Read.
func ReadUntil(buf []byte, delim byte) kont.Eff[int] {
	return Loop(0, func(filled int) kont.Eff[kont.Either[int, int]] {
		if filled == len(buf) {
			return kont.ThrowError[error, kont.Either[int, int]](ErrNoDelimiter)
		}
		return ReadBind(buf[filled:], func(n int) kont.Eff[kont.Either[int, int]] {
			e, err := scanUntil(buf, delim, filled, n)
			if err != nil {
				return kont.ThrowError[error, kont.Either[int, int]](err)
			}
			return kont.Pure(e)
		})
	})
}

// ExprReadUntil is the Expr-world ReadUntil.
func ExprReadUntil(buf []byte, delim byte) kont.Expr[int] {
	return ExprLoop(0, func(filled int) kont.Expr[kont.Either[int, int]] {
		if filled == len(buf) {
			return kont.ExprThrowError[error, kont.Either[int, int]](ErrNoDelimiter)
		}
		return ExprReadBind(buf[filled:], func(n int) kont.Expr[kont.Either[int, int]] {
			e, err := scanUntil(buf, delim, filled, n)
			if err != nil {
				return kont.ExprThrowError[error, kont.Either[int, int]](err)
			}
			return kont.ExprReturn(e)
		})
	})
}

// scanUntil looks for delim among the n bytes just read after filled.
func scanUntil(buf []byte, delim byte, filled, n int) (kont.Either[int, int], error) {
	if n == 0 {
		return kont.Either[int, int]{}, io.ErrNoProgress
	}
	if bytes.IndexByte(buf[filled:filled+n], delim) >= 0 {
		return kont.Right[int, int](filled + n), nil
	}
	return kont.Left[int, int](filled + n), nil
}
