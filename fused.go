// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls

import (
	"io"

	"code.hybscloud.com/kont"
)

// HandshakeThen completes the handshake and then continues with next.
// Fuses Perform(Handshake{}) + Then.
func HandshakeThen[B any](next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Handshake{}), next)
}

// ReadBind reads into buf and passes the byte count to f.
// Fuses Perform(Read{Buf: buf}) + Bind.
func ReadBind[B any](buf []byte, f func(int) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Read{Buf: buf}), f)
}

// WriteBind writes buf once and passes the possibly short count to f.
// Fuses Perform(Write{Buf: buf}) + Bind.
func WriteBind[B any](buf []byte, f func(int) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Write{Buf: buf}), f)
}

// WriteThen writes all of buf, issuing further writes for short counts,
// and then continues with next. A write that makes no progress throws
// io.ErrShortWrite.
func WriteThen[B any](buf []byte, next kont.Eff[B]) kont.Eff[B] {
	if len(buf) == 0 {
		return next
	}
	return WriteBind(buf, func(n int) kont.Eff[B] {
		if n == 0 {
			return kont.ThrowError[error, B](io.ErrShortWrite)
		}
		return WriteThen(buf[n:], next)
	})
}

// Done ends a protocol with a.
func Done[A any](a A) kont.Eff[A] {
	return kont.Pure(a)
}
