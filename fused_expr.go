// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls

import (
	"code.hybscloud.com/kont"
)

// Boxed once so building Expr protocols does not allocate for them.
var (
	exprReturnFrame kont.Frame  = kont.ReturnFrame{}
	exprHandshake   kont.Erased = Handshake{}
)

func identityResume(v kont.Erased) kont.Erased { return v }

// ExprHandshakeThen completes the handshake and continues with next.
// Fuses ExprPerform(Handshake{}) + ExprThen.
func ExprHandshakeThen[B any](next kont.Expr[B]) kont.Expr[B] {
	tf := kont.AcquireThenFrame()
	tf.Second = kont.Expr[kont.Erased]{Value: kont.Erased(next.Value), Frame: next.Frame}
	tf.Next = exprReturnFrame
	ef := kont.AcquireEffectFrame()
	ef.Operation = exprHandshake
	ef.Resume = identityResume
	ef.Next = tf
	return kont.ExprSuspend[B](ef)
}

func countBindUnwind[B any](data, _, _ kont.Erased, current kont.Erased) (kont.Erased, kont.Frame) {
	f := data.(func(int) kont.Expr[B])
	result := f(current.(int))
	return kont.Erased(result.Value), result.Frame
}

// ExprReadBind reads into buf and passes the byte count to f.
// Fuses ExprPerform(Read{Buf: buf}) + ExprBind.
func ExprReadBind[B any](buf []byte, f func(int) kont.Expr[B]) kont.Expr[B] {
	return exprCountBind[B](Read{Buf: buf}, f)
}

// ExprWriteBind writes buf once and passes the possibly short count to f.
// Fuses ExprPerform(Write{Buf: buf}) + ExprBind.
func ExprWriteBind[B any](buf []byte, f func(int) kont.Expr[B]) kont.Expr[B] {
	return exprCountBind[B](Write{Buf: buf}, f)
}

func exprCountBind[B any](op kont.Erased, f func(int) kont.Expr[B]) kont.Expr[B] {
	bf := kont.AcquireUnwindFrame()
	bf.Data1 = f
	bf.Unwind = countBindUnwind[B]
	ef := kont.AcquireEffectFrame()
	ef.Operation = op
	ef.Resume = identityResume
	ef.Next = bf
	return kont.ExprSuspend[B](ef)
}
