// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls_test

import (
	"testing"

	"code.hybscloud.com/cotls"
	"code.hybscloud.com/kont"
)

// BenchmarkReadFastPath measures a read that completes on the first attempt.
func BenchmarkReadFastPath(b *testing.B) {
	f := newFixture()
	c := f.connect(b)
	buf := make([]byte, 64)
	b.ReportAllocs()
	for b.Loop() {
		f.sess.ops = f.sess.ops[:0]
		if _, err := c.Read(buf, len(buf), cotls.NoDeadline); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkReadOneSuspension measures a read that would-blocks once.
func BenchmarkReadOneSuspension(b *testing.B) {
	f := newFixture()
	c := f.connect(b)
	buf := make([]byte, 64)
	b.ReportAllocs()
	for b.Loop() {
		f.sess.ops = f.sess.ops[:0]
		f.sched.waits = f.sched.waits[:0]
		f.sess.script = append(f.sess.script[:0], blocked(cotls.WantRead))
		if _, err := c.Read(buf, len(buf), cotls.NoDeadline); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkExecEcho measures a write-then-read protocol through Exec.
func BenchmarkExecEcho(b *testing.B) {
	f := newFixture()
	c := f.connect(b)
	msg := []byte("ping\n")
	buf := make([]byte, 64)
	b.ReportAllocs()
	for b.Loop() {
		f.sess.ops = f.sess.ops[:0]
		protocol := cotls.WriteThen(msg, cotls.ReadBind(buf, func(n int) kont.Eff[int] {
			return cotls.Done(n)
		}))
		cotls.Exec(c, cotls.NoDeadline, protocol)
	}
}

// BenchmarkStepAdvance measures the proactor path for one read.
func BenchmarkStepAdvance(b *testing.B) {
	f := newFixture()
	c := f.connect(b)
	buf := make([]byte, 64)
	b.ReportAllocs()
	for b.Loop() {
		f.sess.ops = f.sess.ops[:0]
		protocol := cotls.ExprReadBind(buf, func(n int) kont.Expr[int] { return kont.ExprReturn(n) })
		stepAll(c, protocol)
	}
}
