// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// RunPair steps two Expr-world protocols on two connections, typically
// both ends of one in-memory link, and returns both results.
//
// Execution is interleaved on the calling goroutine with adaptive backoff
// (iox.Backoff) when neither side can make progress. No scheduler is
// involved and no deadline applies; a side that fails stops while the
// other keeps running.
func RunPair[A, B any](ca *Conn, a kont.Expr[A], cb *Conn, b kont.Expr[B]) (kont.Either[error, A], kont.Either[error, B]) {
	resultA, suspA := Step(a)
	resultB, suspB := Step(b)
	var bo iox.Backoff
	for suspA != nil || suspB != nil {
		progress := false
		if suspA != nil {
			var err error
			resultA, suspA, err = Advance(ca, suspA)
			progress = progress || err == nil
		}
		if suspB != nil {
			var err error
			resultB, suspB, err = Advance(cb, suspB)
			progress = progress || err == nil
		}
		if progress {
			bo.Reset()
		} else {
			bo.Wait()
		}
	}
	return resultA, resultB
}
