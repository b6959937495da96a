// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !unix

package netpoll

import "code.hybscloud.com/cotls"

// Without poll(2) the callback cannot probe; the poller's own readiness
// notification after the first park is taken as ready.
const canProbe = false

func probe(int, cotls.Direction) (bool, error) {
	return false, nil
}
