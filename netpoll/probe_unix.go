// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package netpoll

import (
	"code.hybscloud.com/cotls"
	"code.hybscloud.com/cotls/internal/sysfd"
)

const canProbe = true

func probe(fd int, dir cotls.Direction) (bool, error) {
	return sysfd.Poll(fd, dir)
}
