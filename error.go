// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cotls

import (
	"errors"
	"os"
	"syscall"
)

// Kind classifies a failed operation.
type Kind uint8

const (
	_ Kind = iota
	// KindInvalidArgument: rejected before any engine call.
	KindInvalidArgument
	// KindTimeout: the deadline elapsed while suspended. The Conn stays open.
	KindTimeout
	// KindFatal: non-retryable protocol or I/O failure.
	KindFatal
	// KindResource: session allocation failed during establishment.
	KindResource
	// KindConfig: missing or invalid context configuration.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindTimeout:
		return "timeout"
	case KindFatal:
		return "fatal"
	case KindResource:
		return "resource exhausted"
	case KindConfig:
		return "configuration"
	default:
		return "unknown"
	}
}

// Kind sentinels. errors.Is(err, ErrTimeout) reports whether err is an
// *Error of KindTimeout, and so on.
var (
	ErrInvalidArgument = errors.New("cotls: invalid argument")
	ErrTimeout         = errors.New("cotls: timeout")
	ErrFatal           = errors.New("cotls: fatal protocol or I/O error")
	ErrResource        = errors.New("cotls: resource exhausted")
	ErrConfig          = errors.New("cotls: configuration error")
)

// Causes reported by this package.
var (
	ErrNoServerContext    = errors.New("cotls: server context not initialized")
	ErrAlreadyInitialized = errors.New("cotls: server context already initialized")
	ErrNoDirection        = errors.New("cotls: would block without direction")
	ErrClosed             = errors.New("cotls: use of closed connection")
	ErrBadCount           = errors.New("cotls: engine count exceeds requested length")
	ErrNoDelimiter        = errors.New("cotls: buffer full before delimiter")
)

// Error is the classified result of a failed operation.
type Error struct {
	Op    string
	Kind  Kind
	Errno syscall.Errno
	Err   error
}

func (e *Error) Error() string {
	msg := "cotls: " + e.Op + ": " + e.Kind.String()
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	if e.Errno != 0 {
		return msg + ": " + e.Errno.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the Kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidArgument:
		return e.Kind == KindInvalidArgument
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrFatal:
		return e.Kind == KindFatal
	case ErrResource:
		return e.Kind == KindResource
	case ErrConfig:
		return e.Kind == KindConfig
	}
	return false
}

// Timeout reports whether the operation timed out.
func (e *Error) Timeout() bool { return e.Kind == KindTimeout }

// Temporary reports whether retrying the operation may succeed.
func (e *Error) Temporary() bool { return e.Kind == KindTimeout }

func invalidArgument(op string) *Error {
	return &Error{Op: op, Kind: KindInvalidArgument, Errno: syscall.EINVAL}
}

func timeoutError(op string) *Error {
	return &Error{Op: op, Kind: KindTimeout, Errno: syscall.ETIMEDOUT, Err: os.ErrDeadlineExceeded}
}

func configError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfig, Errno: syscall.EPROTO, Err: err}
}

func resourceError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindResource, Errno: syscall.ENOMEM, Err: err}
}

// fatalError classifies err as non-retryable. Transport-layer causes keep
// their errno; anything else is reported as EIO.
func fatalError(op string, err error) *Error {
	e := &Error{Op: op, Kind: KindFatal, Errno: syscall.EIO, Err: err}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		e.Errno = errno
	}
	return e
}

// isTimeout reports whether err is a deadline expiry from a scheduler
// or transport.
func isTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
