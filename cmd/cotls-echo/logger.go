// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/pion/logging"
	"github.com/rs/zerolog"
)

func newLogger(out io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("log level: %w", err)
	}
	output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "cotls-echo").Logger(), nil
}

// loggerFactory routes library logs through zerolog, one scope per logger.
type loggerFactory struct {
	log zerolog.Logger
}

func (f loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return leveled{f.log.With().Str("scope", scope).Logger()}
}

type leveled struct {
	log zerolog.Logger
}

func (l leveled) Trace(msg string)                          { l.log.Trace().Msg(msg) }
func (l leveled) Tracef(format string, args ...interface{}) { l.log.Trace().Msgf(format, args...) }
func (l leveled) Debug(msg string)                          { l.log.Debug().Msg(msg) }
func (l leveled) Debugf(format string, args ...interface{}) { l.log.Debug().Msgf(format, args...) }
func (l leveled) Info(msg string)                           { l.log.Info().Msg(msg) }
func (l leveled) Infof(format string, args ...interface{})  { l.log.Info().Msgf(format, args...) }
func (l leveled) Warn(msg string)                           { l.log.Warn().Msg(msg) }
func (l leveled) Warnf(format string, args ...interface{})  { l.log.Warn().Msgf(format, args...) }
func (l leveled) Error(msg string)                          { l.log.Error().Msg(msg) }
func (l leveled) Errorf(format string, args ...interface{}) { l.log.Error().Msgf(format, args...) }
