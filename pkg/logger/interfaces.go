/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

//go:generate mockgen -destination=mock_logger.go -package=logger github.com/carverauto/geoshim/pkg/logger Logger

package logger

import (
	"io"

	"github.com/rs/zerolog"
)

type Logger interface {
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	Fatal() *zerolog.Event
	Panic() *zerolog.Event
	With() zerolog.Context
	WithComponent(component string) zerolog.Logger
	WithFields(fields map[string]interface{}) zerolog.Logger
	SetLevel(level zerolog.Level)
	SetDebug(debug bool)
}

// NewTestLogger creates a no-op logger for testing that discards all output
func NewTestLogger() Logger {
	nopLogger := zerolog.New(io.Discard).Level(zerolog.Disabled)
	return &testLogger{nop: nopLogger}
}

// testLogger is a simple logger implementation for testing
type testLogger struct {
	nop zerolog.Logger
}

func (t *testLogger) Trace() *zerolog.Event { return t.nop.Trace() }
func (t *testLogger) Debug() *zerolog.Event { return t.nop.Debug() }
func (t *testLogger) Info() *zerolog.Event  { return t.nop.Info() }
func (t *testLogger) Warn() *zerolog.Event  { return t.nop.Warn() }
func (t *testLogger) Error() *zerolog.Event { return t.nop.Error() }
func (t *testLogger) Fatal() *zerolog.Event { return t.nop.Fatal() }
func (t *testLogger) Panic() *zerolog.Event { return t.nop.Panic() }
func (t *testLogger) With() zerolog.Context { return t.nop.With() }
func (t *testLogger) WithComponent(component string) zerolog.Logger {
	return t.nop.With().Str("component", component).Logger()
}
func (t *testLogger) WithFields(fields map[string]interface{}) zerolog.Logger {
	return t.nop.With().Fields(fields).Logger()
}
func (t *testLogger) SetLevel(level zerolog.Level) { t.nop = t.nop.Level(level) }
func (*testLogger) SetDebug(_ bool)                { /* no-op */ }

// NewWriterLogger wraps an arbitrary writer, mostly so tests can inspect output.
func NewWriterLogger(w io.Writer, level zerolog.Level) Logger {
	return &writerLogger{logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

type writerLogger struct {
	logger zerolog.Logger
}

func (w *writerLogger) Trace() *zerolog.Event { return w.logger.Trace() }
func (w *writerLogger) Debug() *zerolog.Event { return w.logger.Debug() }
func (w *writerLogger) Info() *zerolog.Event  { return w.logger.Info() }
func (w *writerLogger) Warn() *zerolog.Event  { return w.logger.Warn() }
func (w *writerLogger) Error() *zerolog.Event { return w.logger.Error() }
func (w *writerLogger) Fatal() *zerolog.Event { return w.logger.Fatal() }
func (w *writerLogger) Panic() *zerolog.Event { return w.logger.Panic() }
func (w *writerLogger) With() zerolog.Context { return w.logger.With() }
func (w *writerLogger) WithComponent(component string) zerolog.Logger {
	return w.logger.With().Str("component", component).Logger()
}
func (w *writerLogger) WithFields(fields map[string]interface{}) zerolog.Logger {
	return w.logger.With().Fields(fields).Logger()
}
func (w *writerLogger) SetLevel(level zerolog.Level) { w.logger = w.logger.Level(level) }
func (w *writerLogger) SetDebug(debug bool) {
	if debug {
		w.SetLevel(zerolog.DebugLevel)
	} else {
		w.SetLevel(zerolog.InfoLevel)
	}
}
