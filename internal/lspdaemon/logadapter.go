// Copyright Cairo-M Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package lspdaemon

import (
	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logrusCore is a zapcore.Core that forwards every entry to logrus, so that
// go.lsp.dev/jsonrpc2's own wire-level logging (it only knows how to talk to
// *zap.Logger) lands on the same logger and formatter as the rest of this
// daemon's diagnostics, instead of pulling in a second logging stack.
type logrusCore struct {
	fields []zapcore.Field
}

func newLogrusCore() zapcore.Core { return logrusCore{} }

func (c logrusCore) Enabled(level zapcore.Level) bool {
	return zapLevelToLogrus(level) <= log.GetLevel()
}

func (c logrusCore) With(fields []zapcore.Field) zapcore.Core {
	return logrusCore{fields: append(append([]zapcore.Field{}, c.fields...), fields...)}
}

func (c logrusCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}

	return ce
}

func (c logrusCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()

	for _, f := range c.fields {
		f.AddTo(enc)
	}

	for _, f := range fields {
		f.AddTo(enc)
	}

	fields_ := log.Fields{}
	for k, v := range enc.Fields {
		fields_[k] = v
	}

	fields_["component"] = entry.LoggerName

	log.WithFields(fields_).Log(zapLevelToLogrus(entry.Level), entry.Message)

	return nil
}

func (c logrusCore) Sync() error { return nil }

func zapLevelToLogrus(level zapcore.Level) log.Level {
	switch {
	case level >= zapcore.ErrorLevel:
		return log.ErrorLevel
	case level >= zapcore.WarnLevel:
		return log.WarnLevel
	case level >= zapcore.InfoLevel:
		return log.InfoLevel
	default:
		return log.DebugLevel
	}
}

// zapLogger builds a *zap.Logger backed by logrusCore, passed to
// jsonrpc2.NewConn via jsonrpc2.WithLogger so the one library in this
// daemon's dependency set that insists on a zap logger still ends up
// writing through the same logrus formatter as everything else.
func zapLogger() *zap.Logger {
	return zap.New(newLogrusCore())
}
