// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package clog is the access layer's internal logging seam. Components
// take a Clog instead of calling a logger directly so tests can silence
// or capture output without touching global state.
package clog

import "sync/atomic"

// LogProvider is anything that can sink structured access-layer log
// lines. Fields carry the context (element index, model index, opcode,
// page) a line is about.
type LogProvider interface {
	Critical(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
}

// Clog wraps a LogProvider behind an enable flag so components can hold
// a Clog by value and log unconditionally; the cost of a disabled log
// line is one atomic load.
type Clog struct {
	provider LogProvider
	has      uint32
}

// NewLogger returns a Clog backed by the default logrus provider tagged
// with component.
func NewLogger(component string) Clog {
	return Clog{provider: newLogrusProvider(component), has: 0}
}

// LogMode enables or disables log output.
func (sf *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&sf.has, 1)
	} else {
		atomic.StoreUint32(&sf.has, 0)
	}
}

// SetLogProvider overrides the log sink, e.g. to capture lines in a test.
func (sf *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.provider = p
	}
}

// Critical logs a CRITICAL level message.
func (sf Clog) Critical(msg string, fields map[string]any) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Critical(msg, fields)
	}
}

// Error logs an ERROR level message.
func (sf Clog) Error(msg string, fields map[string]any) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Error(msg, fields)
	}
}

// Warn logs a WARN level message.
func (sf Clog) Warn(msg string, fields map[string]any) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Warn(msg, fields)
	}
}

// Debug logs a DEBUG level message.
func (sf Clog) Debug(msg string, fields map[string]any) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Debug(msg, fields)
	}
}
