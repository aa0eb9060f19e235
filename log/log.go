// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log defines the tripwire logger interface. By default it writes
// levelled lines to stderr but it can be replaced with user-defined loggers.
// Scan reports never go through the logger; they are written to stdout or to
// the configured output files.
package log

import (
	"fmt"
	"io"
	golog "log"
	"os"
	"sync"
)

// Logger is the tripwire logging interface.
type Logger interface {
	// Logs in different log levels, either formatted or unformatted.
	Errorf(format string, args ...any)
	Error(args ...any)
	Warnf(format string, args ...any)
	Warn(args ...any)
	Infof(format string, args ...any)
	Info(args ...any)
	Debugf(format string, args ...any)
	Debug(args ...any)
}

var (
	mu     sync.RWMutex
	logger Logger = NewDefaultLogger(os.Stderr, false)
)

// SetLogger overwrites the default logger with a user specified one.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func current() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Errorf is the static formatted error logging function.
func Errorf(format string, args ...any) { current().Errorf(format, args...) }

// Warnf is the static formatted warning logging function.
func Warnf(format string, args ...any) { current().Warnf(format, args...) }

// Infof is the static formatted info logging function.
func Infof(format string, args ...any) { current().Infof(format, args...) }

// Debugf is the static formatted debug logging function.
func Debugf(format string, args ...any) { current().Debugf(format, args...) }

// Error is the static error logging function.
func Error(args ...any) { current().Error(args...) }

// Warn is the static warning logging function.
func Warn(args ...any) { current().Warn(args...) }

// Info is the static info logging function.
func Info(args ...any) { current().Info(args...) }

// Debug is the static debug logging function.
func Debug(args ...any) { current().Debug(args...) }

// DefaultLogger is the Logger implementation used by default.
// Every line carries a level tag, e.g. "WARN: cannot open foo.json".
type DefaultLogger struct {
	Verbose bool // Whether debug logs should be shown.
	out     *golog.Logger
}

// NewDefaultLogger returns a DefaultLogger writing to w.
func NewDefaultLogger(w io.Writer, verbose bool) *DefaultLogger {
	return &DefaultLogger{Verbose: verbose, out: golog.New(w, "", golog.LstdFlags)}
}

func (l *DefaultLogger) print(level string, msg string) {
	if l.out == nil {
		golog.Print(level + ": " + msg)
		return
	}
	l.out.Print(level + ": " + msg)
}

// Errorf is the formatted error logging function.
func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.print("ERROR", fmt.Sprintf(format, args...))
}

// Warnf is the formatted warning logging function.
func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.print("WARN", fmt.Sprintf(format, args...))
}

// Infof is the formatted info logging function.
func (l *DefaultLogger) Infof(format string, args ...any) {
	l.print("INFO", fmt.Sprintf(format, args...))
}

// Debugf is the formatted debug logging function.
func (l *DefaultLogger) Debugf(format string, args ...any) {
	if l.Verbose {
		l.print("DEBUG", fmt.Sprintf(format, args...))
	}
}

// Error is the error logging function.
func (l *DefaultLogger) Error(args ...any) { l.print("ERROR", fmt.Sprint(args...)) }

// Warn is the warning logging function.
func (l *DefaultLogger) Warn(args ...any) { l.print("WARN", fmt.Sprint(args...)) }

// Info is the info logging function.
func (l *DefaultLogger) Info(args ...any) { l.print("INFO", fmt.Sprint(args...)) }

// Debug is the debug logging function.
func (l *DefaultLogger) Debug(args ...any) {
	if l.Verbose {
		l.print("DEBUG", fmt.Sprint(args...))
	}
}
