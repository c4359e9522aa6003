/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logger wraps logrus with the level/fields vocabulary the rest of
// this module logs against. It intentionally does not try to be a
// general-purpose logging facade; it only carries what the gateway, spawner
// and worker processes need: level filtering, structured fields, and a
// pluggable output sink chosen from logging.level / logging.file.property
// in the XML configuration.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface shared by every component. Entries below
// the configured level are dropped before any formatting work happens.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level

	// WithFields returns a derived Logger that always attaches the given
	// fields in addition to the parent's own.
	WithFields(f Fields) Logger

	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, err error, f Fields)

	// Fatal logs then terminates the process (os.Exit(70)), matching the
	// Fatal initialisation-failure exit code used by the gateway and
	// spawner entry points.
	Fatal(msg string, err error, f Fields)

	// Sync flushes any buffered output; safe to call from a defer.
	Sync() error
}

type lgr struct {
	mu     sync.RWMutex
	base   *logrus.Logger
	entry  *logrus.Entry
	fields Fields
	level  Level
}

// New builds a Logger writing to w at the given level. Component processes
// wrap this with their own sink (file hook, syslog hook) chosen from
// logging.file.property[@name=path] / logging.level in the XML configuration.
func New(w io.Writer, lvl Level) Logger {
	b := logrus.New()
	b.SetOutput(w)
	b.SetLevel(lvl.logrus())
	b.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &lgr{
		base:   b,
		entry:  logrus.NewEntry(b),
		fields: Fields{},
		level:  lvl,
	}
}

func (l *lgr) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = lvl
	l.base.SetLevel(lvl.logrus())
}

func (l *lgr) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *lgr) WithFields(f Fields) Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	merged := l.fields.Clone()
	for k, v := range f {
		merged[k] = v
	}

	return &lgr{
		base:   l.base,
		entry:  l.entry.WithFields(merged.logrus()),
		fields: merged,
		level:  l.level,
	}
}

func (l *lgr) Debug(msg string, f Fields) { l.log(DebugLevel, msg, nil, f) }
func (l *lgr) Info(msg string, f Fields)  { l.log(InfoLevel, msg, nil, f) }
func (l *lgr) Warn(msg string, f Fields)  { l.log(WarnLevel, msg, nil, f) }

func (l *lgr) Error(msg string, err error, f Fields) { l.log(ErrorLevel, msg, err, f) }
func (l *lgr) Fatal(msg string, err error, f Fields) { l.log(FatalLevel, msg, err, f) }

func (l *lgr) log(lvl Level, msg string, err error, f Fields) {
	e := l.entry
	if len(f) > 0 {
		e = e.WithFields(f.logrus())
	}
	if err != nil {
		e = e.WithError(err)
	}

	switch lvl {
	case DebugLevel:
		e.Debug(msg)
	case InfoLevel:
		e.Info(msg)
	case WarnLevel:
		e.Warn(msg)
	case ErrorLevel:
		e.Error(msg)
	case FatalLevel:
		e.Log(logrus.FatalLevel, msg)
		os.Exit(70)
	case PanicLevel:
		e.Log(logrus.PanicLevel, msg)
	}
}

func (l *lgr) Sync() error {
	if s, ok := l.base.Out.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}
