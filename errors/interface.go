/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package errors classifies every failure the gateway, spawner and worker can
// raise into the taxonomy the system's error-handling design names:
// ProtocolError, StorageTransient, StorageConflict, StorageAuth,
// StorageDiskFull, RenderFailure, SandboxViolation, ResourceExhaustion and
// Fatal. Each carries enough structure to pick the right client-visible
// "error: cmd=.. kind=.." line, or to decide whether a retry makes sense.
package errors

import "fmt"

// Code classifies a failure. Unlike an HTTP status code, these map directly
// onto the retry/surface decision a DocumentBroker has to make.
type Code uint8

const (
	CodeUnknown Code = iota
	CodeProtocol
	CodeStorageTransient
	CodeStorageConflict
	CodeStorageAuth
	CodeStorageDiskFull
	CodeRenderFailure
	CodeSandboxViolation
	CodeResourceExhaustion
	CodeFatal
)

func (c Code) String() string {
	switch c {
	case CodeProtocol:
		return "protocol"
	case CodeStorageTransient:
		return "storage-transient"
	case CodeStorageConflict:
		return "storage-conflict"
	case CodeStorageAuth:
		return "storage-auth"
	case CodeStorageDiskFull:
		return "storage-diskfull"
	case CodeRenderFailure:
		return "render-failure"
	case CodeSandboxViolation:
		return "sandbox-violation"
	case CodeResourceExhaustion:
		return "resource-exhaustion"
	case CodeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Retryable reports whether the propagation policy allows an automatic retry
// for this class of failure, per the storage-failure classification in the
// DocumentBroker design.
func (c Code) Retryable() bool {
	return c == CodeStorageTransient
}

// ErrorCmd and ErrorKind map a Code onto the `error: cmd=<c> kind=<k>`
// wire message the external-interfaces section defines.
func (c Code) ErrorCmd() string {
	switch c {
	case CodeProtocol:
		return "syntax"
	case CodeStorageTransient, CodeStorageConflict, CodeStorageAuth, CodeStorageDiskFull:
		return "storage"
	case CodeRenderFailure:
		return "load"
	case CodeResourceExhaustion:
		return "internal"
	default:
		return "internal"
	}
}

func (c Code) ErrorKind() string {
	switch c {
	case CodeProtocol:
		return "syntax"
	case CodeStorageConflict:
		return "documentconflict"
	case CodeStorageAuth:
		return "unauthorized"
	case CodeStorageDiskFull:
		return "diskfull"
	case CodeStorageTransient:
		return "network"
	case CodeRenderFailure:
		return "failed"
	case CodeResourceExhaustion:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a classified, wrappable error. It behaves like a standard Go
// error (supports errors.Is/As via Unwrap) but additionally exposes the
// Code needed to route a failure to the right client message or retry path.
type Error interface {
	error
	Code() Code
	Unwrap() error
}

type classified struct {
	code Code
	msg  string
	err  error
}

// New creates a classified Error with the given code and message, optionally
// wrapping a lower-level cause (e.g. the *http.Response error from a WOPI
// call, or a syscall error from the sandbox).
func New(code Code, msg string, cause error) Error {
	return &classified{code: code, msg: msg, err: cause}
}

// Newf is New with fmt.Sprintf-style formatting of the message.
func Newf(code Code, cause error, format string, args ...interface{}) Error {
	return &classified{code: code, msg: fmt.Sprintf(format, args...), err: cause}
}

func (e *classified) Code() Code { return e.code }

func (e *classified) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *classified) Unwrap() error { return e.err }

// Is implements matching against another classified Error by Code, so
// callers can write `errors.Is(err, errors.New(errors.CodeStorageConflict, "", nil))`.
func (e *classified) Is(target error) bool {
	t, ok := target.(*classified)
	if !ok {
		return false
	}
	return t.code == e.code
}

// Of extracts the Code of err if it is (or wraps) a classified Error,
// returning CodeUnknown otherwise.
func Of(err error) Code {
	var c Error
	for err != nil {
		if ce, ok := err.(Error); ok {
			c = ce
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if c == nil {
		return CodeUnknown
	}
	return c.Code()
}
