// Package xassert centralizes the two places this module needs to talk
// about a violated invariant: a structured, swappable debug log for
// conditions that should never happen but must not crash a production
// build, and a panic-to-error boundary for the one place a user-supplied
// value can misbehave during a push.
package xassert

import (
	"fmt"

	goerrors "github.com/agilira/go-errors"
	"go.uber.org/zap"
)

var logger = zap.NewNop()

// SetLogger replaces the package-level diagnostic logger. Intended for
// tests and for applications that want invariant violations surfaced
// through their own logging pipeline.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// Invariant logs a DPanic-level diagnostic if cond is false: it crashes
// under the development build config (zap.Config.Development) but only
// logs in a production configuration, matching the "implementation uses
// assertions" debug channel described for this code.
func Invariant(cond bool, msg string, fields ...zap.Field) {
	if cond {
		return
	}
	logger.DPanic(msg, fields...)
}

const errCodePushPanic = "LFCONTAINERS_PUSH_PANIC"

// PushPanicError wraps a panic value recovered while moving a
// caller-supplied value into a producer slot. The producer slot has
// already been rolled back to empty by the time this error is
// constructed; the caller is expected to re-panic with it so the panic
// still propagates to the original caller of Push, per this module's
// contract.
type PushPanicError struct {
	cause error
}

func (e *PushPanicError) Error() string { return e.cause.Error() }
func (e *PushPanicError) Unwrap() error { return e.cause }

// Recover runs fn. If fn panics, the producer slot rollback callback
// rollback is invoked first, then Recover re-panics with a
// *PushPanicError wrapping the original panic value in a coded,
// stack-annotated go-errors error.
func Recover(rollback func(), fn func()) {
	defer func() {
		if r := recover(); r != nil {
			rollback()
			wrapped := goerrors.New(errCodePushPanic, fmt.Sprintf("panic during push: %v", r))
			panic(&PushPanicError{cause: wrapped})
		}
	}()
	fn()
}
