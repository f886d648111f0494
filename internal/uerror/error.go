// Package uerror provides the structured error type shared by every
// upipe package: a single closed taxonomy (Code) plus enough context
// (operation, pipe signature, wrapped errno) to make control-plane
// failures actionable without per-package sentinel errors.
package uerror

import (
	"errors"
	"fmt"
	"syscall"
)

// Code is the closed error taxonomy from the core failure model.
// Every control-plane return and every FATAL probe event carries one.
type Code string

const (
	CodeNone      Code = "none"      // success; rarely constructed, kept for symmetry
	CodeUnhandled Code = "unhandled" // command not recognised by this manager
	CodeAlloc     Code = "alloc"     // allocation failed
	CodeUpump     Code = "upump"     // event-loop resource exhaustion
	CodeExternal  Code = "external"  // external system (OS, driver, codec) failed
	CodeInvalid   Code = "invalid"   // argument does not meet contract
	CodeBusy      Code = "busy"      // resource temporarily unavailable
	CodeNospc     Code = "nospc"     // buffer too small
)

// Error is the one structured error type used across the module.
type Error struct {
	Op    string // operation that failed, e.g. "SET-FLOW-DEF", "ubuf.block.write"
	Pipe  string // originating pipe/manager signature, empty if not applicable
	Code  Code
	Errno syscall.Errno // 0 if not applicable
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	switch {
	case e.Op != "" && e.Pipe != "":
		return fmt.Sprintf("upipe: %s (op=%s pipe=%s)", msg, e.Op, e.Pipe)
	case e.Op != "":
		return fmt.Sprintf("upipe: %s (op=%s)", msg, e.Op)
	default:
		return fmt.Sprintf("upipe: %s", msg)
	}
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is against another *Error, matching on Code equality.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// New constructs an *Error with the given operation, code and message.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewOnPipe constructs an *Error tagged with the originating pipe signature.
func NewOnPipe(op, pipe string, code Code, msg string) *Error {
	return &Error{Op: op, Pipe: pipe, Code: code, Msg: msg}
}

// Wrap attaches operation context to an existing error, mapping a raw
// syscall.Errno to the closest Code when the inner error is one.
func Wrap(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ue, ok := inner.(*Error); ok {
		return &Error{Op: op, Pipe: ue.Pipe, Code: ue.Code, Errno: ue.Errno, Msg: ue.Msg, Inner: ue.Inner}
	}
	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{Op: op, Code: codeFromErrno(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Code: CodeExternal, Msg: inner.Error(), Inner: inner}
}

func codeFromErrno(errno syscall.Errno) Code {
	switch errno {
	case syscall.EINVAL, syscall.E2BIG:
		return CodeInvalid
	case syscall.EBUSY, syscall.EAGAIN:
		return CodeBusy
	case syscall.ENOMEM:
		return CodeAlloc
	case syscall.ENOSPC:
		return CodeNospc
	case syscall.ENOSYS, syscall.EMFILE, syscall.ENFILE:
		return CodeUpump
	default:
		return CodeExternal
	}
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
