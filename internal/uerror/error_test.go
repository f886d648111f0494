package uerror

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFormatsMessage(t *testing.T) {
	err := New("SET-FLOW-DEF", CodeInvalid, "flow def not accepted")
	require.Equal(t, "upipe: flow def not accepted (op=SET-FLOW-DEF)", err.Error())
	require.Equal(t, CodeInvalid, err.Code)
}

func TestNewOnPipeIncludesPipe(t *testing.T) {
	err := NewOnPipe("control", "pidfilter", CodeUnhandled, "unknown command")
	require.Contains(t, err.Error(), "pipe=pidfilter")
}

func TestWrapMapsErrno(t *testing.T) {
	err := Wrap("ubuf.block.write", syscall.ENOMEM)
	require.Equal(t, CodeAlloc, err.Code)
	require.Equal(t, syscall.ENOMEM, err.Errno)
}

func TestWrapPreservesExistingError(t *testing.T) {
	inner := New("alloc", CodeAlloc, "pool exhausted")
	wrapped := Wrap("ubuf.pic.resize", inner)
	require.Equal(t, CodeAlloc, wrapped.Code)
	require.Equal(t, "ubuf.pic.resize", wrapped.Op)
}

func TestWrapNilReturnsNil(t *testing.T) {
	require.Nil(t, Wrap("op", nil))
}

func TestIsHelper(t *testing.T) {
	err := New("op", CodeBusy, "busy")
	require.True(t, Is(err, CodeBusy))
	require.False(t, Is(err, CodeInvalid))
	require.False(t, Is(errors.New("plain"), CodeBusy))
}
