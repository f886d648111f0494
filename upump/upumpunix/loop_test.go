package upumpunix

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventfdWakesRunAndFiresCallback(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	fired := make(chan struct{}, 1)
	ew, err := l.AllocEventfd(func() { fired <- struct{}{} })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.NoError(t, ew.Signal())

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("eventfd callback never fired")
	}

	l.StopAll()
	cancel()
	<-done
}

func TestTimerFiresAfterDelay(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	fired := make(chan struct{}, 1)
	_, err = l.AllocTimer(10*time.Millisecond, 0, func() { fired <- struct{}{} })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	l.StopAll()
	cancel()
	<-done
}

func TestBlockerSuppressesTimerCallback(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	fired := make(chan struct{}, 1)
	w, err := l.AllocTimer(5*time.Millisecond, 5*time.Millisecond, func() { fired <- struct{}{} })
	require.NoError(t, err)

	blocker := w.Block()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-fired:
		t.Fatal("callback fired while blocked")
	case <-time.After(50 * time.Millisecond):
	}

	blocker.Release()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired after unblock")
	}

	l.StopAll()
	cancel()
	<-done
}

func TestIdlerFiresWhenNoOtherEventsPending(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	count := make(chan struct{}, 1)
	_, err = l.AllocIdler(func() {
		select {
		case count <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-count:
	case <-time.After(2 * time.Second):
		t.Fatal("idler never fired")
	}

	l.StopAll()
	cancel()
	<-done
}
