package xfer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/upipe-go/upipe/upipe"
	"github.com/upipe-go/upipe/upump/upumpunix"
	"github.com/upipe-go/upipe/uref"
)

// echoMgr is a minimal inner-pipe manager recording the URI its
// Control received and able to throw an event on demand, used
// to exercise cross-thread transfer end to end (a command
// executes on the target thread; an event it throws reaches the
// source thread's probe).
type echoMgr struct {
	uri        string
	controlled chan struct{}
}

func (m *echoMgr) Signature() string { return "xfer-test.echo" }
func (m *echoMgr) Alloc(probe upipe.Probe, signature string, args ...any) (*upipe.Pipe, error) {
	return upipe.New(m, probe), nil
}
func (m *echoMgr) Input(p *upipe.Pipe, u *uref.Uref, pumpHint any) {}
func (m *echoMgr) Control(p *upipe.Pipe, cmd upipe.Command, args ...any) error {
	switch cmd {
	case upipe.AttachUpumpMgr:
		return nil
	case upipe.SetURI:
		m.uri = args[0].(string)
		if m.controlled != nil {
			close(m.controlled)
		}
		upipe.Throw(p, upipe.EventSourceEnd)
		return nil
	}
	return nil
}

func TestProxyForwardsControlAndReThrowsWhitelistedEvent(t *testing.T) {
	targetLoop, err := upumpunix.New()
	require.NoError(t, err)
	sourceLoop, err := upumpunix.New()
	require.NoError(t, err)

	mgr, err := NewManager(8, 4)
	require.NoError(t, err)
	require.NoError(t, mgr.Attach(targetLoop))
	require.NoError(t, mgr.AttachSource(sourceLoop))

	inner := &echoMgr{controlled: make(chan struct{})}
	innerPipe, err := inner.Alloc(nil, inner.Signature())
	require.NoError(t, err)

	sourceEnd := make(chan struct{}, 1)
	probe := upipe.ProbeFunc(func(p *upipe.Pipe, e upipe.Event, args ...any) (bool, error) {
		if e == upipe.EventSourceEnd {
			sourceEnd <- struct{}{}
		}
		return true, nil
	})

	proxy, err := Alloc(mgr, probe, innerPipe, upipe.EventSourceEnd)
	require.NoError(t, err)

	targetCtx, targetCancel := context.WithCancel(context.Background())
	targetDone := make(chan error, 1)
	go func() { targetDone <- targetLoop.Run(targetCtx) }()

	sourceCtx, sourceCancel := context.WithCancel(context.Background())
	sourceDone := make(chan error, 1)
	go func() { sourceDone <- sourceLoop.Run(sourceCtx) }()

	controlDone := make(chan error, 1)
	go func() { controlDone <- proxy.Mgr().Control(proxy, upipe.SetURI, "toto") }()

	select {
	case <-inner.controlled:
	case <-time.After(2 * time.Second):
		t.Fatal("SET-URI never reached the inner pipe on the target thread")
	}
	require.Equal(t, "toto", inner.uri)

	require.NoError(t, <-controlDone)

	select {
	case <-sourceEnd:
	case <-time.After(2 * time.Second):
		t.Fatal("EventSourceEnd never reached the source thread's probe")
	}

	targetLoop.StopAll()
	sourceLoop.StopAll()
	targetCancel()
	sourceCancel()
	<-targetDone
	<-sourceDone
}

func TestProxyInputIsIllegalAndThrowsFatal(t *testing.T) {
	mgr, err := NewManager(4, 2)
	require.NoError(t, err)

	inner := &echoMgr{}
	innerPipe, err := inner.Alloc(nil, inner.Signature())
	require.NoError(t, err)

	var fatal bool
	probe := upipe.ProbeFunc(func(p *upipe.Pipe, e upipe.Event, args ...any) (bool, error) {
		if e == upipe.EventFatal {
			fatal = true
		}
		return true, nil
	})
	proxy, err := Alloc(mgr, probe, innerPipe)
	require.NoError(t, err)
	mgr.PumpInner()

	proxy.Mgr().Input(proxy, uref.New(), nil)
	require.True(t, fatal)
}

func TestReleaseEnqueuesFinalReleaseMessage(t *testing.T) {
	mgr, err := NewManager(4, 2)
	require.NoError(t, err)

	inner := &echoMgr{}
	innerPipe, err := inner.Alloc(nil, inner.Signature())
	require.NoError(t, err)

	proxy, err := Alloc(mgr, nil, innerPipe)
	require.NoError(t, err)
	mgr.PumpInner() // process the alloc message

	var dead bool
	innerPipe.SetProbe(upipe.ProbeFunc(func(p *upipe.Pipe, e upipe.Event, args ...any) (bool, error) {
		if e == upipe.EventDead {
			dead = true
		}
		return true, nil
	}))

	Release(proxy)
	mgr.PumpInner() // process the release message
	require.True(t, dead)
}
