// Package upipe implements the pipe protocol: a pipe's manager
// vtable, the refcounted pipe handle it builds, the probe chain that
// carries events upward, and the request/provide negotiation used for
// resources not known at alloc time.
//
// Mgr, Probe and Request are small interfaces a concrete module
// implements independently; Pipe holds the lifecycle state every
// module shares (refcount, output wiring, parent link) so modules
// embed it rather than reimplement it.
package upipe

import "github.com/upipe-go/upipe/uref"

// Mgr is a pipe type's vtable: the one thing every concrete module
// (modules/pidfilter, xfer's proxy/inner pipes, ...) implements. Alloc
// constructs a new pipe instance; Input and Control are dispatched by
// the returned Pipe's Input/Control methods, not called directly by
// callers.
type Mgr interface {
	// Signature identifies this manager's pipe type, used to validate
	// Alloc's signature argument and to tag/reject module-local
	// commands and events.
	Signature() string

	// Alloc validates signature, builds private state, wires probe as
	// the new pipe's upward channel, and throws EventReady before
	// returning. args are manager-specific (e.g. a backing uqueue for
	// xfer's proxy manager).
	Alloc(probe Probe, signature string, args ...any) (*Pipe, error)

	// Input consumes one record arriving via pumpHint's watcher.
	Input(p *Pipe, u *uref.Uref, pumpHint any)

	// Control implements the bidirectional configuration channel.
	Control(p *Pipe, cmd Command, args ...any) error
}

// MockMgr is a test double recording every call it receives:
// implements the full interface, tracks call counts, lets a test
// script canned return values.
type MockMgr struct {
	Sig string

	AllocFunc   func(probe Probe, signature string, args ...any) (*Pipe, error)
	InputFunc   func(p *Pipe, u *uref.Uref, pumpHint any)
	ControlFunc func(p *Pipe, cmd Command, args ...any) error

	AllocCalls   int
	InputCalls   int
	ControlCalls int
}

func (m *MockMgr) Signature() string { return m.Sig }

func (m *MockMgr) Alloc(probe Probe, signature string, args ...any) (*Pipe, error) {
	m.AllocCalls++
	if m.AllocFunc != nil {
		return m.AllocFunc(probe, signature, args...)
	}
	return New(m, probe), nil
}

func (m *MockMgr) Input(p *Pipe, u *uref.Uref, pumpHint any) {
	m.InputCalls++
	if m.InputFunc != nil {
		m.InputFunc(p, u, pumpHint)
	}
}

func (m *MockMgr) Control(p *Pipe, cmd Command, args ...any) error {
	m.ControlCalls++
	if m.ControlFunc != nil {
		return m.ControlFunc(p, cmd, args...)
	}
	return nil
}
