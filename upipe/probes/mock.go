package probes

import "github.com/upipe-go/upipe/upipe"

// MockProbe is a call-recording test double, in the same spirit as
// upipe.MockMgr: every Throw is recorded and an optional ThrowFunc
// lets a test script canned return values.
type MockProbe struct {
	ThrowFunc func(p *upipe.Pipe, event upipe.Event, args ...any) (bool, error)

	Calls  int
	Events []upipe.Event
}

func (m *MockProbe) Throw(p *upipe.Pipe, event upipe.Event, args ...any) (bool, error) {
	m.Calls++
	m.Events = append(m.Events, event)
	if m.ThrowFunc != nil {
		return m.ThrowFunc(p, event, args...)
	}
	return false, nil
}
