package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/wppdesk/internal/bus"
)

// State is the lifecycle state of the WhatsApp connection.
type State string

const (
	Booting      State = "BOOTING"
	AwaitingQR   State = "AWAITING_QR"
	Connecting   State = "CONNECTING"
	Open         State = "OPEN"
	Reconnecting State = "RECONNECTING"
	Restarting   State = "RESTARTING"
	LoggedOut    State = "LOGGED_OUT"
	Error        State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:      {AwaitingQR, Connecting, Error},
	AwaitingQR:   {Connecting, Restarting, Error},
	Connecting:   {Open, AwaitingQR, Reconnecting, Restarting, LoggedOut, Error},
	Open:         {Reconnecting, Restarting, LoggedOut, Error},
	Reconnecting: {Open, Connecting, Restarting, LoggedOut, Error},
	Restarting:   {Connecting, AwaitingQR, Error},
	LoggedOut:    {AwaitingQR, Booting},
	Error:        {Booting, Connecting},
}

// Machine tracks the connection state and publishes every change on the bus.
// It is the single source of truth for "is the client usable", replacing nullable
// socket handles.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		since:   time.Now(),
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since reports when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// IsOpen reports whether the connection can carry traffic.
func (m *Machine) IsOpen() bool {
	return m.Current() == Open
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
// Transitioning to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	if m.bus != nil {
		m.bus.Publish(bus.NewEvent(bus.KindStatusChanged, StatusChange{
			From: from,
			To:   to,
		}))
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
