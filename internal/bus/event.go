package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Kinds produced by the protocol adapter and consumed by the sync engine.
const (
	KindConnection = "wa.connection"
	KindHistory    = "wa.history"
	KindUpsert     = "wa.upsert"
	KindCreds      = "wa.creds"
)

// Kinds delivered to renderers across the UI boundary.
const (
	KindQR        = "ui.qr"
	KindReady     = "ui.ready"
	KindSync      = "ui.sync"
	KindMessages  = "ui.messages"
	KindChatFlags = "ui.chat_flags"
	KindError     = "ui.error"
	KindLoggedOut = "ui.logged_out"
)

// KindStatusChanged is published by the connection state machine.
const KindStatusChanged = "session.status_changed"

// NamespaceUI prefixes every event a renderer may watch.
const NamespaceUI = "ui."

// NewEvent returns an event stamped with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
