package wa

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/model"
	"github.com/matheus3301/wppdesk/internal/status"
)

// QRCode is dispatched by the adapter for every pairing code the server issues.
type QRCode struct {
	Code    string
	Timeout time.Duration
}

// PairingFailed is dispatched when QR pairing ends without success.
type PairingFailed struct {
	Reason string
}

// ConnectionState mirrors the connection lifecycle on the bus.
type ConnectionState string

const (
	ConnectionOpen  ConnectionState = "open"
	ConnectionClose ConnectionState = "close"
)

// ConnectionUpdate is the payload of bus.KindConnection.
type ConnectionUpdate struct {
	State  ConnectionState
	Reason string
}

// HistorySnapshot is the payload of bus.KindHistory.
type HistorySnapshot struct {
	SyncType string
	Chats    []model.Chat
	Contacts []model.Contact
	Messages []model.Message
}

// IsEmpty reports whether the snapshot carries nothing.
func (s HistorySnapshot) IsEmpty() bool {
	return len(s.Chats) == 0 && len(s.Contacts) == 0 && len(s.Messages) == 0
}

// UpsertType distinguishes live deliveries from appends of older messages.
type UpsertType string

const (
	UpsertNotify UpsertType = "notify"
	UpsertAppend UpsertType = "append"
)

// Upsert is the payload of bus.KindUpsert.
type Upsert struct {
	Type     UpsertType
	Messages []model.Message
}

// Credentials is the payload of bus.KindCreds, published after a successful pairing.
type Credentials struct {
	JID          string
	BusinessName string
	Platform     string
}

// SyncTypeDeviceContacts marks the snapshot built from the device address book.
const SyncTypeDeviceContacts = "DEVICE_CONTACTS"

// Controller is the part of the adapter the handler drives on lifecycle events.
type Controller interface {
	Connect(ctx context.Context) error
	Restart(ctx context.Context) error
	ResetAuth(ctx context.Context) error
	Contacts(ctx context.Context) []model.Contact
	ResolveLID(ctx context.Context, jid types.JID) types.JID
}

// EventHandler translates protocol events into bus events and drives the connection
// state machine. It never touches the store; the sync engine subscribes to the bus.
type EventHandler struct {
	bus     *bus.Bus
	machine *status.Machine
	ctrl    Controller
	logger  *zap.Logger

	qrOut io.Writer

	// async runs lifecycle actions off whatsmeow's event goroutine.
	async func(func())
}

// NewEventHandler creates a new event handler. ctrl may be nil in tests; lifecycle
// actions are then skipped.
func NewEventHandler(b *bus.Bus, machine *status.Machine, ctrl Controller, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		bus:     b,
		machine: machine,
		ctrl:    ctrl,
		logger:  logger,
		async:   func(f func()) { go f() },
	}
}

// PrintQRTo makes the handler also draw pairing codes on w.
func (h *EventHandler) PrintQRTo(w io.Writer) {
	h.qrOut = w
}

// Handle is registered with the adapter for every protocol event.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *QRCode:
		h.handleQR(evt)
	case *PairingFailed:
		h.logger.Warn("QR pairing failed", zap.String("reason", evt.Reason))
		h.transition(status.Error)
		h.notify("pairing failed: " + evt.Reason)
	case *events.PairSuccess:
		h.logger.Info("paired with phone", zap.String("jid", evt.ID.String()), zap.String("platform", evt.Platform))
		h.advance(status.Connecting)
		h.bus.Publish(bus.NewEvent(bus.KindCreds, Credentials{
			JID:          evt.ID.String(),
			BusinessName: evt.BusinessName,
			Platform:     evt.Platform,
		}))
	case *events.Connected:
		h.handleConnected()
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		h.transition(status.Reconnecting)
		h.bus.Publish(bus.NewEvent(bus.KindConnection, ConnectionUpdate{State: ConnectionClose, Reason: "disconnected"}))
		h.notify("connection lost, reconnecting")
	case *events.ManualLoginReconnect:
		h.handleRestartRequired()
	case *events.StreamError:
		h.logger.Warn("stream error", zap.String("code", evt.Code))
		h.notify("stream error " + evt.Code)
	case *events.StreamReplaced:
		h.logger.Warn("stream replaced by another client")
		h.transition(status.Error)
		h.notify("this session was opened somewhere else")
	case *events.ConnectFailure:
		if evt.Reason.IsLoggedOut() {
			h.handleLoggedOut(evt.Reason.String())
			return
		}
		h.logger.Warn("connect failure", zap.String("reason", evt.Reason.String()), zap.String("message", evt.Message))
		h.notify(fmt.Sprintf("connect failure: %s", evt.Reason))
	case *events.LoggedOut:
		h.handleLoggedOut(evt.Reason.String())
	case *events.TemporaryBan:
		h.logger.Warn("temporary ban", zap.String("ban", evt.String()))
		h.notify(evt.String())
	case *events.ClientOutdated:
		h.logger.Error("client version outdated")
		h.notify("client outdated, please update")
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.Message:
		h.handleMessage(evt)
	case *events.PushName:
		if evt.NewPushName == "" {
			return
		}
		h.bus.Publish(bus.NewEvent(bus.KindHistory, HistorySnapshot{
			SyncType: "PUSH_NAME",
			Contacts: []model.Contact{{ID: h.normalize(evt.JID).String(), Notify: evt.NewPushName}},
		}))
	}
}

func (h *EventHandler) handleQR(evt *QRCode) {
	h.transition(status.AwaitingQR)
	dataURL, err := QRDataURL(evt.Code)
	if err != nil {
		h.logger.Error("QR generation failed", zap.Error(err))
		h.notify("could not render QR code")
		return
	}
	if h.qrOut != nil {
		PrintQR(h.qrOut, evt.Code)
	}
	h.bus.Publish(bus.NewEvent(bus.KindQR, model.PairingCode{Code: evt.Code, DataURL: dataURL}))
}

func (h *EventHandler) handleConnected() {
	h.logger.Info("WhatsApp connected")
	h.advance(status.Open)
	h.bus.Publish(bus.NewEvent(bus.KindConnection, ConnectionUpdate{State: ConnectionOpen}))

	if h.ctrl == nil {
		return
	}
	if contacts := h.ctrl.Contacts(context.Background()); len(contacts) > 0 {
		h.bus.Publish(bus.NewEvent(bus.KindHistory, HistorySnapshot{
			SyncType: SyncTypeDeviceContacts,
			Contacts: contacts,
		}))
	}
}

// handleRestartRequired rebuilds the client once, immediately. The server asks for it
// (stream error 515) right after a successful pairing; the adapter turns off whatsmeow's
// own reconnect so it surfaces here as ManualLoginReconnect.
func (h *EventHandler) handleRestartRequired() {
	h.logger.Info("server requested restart")
	h.transition(status.Restarting)
	h.bus.Publish(bus.NewEvent(bus.KindConnection, ConnectionUpdate{State: ConnectionClose, Reason: "restart required"}))
	if h.ctrl == nil {
		return
	}
	h.async(func() {
		if err := h.ctrl.Restart(context.Background()); err != nil {
			h.logger.Error("restart failed", zap.Error(err))
			h.transition(status.Error)
			h.notify("restart failed: " + err.Error())
		}
	})
}

// handleLoggedOut wipes the credentials and starts a fresh pairing.
func (h *EventHandler) handleLoggedOut(reason string) {
	h.logger.Warn("WhatsApp logged out", zap.String("reason", reason))
	h.transition(status.LoggedOut)
	h.bus.Publish(bus.NewEvent(bus.KindConnection, ConnectionUpdate{State: ConnectionClose, Reason: "logged out"}))
	h.bus.Publish(bus.NewEvent(bus.KindLoggedOut, model.Notice{Message: reason}))
	if h.ctrl == nil {
		return
	}
	h.async(func() {
		ctx := context.Background()
		if err := h.ctrl.ResetAuth(ctx); err != nil {
			h.logger.Error("reset auth failed", zap.Error(err))
			h.notify("could not remove credentials: " + err.Error())
			return
		}
		if err := h.ctrl.Connect(ctx); err != nil {
			h.logger.Error("reconnect for pairing failed", zap.Error(err))
			h.notify("could not start pairing: " + err.Error())
		}
	})
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	msg := ParseLiveMessage(evt, h.normalize)
	h.bus.Publish(bus.NewEvent(bus.KindUpsert, Upsert{
		Type:     UpsertNotify,
		Messages: []model.Message{msg},
	}))
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	if evt.Data == nil {
		return
	}
	snap := ParseHistorySync(evt.Data, h.normalize)
	h.logger.Info("history sync received",
		zap.String("type", snap.SyncType),
		zap.Int("chats", len(snap.Chats)),
		zap.Int("messages", len(snap.Messages)),
		zap.Int("contacts", len(snap.Contacts)),
	)
	if snap.IsEmpty() {
		return
	}
	h.bus.Publish(bus.NewEvent(bus.KindHistory, snap))
}

// normalize strips the device part and resolves LIDs, so one person maps to one chat.
func (h *EventHandler) normalize(jid types.JID) types.JID {
	jid = jid.ToNonAD()
	if h.ctrl != nil {
		jid = h.ctrl.ResolveLID(context.Background(), jid)
	}
	return jid
}

// advance moves to target, passing through CONNECTING when the direct transition is not
// allowed (for example AWAITING_QR straight to OPEN).
func (h *EventHandler) advance(target status.State) {
	if err := h.machine.Transition(target); err == nil {
		return
	}
	if err := h.machine.Transition(status.Connecting); err != nil {
		h.logger.Debug("state transition skipped", zap.String("to", string(status.Connecting)), zap.Error(err))
	}
	h.transition(target)
}

func (h *EventHandler) transition(to status.State) {
	if err := h.machine.Transition(to); err != nil {
		h.logger.Debug("state transition skipped", zap.String("to", string(to)), zap.Error(err))
	}
}

func (h *EventHandler) notify(msg string) {
	h.bus.Publish(bus.NewEvent(bus.KindError, model.Notice{Message: msg}))
}
