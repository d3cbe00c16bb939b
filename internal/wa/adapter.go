package wa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/matheus3301/wppdesk/internal/model"
	"github.com/matheus3301/wppdesk/internal/session"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotConnected is returned by operations that need a live connection.
var ErrNotConnected = errors.New("whatsapp client not connected")

// SentMessage describes a message accepted by the server.
type SentMessage struct {
	ID        string
	Chat      string
	Timestamp time.Time
}

// Adapter owns the whatsmeow client for one session. The client is replaced as a whole
// on Restart and ResetAuth; handlers registered with AddEventHandler survive that.
type Adapter struct {
	mu        sync.RWMutex
	client    *whatsmeow.Client
	container *sqlstore.Container
	qrCancel  context.CancelFunc

	handlersMu sync.RWMutex
	handlers   []func(any)

	layout session.Layout
	logger *zap.Logger
	waLog  waLog.Logger
}

// NewAdapter opens the device store under the session's auth directory and builds a
// client. It does not connect.
func NewAdapter(ctx context.Context, layout session.Layout, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("wppdesk", [3]uint32{0, 1, 0})

	a := &Adapter{
		layout: layout,
		logger: logger,
		waLog:  NewLogger(logger.Named("whatsmeow")),
	}
	if err := a.init(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Adapter) init(ctx context.Context) error {
	if err := os.MkdirAll(a.layout.AuthDir(), 0700); err != nil {
		return fmt.Errorf("create auth dir: %w", err)
	}
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", a.layout.SessionDB()),
		a.waLog.Sub("Database"),
	)
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(device, a.waLog.Sub("Client"))
	// Restart-required is handled by rebuilding the whole client, see Restart.
	client.DisableLoginAutoReconnect = true
	client.AddEventHandler(a.dispatch)

	a.mu.Lock()
	a.client = client
	a.container = container
	a.mu.Unlock()
	return nil
}

// AddEventHandler registers h for protocol events and for the adapter's own QRCode and
// PairingFailed events.
func (a *Adapter) AddEventHandler(h func(any)) {
	a.handlersMu.Lock()
	a.handlers = append(a.handlers, h)
	a.handlersMu.Unlock()
}

func (a *Adapter) dispatch(evt any) {
	a.handlersMu.RLock()
	handlers := a.handlers
	a.handlersMu.RUnlock()
	for _, h := range handlers {
		h(evt)
	}
}

func (a *Adapter) current() *whatsmeow.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

// IsLoggedIn reports whether the device store holds credentials.
func (a *Adapter) IsLoggedIn() bool {
	c := a.current()
	return c != nil && c.Store.ID != nil
}

// IsConnected reports whether the websocket is up.
func (a *Adapter) IsConnected() bool {
	c := a.current()
	return c != nil && c.IsConnected()
}

// PhoneNumber returns the paired phone number, or "".
func (a *Adapter) PhoneNumber() string {
	c := a.current()
	if c == nil || c.Store.ID == nil {
		return ""
	}
	return c.Store.ID.User
}

// Connect opens the connection. Without credentials it starts QR pairing; codes are
// delivered to handlers as *QRCode events.
func (a *Adapter) Connect(_ context.Context) error {
	c := a.current()
	if c == nil {
		return ErrNotConnected
	}
	if c.Store.ID != nil {
		a.logger.Info("connecting to WhatsApp")
		return c.Connect()
	}

	qrCtx, cancel := context.WithCancel(context.Background())
	qrChan, err := c.GetQRChannel(qrCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("get QR channel: %w", err)
	}
	a.mu.Lock()
	a.qrCancel = cancel
	a.mu.Unlock()

	a.logger.Info("connecting to WhatsApp for QR pairing")
	if err := c.Connect(); err != nil {
		cancel()
		return fmt.Errorf("connect: %w", err)
	}
	go a.pumpQR(qrChan)
	return nil
}

func (a *Adapter) pumpQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case "code":
			a.dispatch(&QRCode{Code: item.Code, Timeout: item.Timeout})
		case "success":
			return
		default:
			reason := item.Event
			if item.Error != nil {
				reason = item.Error.Error()
			}
			a.dispatch(&PairingFailed{Reason: reason})
			return
		}
	}
}

// Disconnect closes the websocket and stops any pending QR pairing.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	if a.qrCancel != nil {
		a.qrCancel()
		a.qrCancel = nil
	}
	c := a.client
	a.mu.Unlock()
	if c != nil {
		a.logger.Info("disconnecting from WhatsApp")
		c.Disconnect()
	}
}

// Close disconnects and releases the device store.
func (a *Adapter) Close() error {
	a.Disconnect()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.container == nil {
		return nil
	}
	err := a.container.Close()
	a.container = nil
	a.client = nil
	return err
}

// Restart tears the client down and builds a new one from the device store, then
// reconnects. Used when the server asks for a restart after pairing.
func (a *Adapter) Restart(ctx context.Context) error {
	a.logger.Info("restarting WhatsApp client")
	if err := a.Close(); err != nil {
		a.logger.Warn("close device store", zap.Error(err))
	}
	if err := a.init(ctx); err != nil {
		return err
	}
	return a.Connect(ctx)
}

// ResetAuth deletes the auth directory and starts over with an empty device, which
// forces a new QR pairing on the next Connect.
func (a *Adapter) ResetAuth(ctx context.Context) error {
	a.logger.Warn("removing WhatsApp credentials", zap.String("dir", a.layout.AuthDir()))
	if err := a.Close(); err != nil {
		a.logger.Warn("close device store", zap.Error(err))
	}
	if err := os.RemoveAll(a.layout.AuthDir()); err != nil {
		return fmt.Errorf("remove auth dir: %w", err)
	}
	return a.init(ctx)
}

// Logout unlinks the device on the server. Local state is not touched; the caller
// follows up with ResetAuth.
func (a *Adapter) Logout(ctx context.Context) error {
	c := a.current()
	if c == nil || !c.IsConnected() {
		return ErrNotConnected
	}
	return c.Logout(ctx)
}

// SendText sends a text message. to is a full JID or a bare phone number.
func (a *Adapter) SendText(ctx context.Context, to, text string) (SentMessage, error) {
	c := a.current()
	if c == nil || !c.IsConnected() {
		return SentMessage{}, ErrNotConnected
	}
	jid, err := ParseRecipient(to)
	if err != nil {
		return SentMessage{}, err
	}
	resp, err := c.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return SentMessage{}, fmt.Errorf("send message: %w", err)
	}
	return SentMessage{ID: resp.ID, Chat: jid.String(), Timestamp: resp.Timestamp}, nil
}

// DownloadAudio fetches and decrypts a voice note.
func (a *Adapter) DownloadAudio(ctx context.Context, audio *model.AudioMessage) ([]byte, error) {
	c := a.current()
	if c == nil || !c.IsConnected() {
		return nil, ErrNotConnected
	}
	return c.Download(ctx, toProtoAudio(audio))
}

// Contacts returns the address book the device store has learned.
func (a *Adapter) Contacts(ctx context.Context) []model.Contact {
	c := a.current()
	if c == nil || c.Store.Contacts == nil {
		return nil
	}
	all, err := c.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("failed to get contacts from device store", zap.Error(err))
		return nil
	}
	contacts := make([]model.Contact, 0, len(all))
	for jid, info := range all {
		contacts = append(contacts, model.Contact{
			ID:           jid.ToNonAD().String(),
			Name:         info.FullName,
			Notify:       info.PushName,
			VerifiedName: info.BusinessName,
		})
	}
	return contacts
}

// ResolveLID maps a hidden-user (LID) JID to its phone-number JID when the device store
// knows the mapping. Other JIDs are returned unchanged.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer {
		return jid
	}
	c := a.current()
	if c == nil || c.Store == nil || c.Store.LIDs == nil {
		return jid
	}
	pn, err := c.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}

// ParseRecipient accepts a JID or a phone number ("+55 85 9240-3672") and returns a
// user JID.
func ParseRecipient(to string) (types.JID, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return types.JID{}, errors.New("empty recipient")
	}
	if strings.Contains(to, "@") {
		jid, err := types.ParseJID(to)
		if err != nil {
			return types.JID{}, fmt.Errorf("parse JID %q: %w", to, err)
		}
		return jid, nil
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		if r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return 'x'
	}, to)
	if digits == "" || strings.ContainsRune(digits, 'x') {
		return types.JID{}, fmt.Errorf("invalid phone number %q", to)
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}

func toProtoAudio(a *model.AudioMessage) *waE2E.AudioMessage {
	msg := &waE2E.AudioMessage{
		MediaKey:      a.MediaKey,
		FileSHA256:    a.FileSHA256,
		FileEncSHA256: a.FileEncSHA256,
		PTT:           proto.Bool(a.PTT),
	}
	if a.URL != "" {
		msg.URL = proto.String(a.URL)
	}
	if a.DirectPath != "" {
		msg.DirectPath = proto.String(a.DirectPath)
	}
	if a.Mimetype != "" {
		msg.Mimetype = proto.String(a.Mimetype)
	}
	if a.FileLength != 0 {
		msg.FileLength = proto.Uint64(a.FileLength)
	}
	if a.Seconds != 0 {
		msg.Seconds = proto.Uint32(a.Seconds)
	}
	return msg
}
