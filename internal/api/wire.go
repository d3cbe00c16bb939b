package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/index"
	"github.com/matheus3301/wppdesk/internal/model"
	intsync "github.com/matheus3301/wppdesk/internal/sync"
)

type StatusRequest struct{}

type StatusResponse struct {
	Session     string        `json:"session"`
	State       string        `json:"state"`
	StateSince  time.Time     `json:"stateSince"`
	PhoneNumber string        `json:"phoneNumber,omitempty"`
	LoggedIn    bool          `json:"loggedIn"`
	Chats       int           `json:"chats"`
	Contacts    int           `json:"contacts"`
	Messages    int           `json:"messages"`
	Indexed     int           `json:"indexed"`
	Sync        intsync.Stats `json:"sync"`
	UptimeMs    int64         `json:"uptimeMs"`
}

type ConnectRequest struct{}

type LogoutRequest struct{}

type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type SnapshotRequest struct {
	// ChatID limits messages to one chat. Chats and contacts are always complete.
	ChatID string `json:"chatId,omitempty"`
}

type WatchRequest struct {
	// Prefix selects event kinds; empty means every renderer event.
	Prefix string `json:"prefix,omitempty"`
}

// Envelope wraps one bus event for streaming clients.
type Envelope struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope encodes evt for the wire.
func NewEnvelope(evt bus.Event) (*Envelope, error) {
	env := &Envelope{ID: uuid.NewString(), Kind: evt.Kind, OccurredAt: evt.Timestamp}
	if evt.Payload != nil {
		raw, err := json.Marshal(evt.Payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return env, nil
}

// Decode unmarshals the payload into v.
func (e *Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

type SetChatFlagsRequest struct {
	ChatID string          `json:"chatId"`
	Flags  model.ChatFlags `json:"flags"`
}

type ChatResponse struct {
	Chat model.Chat `json:"chat"`
}

type SendTextRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type TranscribeRequest struct {
	ChatID string `json:"chatId"`
	MsgID  string `json:"msgId"`
}

type MessageResponse struct {
	Message model.Message `json:"message"`
}

type SearchRequest struct {
	Query  string `json:"query"`
	ChatID string `json:"chatId,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type SearchResponse struct {
	Hits []index.Hit `json:"hits"`
}
