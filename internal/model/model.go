// Package model defines the chats, contacts and messages the daemon persists and pushes
// to renderers. JSON field names follow the shapes the desktop client has always stored,
// so existing chats.json, contacts.json and messages.json files load unchanged.
package model

import "strings"

// Chat is a conversation. Name, UnreadCount and ConversationTimestamp come from the
// protocol; Tag and the two flags are local metadata and are never sent by the protocol.
// A nil UnreadCount means the source did not carry one, which is not the same as 0.
type Chat struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name,omitempty"`
	UnreadCount           *int      `json:"unreadCount,omitempty"`
	ConversationTimestamp Timestamp `json:"conversationTimestamp,omitempty"`
	Tag                   string    `json:"tag,omitempty"`
	IsSilenced            *bool     `json:"isSilenced,omitempty"`
	IsUnread              *bool     `json:"isUnread,omitempty"`
}

// HasName reports whether the chat carries a display name.
func (c Chat) HasName() bool {
	return strings.TrimSpace(c.Name) != ""
}

// Silenced reports the local silenced flag, false when unset.
func (c Chat) Silenced() bool { return c.IsSilenced != nil && *c.IsSilenced }

// Unread reports the local unread flag, false when unset.
func (c Chat) Unread() bool { return c.IsUnread != nil && *c.IsUnread }

// Unreads returns the protocol's unread message count, 0 when unknown.
func (c Chat) Unreads() int {
	if c.UnreadCount == nil {
		return 0
	}
	return *c.UnreadCount
}

// ChatFlags is a partial update of a chat's local metadata. Nil fields are left alone.
type ChatFlags struct {
	Tag      *string `json:"tag,omitempty"`
	Silenced *bool   `json:"isSilenced,omitempty"`
	Unread   *bool   `json:"isUnread,omitempty"`
}

// Apply returns c with the set flags written over it.
func (f ChatFlags) Apply(c Chat) Chat {
	if f.Tag != nil {
		c.Tag = *f.Tag
	}
	if f.Silenced != nil {
		c.IsSilenced = Flag(*f.Silenced)
	}
	if f.Unread != nil {
		c.IsUnread = Flag(*f.Unread)
	}
	return c
}

// IsZero reports whether the update changes nothing.
func (f ChatFlags) IsZero() bool {
	return f.Tag == nil && f.Silenced == nil && f.Unread == nil
}

// Flag returns a pointer to b, for the optional boolean fields.
func Flag(b bool) *bool { return &b }

// Count returns a pointer to n, for Chat.UnreadCount literals.
func Count(n int) *int { return &n }

// Contact is an address-book entry.
type Contact struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Notify       string `json:"notify,omitempty"`
	VerifiedName string `json:"verifiedName,omitempty"`
	ImgURL       string `json:"imgUrl,omitempty"`
}

// DisplayName picks the best human name the contact has.
func (c Contact) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Notify != "":
		return c.Notify
	case c.VerifiedName != "":
		return c.VerifiedName
	}
	return ""
}

// Status is the delivery status code of a message. StatusError is the zero value and is
// omitted from stored JSON, so a stored or incoming 0 reads as "no status": merges never
// let it replace a known status. Failed sends are reported to the caller, not stored.
type Status int

const (
	StatusError Status = iota
	StatusPending
	StatusServerAck
	StatusDeliveryAck
	StatusRead
	StatusPlayed
)

// MessageKey identifies a message. A message is unique by ID within its RemoteJID.
type MessageKey struct {
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	ID          string `json:"id"`
	Participant string `json:"participant,omitempty"`
}

// Message is one stored message.
type Message struct {
	Key              MessageKey      `json:"key"`
	Message          *MessageContent `json:"message,omitempty"`
	MessageTimestamp Timestamp       `json:"messageTimestamp,omitempty"`
	Status           Status          `json:"status,omitempty"`
	PushName         string          `json:"pushName,omitempty"`
}

// MessageContent carries the supported payload kinds. At most one is normally set.
type MessageContent struct {
	Conversation        string        `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedText `json:"extendedTextMessage,omitempty"`
	AudioMessage        *AudioMessage `json:"audioMessage,omitempty"`
}

// ExtendedText is a text message sent with formatting, a link preview or a quote.
type ExtendedText struct {
	Text string `json:"text"`
}

// AudioMessage is the protocol's media descriptor for a voice note, plus the two
// enrichment fields the daemon adds. Once set, LocalPath and TranscribedText are never
// cleared by a later merge.
type AudioMessage struct {
	URL           string `json:"url,omitempty"`
	DirectPath    string `json:"directPath,omitempty"`
	MediaKey      []byte `json:"mediaKey,omitempty"`
	FileSHA256    []byte `json:"fileSha256,omitempty"`
	FileEncSHA256 []byte `json:"fileEncSha256,omitempty"`
	FileLength    uint64 `json:"fileLength,omitempty"`
	Mimetype      string `json:"mimetype,omitempty"`
	Seconds       uint32 `json:"seconds,omitempty"`
	PTT           bool   `json:"ptt,omitempty"`

	LocalPath       string `json:"localPath,omitempty"`
	TranscribedText string `json:"transcribedText,omitempty"`
}

// ChatID returns the conversation the message belongs to.
func (m Message) ChatID() string { return m.Key.RemoteJID }

// Text returns the plain or extended text body, or "".
func (m Message) Text() string {
	if m.Message == nil {
		return ""
	}
	if m.Message.Conversation != "" {
		return m.Message.Conversation
	}
	if m.Message.ExtendedTextMessage != nil {
		return m.Message.ExtendedTextMessage.Text
	}
	return ""
}

// Audio returns the audio payload or nil.
func (m Message) Audio() *AudioMessage {
	if m.Message == nil {
		return nil
	}
	return m.Message.AudioMessage
}

// IsSupported reports whether the message carries text or audio.
func (m Message) IsSupported() bool {
	return m.Text() != "" || m.Audio() != nil
}

// Clone returns a deep copy so callers can modify content without aliasing.
func (m Message) Clone() Message {
	if m.Message == nil {
		return m
	}
	content := *m.Message
	if content.ExtendedTextMessage != nil {
		ext := *content.ExtendedTextMessage
		content.ExtendedTextMessage = &ext
	}
	if content.AudioMessage != nil {
		audio := *content.AudioMessage
		content.AudioMessage = &audio
	}
	m.Message = &content
	return m
}

// TextMessage builds a plain text message.
func TextMessage(chatID, id string, fromMe bool, ts int64, text string) Message {
	return Message{
		Key:              MessageKey{RemoteJID: chatID, ID: id, FromMe: fromMe},
		Message:          &MessageContent{Conversation: text},
		MessageTimestamp: Timestamp(ts),
	}
}

// Snapshot is the full state: every chat, contact, and message grouped by chat.
type Snapshot struct {
	Chats    []Chat               `json:"chats"`
	Contacts []Contact            `json:"contacts"`
	Messages map[string][]Message `json:"messages"`
}

// Delta is an incremental change pushed after a live upsert or a local edit.
type Delta struct {
	Chats    []Chat               `json:"chats,omitempty"`
	Messages map[string][]Message `json:"messages"`
}

// GroupByChat buckets messages by remote JID, preserving order within each bucket.
func GroupByChat(msgs []Message) map[string][]Message {
	out := make(map[string][]Message)
	for _, m := range msgs {
		id := m.ChatID()
		out[id] = append(out[id], m)
	}
	return out
}

// NoTranscription is stored as TranscribedText when the speech-to-text service returned
// nothing, so the audio is not sent again.
const NoTranscription = "no transcription"

// PairingCode is pushed to renderers while the session waits for a QR scan.
type PairingCode struct {
	Code    string `json:"code"`
	DataURL string `json:"dataUrl"`
}

// Notice is a human-readable notification for renderers.
type Notice struct {
	Message string `json:"message"`
}
