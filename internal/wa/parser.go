package wa

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/matheus3301/wppdesk/internal/model"
)

// JIDNormalizer maps a protocol JID to the id chats are stored under.
type JIDNormalizer func(types.JID) types.JID

// ParseLiveMessage converts a live message event.
func ParseLiveMessage(evt *events.Message, normalize JIDNormalizer) model.Message {
	info := evt.Info
	chat := normalize(info.Chat)

	m := model.Message{
		Key: model.MessageKey{
			RemoteJID: chat.String(),
			ID:        info.ID,
			FromMe:    info.IsFromMe,
		},
		Message:          convertContent(evt.Message),
		MessageTimestamp: model.Timestamp(info.Timestamp.Unix()),
		PushName:         info.PushName,
	}
	if info.IsGroup {
		m.Key.Participant = normalize(info.Sender).String()
	}
	if info.IsFromMe {
		m.Status = model.StatusServerAck
	}
	return m
}

// ParseWebMessage converts a message from a history sync conversation. ok is false when
// the entry has no key.
func ParseWebMessage(chatID string, wmi *waWeb.WebMessageInfo) (model.Message, bool) {
	key := wmi.GetKey()
	if key == nil || key.GetID() == "" {
		return model.Message{}, false
	}
	return model.Message{
		Key: model.MessageKey{
			RemoteJID:   chatID,
			ID:          key.GetID(),
			FromMe:      key.GetFromMe(),
			Participant: key.GetParticipant(),
		},
		Message:          convertContent(wmi.GetMessage()),
		MessageTimestamp: model.Timestamp(int64(wmi.GetMessageTimestamp())),
		Status:           model.Status(wmi.GetStatus()),
		PushName:         wmi.GetPushName(),
	}, true
}

// ParseHistorySync converts one history sync blob.
func ParseHistorySync(data *waHistorySync.HistorySync, normalize JIDNormalizer) HistorySnapshot {
	snap := HistorySnapshot{SyncType: data.GetSyncType().String()}

	for _, conv := range data.GetConversations() {
		chatID := normalizeString(conv.GetID(), normalize)
		if chatID == "" {
			continue
		}
		snap.Chats = append(snap.Chats, model.Chat{
			ID:                    chatID,
			Name:                  conv.GetName(),
			UnreadCount:           model.Count(int(conv.GetUnreadCount())),
			ConversationTimestamp: model.Timestamp(int64(conv.GetConversationTimestamp())),
		})
		for _, hm := range conv.GetMessages() {
			wmi := hm.GetMessage()
			if wmi == nil {
				continue
			}
			if m, ok := ParseWebMessage(chatID, wmi); ok {
				snap.Messages = append(snap.Messages, m)
			}
		}
	}

	for _, pn := range data.GetPushnames() {
		id := normalizeString(pn.GetID(), normalize)
		if id == "" || pn.GetPushname() == "" {
			continue
		}
		snap.Contacts = append(snap.Contacts, model.Contact{ID: id, Notify: pn.GetPushname()})
	}
	return snap
}

func normalizeString(raw string, normalize JIDNormalizer) string {
	if raw == "" {
		return ""
	}
	jid, err := types.ParseJID(raw)
	if err != nil {
		return raw
	}
	return normalize(jid).String()
}

// convertContent keeps the payload kinds the store understands. It returns nil when the
// message carries none of them.
func convertContent(msg *waE2E.Message) *model.MessageContent {
	msg = unwrap(msg)
	if msg == nil {
		return nil
	}
	switch {
	case msg.GetConversation() != "":
		return &model.MessageContent{Conversation: msg.GetConversation()}
	case msg.GetExtendedTextMessage() != nil:
		return &model.MessageContent{
			ExtendedTextMessage: &model.ExtendedText{Text: msg.GetExtendedTextMessage().GetText()},
		}
	case msg.GetAudioMessage() != nil:
		a := msg.GetAudioMessage()
		return &model.MessageContent{AudioMessage: &model.AudioMessage{
			URL:           a.GetURL(),
			DirectPath:    a.GetDirectPath(),
			MediaKey:      a.GetMediaKey(),
			FileSHA256:    a.GetFileSHA256(),
			FileEncSHA256: a.GetFileEncSHA256(),
			FileLength:    a.GetFileLength(),
			Mimetype:      a.GetMimetype(),
			Seconds:       a.GetSeconds(),
			PTT:           a.GetPTT(),
		}}
	}
	return nil
}

// unwrap strips the ephemeral and view-once envelopes history sync leaves in place.
func unwrap(msg *waE2E.Message) *waE2E.Message {
	for msg != nil {
		switch {
		case msg.GetEphemeralMessage() != nil:
			msg = msg.GetEphemeralMessage().GetMessage()
		case msg.GetViewOnceMessage() != nil:
			msg = msg.GetViewOnceMessage().GetMessage()
		case msg.GetViewOnceMessageV2() != nil:
			msg = msg.GetViewOnceMessageV2().GetMessage()
		default:
			return msg
		}
	}
	return nil
}
