package merge

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/matheus3301/wppdesk/internal/model"
)

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Key.ID
	}
	return out
}

func audioMsg(chat, id string, ts int64) model.Message {
	return model.Message{
		Key:              model.MessageKey{RemoteJID: chat, ID: id},
		Message:          &model.MessageContent{AudioMessage: &model.AudioMessage{URL: "https://mmg/" + id, Seconds: 4}},
		MessageTimestamp: model.Timestamp(ts),
	}
}

func TestEmptyIncomingIsIdentity(t *testing.T) {
	chats := []model.Chat{{ID: "A@x", Name: "A"}, {ID: "B@x", Name: "B"}}
	if got := Chats(chats, nil); !reflect.DeepEqual(got, chats) {
		t.Errorf("Chats(S, nil) = %v, want %v", got, chats)
	}
	contacts := []model.Contact{{ID: "A@x", Notify: "a"}}
	if got := Contacts(contacts, []model.Contact{}); !reflect.DeepEqual(got, contacts) {
		t.Errorf("Contacts(S, []) = %v, want %v", got, contacts)
	}
	msgs := Messages(nil, []model.Message{
		model.TextMessage("A@x", "m1", false, 1000, "one"),
		model.TextMessage("A@x", "m2", false, 2000, "two"),
	})
	if got := Messages(msgs, nil); !reflect.DeepEqual(got, msgs) {
		t.Errorf("Messages(S, nil) = %v, want %v", got, msgs)
	}
	byChat := map[string][]model.Message{"A@x": msgs}
	if got := MessagesByChat(byChat, nil); !reflect.DeepEqual(got, byChat) {
		t.Errorf("MessagesByChat(S, nil) = %v, want %v", got, byChat)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	state := []model.Message{model.TextMessage("A@x", "m1", false, 1000, "one")}
	batch := []model.Message{
		model.TextMessage("A@x", "m2", false, 2000, "two"),
		audioMsg("A@x", "m3", 3000),
	}
	once := Messages(state, batch)
	twice := Messages(once, batch)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge not idempotent:\n once  %v\n twice %v", ids(once), ids(twice))
	}

	chats := Chats(nil, []model.Chat{{ID: "A@x", Name: "A"}})
	if again := Chats(chats, []model.Chat{{ID: "A@x", Name: "A"}}); !reflect.DeepEqual(chats, again) {
		t.Errorf("Chats not idempotent: %v vs %v", chats, again)
	}
}

func TestDuplicateMessageIDCollapses(t *testing.T) {
	const chat = "5551@s.whatsapp.net"
	state := map[string][]model.Message{
		chat: {model.TextMessage(chat, "msg-1", false, 1000, "hello")},
	}
	out := MessagesByChat(state, map[string][]model.Message{
		chat: {model.TextMessage(chat, "msg-1", false, 1000, "hello")},
	})
	if n := len(out[chat]); n != 1 {
		t.Fatalf("got %d entries for msg-1, want 1", n)
	}

	// Duplicates inside one batch collapse too.
	got := Messages(nil, []model.Message{
		model.TextMessage(chat, "msg-1", false, 1000, "hello"),
		model.TextMessage(chat, "msg-1", false, 1000, "hello edited"),
	})
	if len(got) != 1 || got[0].Text() != "hello edited" {
		t.Errorf("in-batch duplicate = %v, want one entry with the later text", got)
	}
}

func TestSortDescendingAndNormalized(t *testing.T) {
	var wrapped, plain model.Message
	if err := json.Unmarshal([]byte(`{"key":{"remoteJid":"A@x","id":"w"},"messageTimestamp":{"low":1700000000}}`), &wrapped); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"key":{"remoteJid":"A@x","id":"p"},"messageTimestamp":1700000001}`), &plain); err != nil {
		t.Fatal(err)
	}
	older := model.TextMessage("A@x", "o", false, 1699999999, "old")

	got := Messages(nil, []model.Message{older, wrapped, plain})
	if want := []string{"p", "w", "o"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("order = %v, want %v", ids(got), want)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].MessageTimestamp < got[i].MessageTimestamp {
			t.Fatalf("not descending at %d: %v", i, ids(got))
		}
	}
}

func TestWrappedAndPlainTimestampsTie(t *testing.T) {
	var a, b model.Message
	_ = json.Unmarshal([]byte(`{"key":{"id":"a"},"messageTimestamp":{"low":1700000000}}`), &a)
	_ = json.Unmarshal([]byte(`{"key":{"id":"b"},"messageTimestamp":1700000000}`), &b)
	if a.MessageTimestamp != b.MessageTimestamp {
		t.Fatalf("normalized timestamps differ: %d vs %d", a.MessageTimestamp, b.MessageTimestamp)
	}
	got := Messages(nil, []model.Message{a, b})
	if want := []string{"a", "b"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("equal timestamps must keep input order: %v", ids(got))
	}
}

func TestEnrichmentIsMonotonic(t *testing.T) {
	const chat = "A@x"
	enriched := audioMsg(chat, "m3", 3000)
	enriched.Message.AudioMessage.LocalPath = "app://audio/m3.ogg"
	enriched.Message.AudioMessage.TranscribedText = "hola"

	raw := audioMsg(chat, "m3", 3000)
	got := Messages([]model.Message{enriched}, []model.Message{raw})
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	audio := got[0].Audio()
	if audio.LocalPath != "app://audio/m3.ogg" {
		t.Errorf("localPath = %q, want app://audio/m3.ogg", audio.LocalPath)
	}
	if audio.TranscribedText != "hola" {
		t.Errorf("transcribedText = %q, want hola", audio.TranscribedText)
	}

	// A content-less status update keeps the content and the enrichment.
	ack := model.Message{Key: model.MessageKey{RemoteJID: chat, ID: "m3"}, Status: model.StatusRead}
	got = Messages(got, []model.Message{ack})
	if got[0].Audio() == nil || got[0].Audio().LocalPath == "" || got[0].Status != model.StatusRead {
		t.Errorf("status update lost data: %+v", got[0])
	}

	// Content replaced by text still keeps the learned audio fields.
	edit := model.TextMessage(chat, "m3", false, 3000, "caption")
	got = Messages(got, []model.Message{edit})
	if got[0].Audio() == nil || got[0].Audio().TranscribedText != "hola" {
		t.Errorf("text replacement dropped enrichment: %+v", got[0].Message)
	}
}

func TestEnrichmentFromIncomingWins(t *testing.T) {
	stored := audioMsg("A@x", "m3", 3000)
	incoming := audioMsg("A@x", "m3", 3000)
	incoming.Message.AudioMessage.LocalPath = "app://audio/m3.ogg"

	got := Messages([]model.Message{stored}, []model.Message{incoming})
	if got[0].Audio().LocalPath != "app://audio/m3.ogg" {
		t.Errorf("localPath = %q, want incoming enrichment", got[0].Audio().LocalPath)
	}
}

func TestInputsAreNotMutated(t *testing.T) {
	stored := audioMsg("A@x", "m3", 3000)
	stored.Message.AudioMessage.LocalPath = "app://audio/m3.ogg"
	existing := []model.Message{stored}
	raw := audioMsg("A@x", "m3", 3000)
	incoming := []model.Message{raw}

	_ = Messages(existing, incoming)

	if incoming[0].Audio().LocalPath != "" {
		t.Error("merge wrote enrichment into the incoming message")
	}
	if existing[0].Audio().LocalPath != "app://audio/m3.ogg" {
		t.Error("merge modified the existing message")
	}
}

func TestMissingIDsAreSkipped(t *testing.T) {
	chats := Chats([]model.Chat{{ID: "A@x"}}, []model.Chat{{Name: "nobody"}})
	if len(chats) != 1 {
		t.Errorf("chat without id was stored: %v", chats)
	}
	msgs := Messages(nil, []model.Message{{Message: &model.MessageContent{Conversation: "?"}}})
	if len(msgs) != 0 {
		t.Errorf("message without id was stored: %v", msgs)
	}
	byChat := MessagesByChat(nil, map[string][]model.Message{"": {model.TextMessage("", "m", false, 1, "x")}})
	if len(byChat) != 0 {
		t.Errorf("message without chat was stored: %v", byChat)
	}
}

func TestChatMergeKeepsLocalFlags(t *testing.T) {
	existing := []model.Chat{{ID: "A@x", Name: "Ana", Tag: "Friends", IsSilenced: model.Flag(true)}}
	incoming := []model.Chat{{ID: "A@x", UnreadCount: model.Count(3)}, {ID: "B@x", Name: "Bob"}}

	got := Chats(existing, incoming)
	want := []model.Chat{
		{ID: "A@x", Name: "Ana", UnreadCount: model.Count(3), Tag: "Friends", IsSilenced: model.Flag(true)},
		{ID: "B@x", Name: "Bob"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Chats() = %+v, want %+v", got, want)
	}
}

func TestChatMergeUnreadCount(t *testing.T) {
	stored := []model.Chat{{ID: "A@x", Name: "Ana", UnreadCount: model.Count(3)}}

	tests := []struct {
		name     string
		incoming model.Chat
		want     int
	}{
		{"read chat resets count", model.Chat{ID: "A@x", UnreadCount: model.Count(0)}, 0},
		{"new count wins", model.Chat{ID: "A@x", UnreadCount: model.Count(5)}, 5},
		{"stub without count keeps it", model.Chat{ID: "A@x", ConversationTimestamp: 10}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chats(stored, []model.Chat{tt.incoming})
			if got[0].UnreadCount == nil || *got[0].UnreadCount != tt.want {
				t.Errorf("unreadCount = %v, want %d", got[0].UnreadCount, tt.want)
			}
		})
	}
	if *stored[0].UnreadCount != 3 {
		t.Errorf("stored chat changed: %d", *stored[0].UnreadCount)
	}
}

func TestMessageMergeKeepsStatusOnZero(t *testing.T) {
	stored := []model.Message{{Key: model.MessageKey{RemoteJID: "A@x", ID: "m1"}, Status: model.StatusRead, MessageTimestamp: 1}}
	replay := []model.Message{{Key: model.MessageKey{RemoteJID: "A@x", ID: "m1"}, MessageTimestamp: 1}}

	if got := Messages(stored, replay); got[0].Status != model.StatusRead {
		t.Errorf("status = %d, want read kept", got[0].Status)
	}
	ack := []model.Message{{Key: model.MessageKey{RemoteJID: "A@x", ID: "m1"}, Status: model.StatusPlayed, MessageTimestamp: 1}}
	if got := Messages(stored, ack); got[0].Status != model.StatusPlayed {
		t.Errorf("status = %d, want played", got[0].Status)
	}
}

func TestContactMergeFieldwise(t *testing.T) {
	got := Contacts(
		[]model.Contact{{ID: "A@x", Name: "Ana"}},
		[]model.Contact{{ID: "A@x", Notify: "ana"}},
	)
	if len(got) != 1 || got[0].Name != "Ana" || got[0].Notify != "ana" {
		t.Errorf("Contacts() = %+v", got)
	}
}

func TestTouched(t *testing.T) {
	merged := Messages(nil, []model.Message{
		model.TextMessage("A@x", "m1", false, 1000, "one"),
		model.TextMessage("A@x", "m2", false, 2000, "two"),
		model.TextMessage("A@x", "m3", false, 3000, "three"),
	})
	got := Touched(merged, []model.Message{model.TextMessage("A@x", "m1", false, 0, ""), model.TextMessage("A@x", "m3", false, 0, "")})
	if want := []string{"m3", "m1"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("Touched() = %v, want %v", ids(got), want)
	}
}
