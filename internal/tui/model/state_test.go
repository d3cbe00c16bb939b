package model

import (
	"slices"
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

func chatIDs(chats []model.Chat) []string {
	out := make([]string, len(chats))
	for i, c := range chats {
		out[i] = c.ID
	}
	return out
}

func delta(msgs ...model.Message) ApplyDelta {
	return ApplyDelta{Delta: model.Delta{Messages: model.GroupByChat(msgs)}}
}

func TestReduceEndToEnd(t *testing.T) {
	s := NewState()

	s = Reduce(s, SetSnapshot{Snapshot: model.Snapshot{
		Chats:    []model.Chat{{ID: "A@x", Name: "Alice"}},
		Messages: map[string][]model.Message{"A@x": {model.TextMessage("A@x", "m1", false, 1000, "hi")}},
	}})
	if len(s.Chats) != 1 || len(s.Messages["A@x"]) != 1 {
		t.Fatalf("after snapshot: %d chats, %d messages", len(s.Chats), len(s.Messages["A@x"]))
	}

	s = Reduce(s, delta(model.TextMessage("A@x", "m2", false, 2000, "yo")))
	if got := ids(s.Messages["A@x"]); !slices.Equal(got, []string{"m2", "m1"}) {
		t.Errorf("after upsert = %v, want [m2 m1]", got)
	}

	s = Reduce(s, delta(model.TextMessage("A@x", "m1", false, 1000, "hi")))
	if got := ids(s.Messages["A@x"]); !slices.Equal(got, []string{"m2", "m1"}) {
		t.Errorf("after replay = %v, want [m2 m1]", got)
	}
}

func TestReduceEmptyDeltaIsNoop(t *testing.T) {
	s := Reduce(NewState(), delta(model.TextMessage("A@x", "m1", false, 1000, "hi")))
	before := ids(s.Messages["A@x"])

	s = Reduce(s, ApplyDelta{Delta: model.Delta{}})
	if got := ids(s.Messages["A@x"]); !slices.Equal(got, before) {
		t.Errorf("messages = %v, want %v", got, before)
	}
	if len(s.Chats) != 0 {
		t.Errorf("chats = %v, want none", s.Chats)
	}
}

func TestReduceDoesNotModifyInput(t *testing.T) {
	s1 := Reduce(NewState(), SetSnapshot{Snapshot: model.Snapshot{
		Chats: []model.Chat{{ID: "A@x", Name: "Alice"}},
	}})
	s2 := Reduce(s1, SetChatFlags{Chat: model.Chat{ID: "A@x", Tag: "Office", IsSilenced: model.Flag(true)}})

	if s1.Chats[0].Tag != "" || s1.Chats[0].Silenced() {
		t.Errorf("original state changed: %+v", s1.Chats[0])
	}
	if s2.Chats[0].Tag != "Office" || !s2.Chats[0].Silenced() {
		t.Errorf("new state = %+v", s2.Chats[0])
	}
	if s2.Chats[0].Name != "Alice" {
		t.Errorf("name = %q, want Alice kept", s2.Chats[0].Name)
	}
}

func TestReduceChatFlagsClearTag(t *testing.T) {
	s := Reduce(NewState(), SetSnapshot{Snapshot: model.Snapshot{
		Chats: []model.Chat{{ID: "A@x", Tag: "Office"}},
	}})
	s = Reduce(s, SetChatFlags{Chat: model.Chat{ID: "A@x"}})
	if s.Chats[0].Tag != "" {
		t.Errorf("tag = %q, want cleared", s.Chats[0].Tag)
	}
}

func TestReduceAttachTranscript(t *testing.T) {
	audio := model.Message{
		Key:              model.MessageKey{RemoteJID: "A@x", ID: "m3"},
		Message:          &model.MessageContent{AudioMessage: &model.AudioMessage{LocalPath: "app://audio/m3.ogg"}},
		MessageTimestamp: 3000,
	}
	s := Reduce(NewState(), delta(audio, model.TextMessage("A@x", "m1", false, 1000, "hi")))
	s = Reduce(s, AttachTranscript{ChatID: "A@x", MsgID: "m3", Text: "hello there"})

	got := s.Messages["A@x"][0].Audio()
	if got == nil || got.TranscribedText != "hello there" || got.LocalPath != "app://audio/m3.ogg" {
		t.Fatalf("audio = %+v", got)
	}

	// A replay without enrichment keeps both fields.
	replay := audio.Clone()
	replay.Message.AudioMessage.LocalPath = ""
	s = Reduce(s, delta(replay))
	got = s.Messages["A@x"][0].Audio()
	if got.TranscribedText != "hello there" || got.LocalPath != "app://audio/m3.ogg" {
		t.Errorf("after replay audio = %+v", got)
	}

	// Text messages and unknown ids are ignored.
	before := s
	s = Reduce(s, AttachTranscript{ChatID: "A@x", MsgID: "m1", Text: "x"})
	s = Reduce(s, AttachTranscript{ChatID: "A@x", MsgID: "nope", Text: "x"})
	if s.Messages["A@x"][1].Text() != "hi" || len(s.Messages["A@x"]) != len(before.Messages["A@x"]) {
		t.Errorf("unexpected change: %+v", s.Messages["A@x"])
	}
}

func TestReduceSnapshotDropsStaleActiveChat(t *testing.T) {
	s := Reduce(NewState(), SetActiveChat{ChatID: "gone@x"})
	s = Reduce(s, SetSnapshot{Snapshot: model.Snapshot{Chats: []model.Chat{{ID: "A@x"}}}})
	if s.ActiveChatID != "" {
		t.Errorf("active chat = %q, want cleared", s.ActiveChatID)
	}

	s = Reduce(s, SetActiveChat{ChatID: "A@x"})
	s = Reduce(s, SetSnapshot{Snapshot: model.Snapshot{Chats: []model.Chat{{ID: "A@x"}}}})
	if s.ActiveChatID != "A@x" {
		t.Errorf("active chat = %q, want A@x kept", s.ActiveChatID)
	}
}

func TestReduceConnectionLifecycle(t *testing.T) {
	s := Reduce(NewState(), ShowQR{Code: model.PairingCode{Code: "2@abc"}})
	if s.QR == nil || s.QR.Code != "2@abc" || s.Ready {
		t.Fatalf("after qr: qr=%v ready=%v", s.QR, s.Ready)
	}
	s = Reduce(s, ShowError{Message: "stream error"})
	if s.Err != "stream error" {
		t.Errorf("err = %q", s.Err)
	}
	s = Reduce(s, MarkReady{})
	if s.QR != nil || !s.Ready || s.Err != "" {
		t.Errorf("after ready: qr=%v ready=%v err=%q", s.QR, s.Ready, s.Err)
	}
}

func testChats() State {
	return Reduce(NewState(), SetSnapshot{Snapshot: model.Snapshot{
		Chats: []model.Chat{
			{ID: "a@x", Name: "Alice", ConversationTimestamp: 100, Tag: "Friends"},
			{ID: "b@x", Name: "Bob", ConversationTimestamp: 300, IsUnread: model.Flag(true)},
			{ID: "c@x", Name: "Carol", ConversationTimestamp: 200, Tag: "office", IsSilenced: model.Flag(true)},
			{ID: "d@x", ConversationTimestamp: 50, Tag: "Office"},
		},
	}})
}

func TestFilteredChats(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		tag    string
		want   []string
	}{
		{"inbox shows all newest first", FilterInbox, "", []string{"b@x", "c@x", "a@x", "d@x"}},
		{"inbox tag ignores case", FilterInbox, "Office", []string{"c@x", "d@x"}},
		{"inbox unknown tag", FilterInbox, "Kungfu", nil},
		{"unreads", FilterUnreads, "", []string{"b@x"}},
		{"silenced", FilterSilenced, "", []string{"c@x"}},
		{"tag ignored outside inbox", FilterUnreads, "Office", []string{"b@x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Reduce(testChats(), SetFilter{Filter: tt.filter, Tag: tt.tag})
			if got := chatIDs(s.FilteredChats()); !slices.Equal(got, tt.want) {
				t.Errorf("FilteredChats() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMoveSelection(t *testing.T) {
	s := testChats() // visible order: b c a d

	tests := []struct {
		name   string
		active string
		delta  int
		want   string
	}{
		{"down from none starts at top", "", 1, "b@x"},
		{"up from none starts at bottom", "", -1, "d@x"},
		{"down one", "c@x", 1, "a@x"},
		{"up one", "c@x", -1, "b@x"},
		{"clamped at bottom", "a@x", 5, "d@x"},
		{"clamped at top", "c@x", -5, "b@x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce(s, SetActiveChat{ChatID: tt.active}).MoveSelection(tt.delta)
			if got != tt.want {
				t.Errorf("MoveSelection(%d) = %q, want %q", tt.delta, got, tt.want)
			}
		})
	}

	if got := NewState().MoveSelection(1); got != "" {
		t.Errorf("empty list = %q, want empty", got)
	}
}

func TestDisplayName(t *testing.T) {
	s := Reduce(testChats(), SetSnapshot{Snapshot: model.Snapshot{
		Chats:    []model.Chat{{ID: "a@x", Name: "Alice"}, {ID: "5551@s.whatsapp.net"}, {ID: "5552@s.whatsapp.net"}},
		Contacts: []model.Contact{{ID: "5551@s.whatsapp.net", Notify: "Bobby"}},
	}})

	tests := map[string]string{
		"a@x":                 "Alice",
		"5551@s.whatsapp.net": "Bobby",
		"5552@s.whatsapp.net": "5552",
	}
	for id, want := range tests {
		if got := s.DisplayName(id); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestActiveMessagesChronological(t *testing.T) {
	s := Reduce(NewState(), delta(
		model.TextMessage("A@x", "m2", false, 2000, "yo"),
		model.TextMessage("A@x", "m1", false, 1000, "hi"),
		model.TextMessage("B@x", "m9", false, 9000, "other"),
	))
	s = Reduce(s, SetActiveChat{ChatID: "A@x"})

	if got := ids(s.ActiveMessages()); !slices.Equal(got, []string{"m1", "m2"}) {
		t.Errorf("ActiveMessages() = %v, want [m1 m2]", got)
	}
	if got := ids(s.Messages["A@x"]); !slices.Equal(got, []string{"m2", "m1"}) {
		t.Errorf("stored order changed: %v", got)
	}
}

func TestTags(t *testing.T) {
	if got := testChats().Tags(); !slices.Equal(got, []string{"Friends", "office"}) {
		t.Errorf("Tags() = %v", got)
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in   string
		want Filter
		ok   bool
	}{
		{"", FilterInbox, true},
		{"Inbox", FilterInbox, true},
		{"unread", FilterUnreads, true},
		{"silenced", FilterSilenced, true},
		{"archived", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseFilter(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseFilter(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
