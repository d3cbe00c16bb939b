package views

import (
	"testing"
	"time"

	"github.com/matheus3301/wppdesk/internal/model"
	tuimodel "github.com/matheus3301/wppdesk/internal/tui/model"
)

func TestSanitizeForTerminal(t *testing.T) {
	tests := map[string]string{
		"plain":                      "plain",
		"\U0001F44D\U0001F3FB":       "\U0001F44D",
		"\U0001F468\u200d\U0001F469": "\U0001F468\U0001F469",
		"\u2764\ufe0f":               "\u2764",
	}
	for in, want := range tests {
		if got := sanitizeForTerminal(in); got != want {
			t.Errorf("sanitizeForTerminal(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCell(t *testing.T) {
	if got := cell("hello\n  [red]world"); got != "hello [red[]world" {
		t.Errorf("cell() = %q", got)
	}
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2026, 10, 16, 15, 0, 0, 0, time.Local)
	tests := []struct {
		ts   time.Time
		want string
	}{
		{time.Date(2026, 10, 16, 9, 5, 0, 0, time.Local), "09:05"},
		{time.Date(2026, 3, 2, 9, 5, 0, 0, time.Local), "Mar 02"},
		{time.Date(2024, 3, 2, 9, 5, 0, 0, time.Local), "2024-03-02"},
	}
	for _, tt := range tests {
		if got := formatTimestamp(model.Timestamp(tt.ts.Unix()), now); got != tt.want {
			t.Errorf("formatTimestamp(%v) = %q, want %q", tt.ts, got, tt.want)
		}
	}
	if got := formatTimestamp(0, now); got != "" {
		t.Errorf("zero timestamp = %q", got)
	}
}

func TestAudioLine(t *testing.T) {
	tests := []struct {
		name string
		a    model.AudioMessage
		want string
	}{
		{"not downloaded", model.AudioMessage{Seconds: 12}, "voice note 0:12, not downloaded"},
		{"downloaded", model.AudioMessage{Seconds: 75, LocalPath: "app://audio/x.ogg"}, "voice note 1:15, t to transcribe"},
		{"transcribed", model.AudioMessage{Seconds: 3, LocalPath: "app://audio/x.ogg", TranscribedText: "hi"}, "voice note 0:03: hi"},
		{"empty transcript", model.AudioMessage{Seconds: 3, TranscribedText: model.NoTranscription}, "voice note 0:03: (no speech)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := audioLine(&tt.a); got != tt.want {
				t.Errorf("audioLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLastUntranscribed(t *testing.T) {
	voice := func(id string, ts int64, transcript string) model.Message {
		return model.Message{
			Key:              model.MessageKey{RemoteJID: "A@x", ID: id},
			Message:          &model.MessageContent{AudioMessage: &model.AudioMessage{TranscribedText: transcript}},
			MessageTimestamp: model.Timestamp(ts),
		}
	}
	s := tuimodel.Reduce(tuimodel.NewState(), tuimodel.ApplyDelta{Delta: model.Delta{
		Messages: model.GroupByChat([]model.Message{
			voice("old", 1, ""),
			voice("done", 3, "hi"),
			voice("mid", 2, ""),
			model.TextMessage("A@x", "text", false, 4, "hello"),
		}),
	}})
	s = tuimodel.Reduce(s, tuimodel.SetActiveChat{ChatID: "A@x"})

	if got := LastUntranscribed(s); got != "mid" {
		t.Errorf("LastUntranscribed() = %q, want mid", got)
	}
	if got := LastUntranscribed(tuimodel.NewState()); got != "" {
		t.Errorf("no active chat = %q", got)
	}
}
