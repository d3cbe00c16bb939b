package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/wppdesk/internal/model"
	tuimodel "github.com/matheus3301/wppdesk/internal/tui/model"
	"github.com/matheus3301/wppdesk/internal/tui/ui"
)

// MessageThread shows the active chat and a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	onSend   func(text string)
}

// NewMessageThread creates the thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus, Esc to leave) ")
	composer.SetTitleColor(theme.TitleColor)

	mt := &MessageThread{
		Flex: tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(messages, 0, 1, true).
			AddItem(composer, 3, 0, false),
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		if text := strings.TrimSpace(composer.GetText()); text != "" {
			mt.onSend(text)
			composer.SetText("")
		}
	})
	return mt
}

// Name implements ui.Component.
func (mt *MessageThread) Name() string { return "Thread" }

// Hints implements ui.Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "t", Description: "Transcribe last voice note"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnSend sets the callback for a submitted message.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update renders the active chat of s, oldest message first.
func (mt *MessageThread) Update(s tuimodel.State) {
	mt.messages.Clear()
	mt.messages.SetTitle(fmt.Sprintf(" %s ", cell(s.DisplayName(s.ActiveChatID))))

	now := time.Now()
	own := ui.Tag(mt.theme.OwnMessageColor)
	audio := ui.Tag(mt.theme.AudioColor)
	dim := ui.Tag(mt.theme.DimColor)
	for _, m := range s.ActiveMessages() {
		sender := senderName(s, m)
		color := "::b"
		if m.Key.FromMe {
			color = own + "::b"
		}
		text := body(m.Text())
		if a := m.Audio(); a != nil {
			text = fmt.Sprintf("[%s]%s[-]", audio, body(audioLine(a)))
		}
		_, _ = fmt.Fprintf(mt.messages, "[%s]%s[-:-:-] [%s]%s[-]\n%s\n\n",
			color, body(sender), dim, formatTimestamp(m.MessageTimestamp, now), text)
	}
	mt.messages.ScrollToEnd()
}

// Messages returns the message pane for focus management.
func (mt *MessageThread) Messages() *tview.TextView { return mt.messages }

// Composer returns the input field for focus management.
func (mt *MessageThread) Composer() *tview.InputField { return mt.composer }

func senderName(s tuimodel.State, m model.Message) string {
	switch {
	case m.Key.FromMe:
		return "You"
	case m.PushName != "":
		return m.PushName
	case m.Key.Participant != "":
		return s.DisplayName(m.Key.Participant)
	}
	return s.DisplayName(m.ChatID())
}

// audioLine describes a voice note and how far its enrichment got.
func audioLine(a *model.AudioMessage) string {
	head := fmt.Sprintf("voice note %d:%02d", a.Seconds/60, a.Seconds%60)
	switch {
	case a.TranscribedText == model.NoTranscription:
		return head + ": (no speech)"
	case a.TranscribedText != "":
		return head + ": " + a.TranscribedText
	case a.LocalPath == "":
		return head + ", not downloaded"
	}
	return head + ", t to transcribe"
}

// LastUntranscribed returns the id of the newest voice note in the active chat that has
// no transcript yet, or "".
func LastUntranscribed(s tuimodel.State) string {
	for _, m := range s.Messages[s.ActiveChatID] {
		if a := m.Audio(); a != nil && a.TranscribedText == "" {
			return m.Key.ID
		}
	}
	return ""
}
