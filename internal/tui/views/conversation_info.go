package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	tuimodel "github.com/matheus3301/wppdesk/internal/tui/model"
	"github.com/matheus3301/wppdesk/internal/tui/ui"
)

// ConversationInfo shows a chat's protocol data and local metadata.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates the details view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{TextView: tv, theme: theme}
}

// Name implements ui.Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Hints implements ui.Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "x", Description: "Toggle silenced"},
		{Key: "u", Description: "Toggle unread"},
		{Key: ":tag <name>", Description: "Set tag"},
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders the active chat of s.
func (ci *ConversationInfo) Update(s tuimodel.State) {
	ci.Clear()
	chat, ok := s.Chat(s.ActiveChatID)
	if !ok {
		return
	}
	name := s.DisplayName(chat.ID)
	ci.SetTitle(fmt.Sprintf(" %s ", cell(name)))

	kind := "Direct message"
	if strings.HasSuffix(chat.ID, "@g.us") {
		kind = "Group"
	}
	tag := chat.Tag
	if tag == "" {
		tag = "-"
	}
	audio, transcribed := 0, 0
	msgs := s.Messages[chat.ID]
	for _, m := range msgs {
		if a := m.Audio(); a != nil {
			audio++
			if a.TranscribedText != "" {
				transcribed++
			}
		}
	}

	rows := [][2]string{
		{"Name", name},
		{"ID", chat.ID},
		{"Type", kind},
		{"Last active", formatTimestamp(chat.ConversationTimestamp, time.Now())},
		{"Unread count", fmt.Sprint(chat.Unreads())},
		{"Tag", tag},
		{"Silenced", yesNo(chat.Silenced())},
		{"Marked unread", yesNo(chat.Unread())},
		{"Messages", fmt.Sprint(len(msgs))},
		{"Voice notes", fmt.Sprintf("%d (%d transcribed)", audio, transcribed)},
	}
	fg, ct := ui.Tag(ci.theme.FgColor), ui.Tag(ci.theme.CounterColor)
	_, _ = fmt.Fprintln(ci)
	for _, r := range rows {
		_, _ = fmt.Fprintf(ci, " [%s::b]%-14s[-:-:-] [%s]%s[-]\n", fg, r[0]+":", ct, cell(r[1]))
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
