package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/wppdesk/internal/model"
	tuimodel "github.com/matheus3301/wppdesk/internal/tui/model"
	"github.com/matheus3301/wppdesk/internal/tui/ui"
)

// ConversationList is the chat table. Rows follow State.FilteredChats.
type ConversationList struct {
	*tview.Table
	theme *ui.Theme
	ids   []string
}

// NewConversationList creates the chat table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{Table: table, theme: theme}
}

// Name implements ui.Component.
func (cl *ConversationList) Name() string { return "Chats" }

// Hints implements ui.Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update renders the chats visible under the state's filter and keeps the cursor on the
// active chat when it is visible.
func (cl *ConversationList) Update(s tuimodel.State) {
	chats := s.FilteredChats()
	now := time.Now()
	cl.Clear()
	cl.ids = cl.ids[:0]

	headers := []struct {
		text string
		exp  int
	}{
		{" #", 0},
		{" NAME", 2},
		{" TAG", 1},
		{" LAST", 3},
		{" TIME", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	selected := 0
	for i, chat := range chats {
		row := i + 1
		cl.ids = append(cl.ids, chat.ID)
		if chat.ID == s.ActiveChatID {
			selected = row
		}

		color := cl.theme.FgColor
		attrs := tcell.AttrNone
		name := s.DisplayName(chat.ID)
		switch {
		case chat.Silenced():
			color = cl.theme.SilencedColor
			name = "~ " + name
		case chat.Unread() || chat.Unreads() > 0:
			color = cl.theme.UnreadColor
			attrs = tcell.AttrBold
			if n := chat.Unreads(); n > 0 {
				name = fmt.Sprintf("(%d) %s", n, name)
			} else {
				name = "* " + name
			}
		}

		index := ""
		if row <= 9 {
			index = fmt.Sprint(row)
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+index).SetTextColor(cl.theme.NumericKeyColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+cell(name)).SetExpansion(2).SetTextColor(color).SetAttributes(attrs))
		cl.SetCell(row, 2, tview.NewTableCell(" "+cell(chat.Tag)).SetExpansion(1).SetTextColor(cl.theme.TagColor))
		cl.SetCell(row, 3, tview.NewTableCell(" "+cell(lastPreview(s.Messages[chat.ID]))).SetExpansion(3).SetTextColor(color))
		cl.SetCell(row, 4, tview.NewTableCell(formatTimestamp(chat.ConversationTimestamp, now)+" ").SetAlign(tview.AlignRight).SetTextColor(color))
	}

	title := fmt.Sprintf(" %s (%d/%d) ", s.Filter, len(chats), len(s.Chats))
	if s.Filter == tuimodel.FilterInbox && s.InboxTag != "" {
		title = fmt.Sprintf(" inbox: %s (%d/%d) ", s.InboxTag, len(chats), len(s.Chats))
	}
	cl.SetTitle(title)

	if selected == 0 && len(chats) > 0 {
		selected = 1
	}
	if selected > 0 {
		cl.Select(selected, 0)
	}
}

// SelectedChat returns the id of the chat under the cursor.
func (cl *ConversationList) SelectedChat() string {
	row, _ := cl.GetSelection()
	return cl.ChatByIndex(row)
}

// ChatByIndex returns the id of the nth visible chat, 1-based.
func (cl *ConversationList) ChatByIndex(n int) string {
	if n < 1 || n > len(cl.ids) {
		return ""
	}
	return cl.ids[n-1]
}

// lastPreview summarises the newest message of a chat. msgs are newest first.
func lastPreview(msgs []model.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	m := msgs[0]
	prefix := ""
	if m.Key.FromMe {
		prefix = "you: "
	}
	if a := m.Audio(); a != nil {
		return prefix + audioLine(a)
	}
	return prefix + m.Text()
}
