package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// SessionData is what the header shows about the daemon.
type SessionData struct {
	Session  string
	Phone    string
	State    string
	Chats    int
	Messages int
	Indexed  int
	Uptime   time.Duration
	View     string // active filter, e.g. "inbox: Office"
}

// Header shows the session panel on the left and the key hints of the current page on
// the right.
type Header struct {
	*tview.Flex
	theme   *Theme
	session *tview.TextView
	menu    *tview.TextView
	crumbs  *tview.TextView
}

// NewHeader creates the header.
func NewHeader(theme *Theme) *Header {
	newText := func() *tview.TextView {
		tv := tview.NewTextView().SetDynamicColors(true)
		tv.SetBackgroundColor(theme.BgColor)
		return tv
	}
	h := &Header{
		theme:   theme,
		session: newText(),
		menu:    newText(),
		crumbs:  newText(),
	}
	h.session.SetBorderPadding(0, 0, 1, 1)
	h.menu.SetBorderPadding(0, 0, 2, 0)

	top := tview.NewFlex().
		AddItem(h.session, 0, 1, false).
		AddItem(h.menu, 0, 1, false)
	h.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(top, 0, 1, false).
		AddItem(h.crumbs, 1, 0, false)
	return h
}

// SetSession renders the session panel.
func (h *Header) SetSession(d SessionData) {
	h.session.Clear()
	fg, ct := Tag(h.theme.FgColor), Tag(h.theme.CounterColor)
	phone := d.Phone
	if phone == "" {
		phone = "-"
	}
	rows := [][2]string{
		{"Session:", d.Session},
		{"Phone:", phone},
		{"State:", d.State},
		{"Chats:", fmt.Sprint(d.Chats)},
		{"Msgs:", fmt.Sprintf("%d (%d searchable)", d.Messages, d.Indexed)},
		{"Uptime:", formatDuration(d.Uptime)},
		{"View:", d.View},
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("[%s::b]%-8s[-:-:-] [%s]%s[-]", fg, r[0], ct, tview.Escape(r[1]))
	}
	_, _ = fmt.Fprint(h.session, strings.Join(lines, "\n"))
}

// SetHints renders the key hints of the current page.
func (h *Header) SetHints(hints []MenuHint) {
	h.menu.Clear()
	keyColor := Tag(h.theme.MenuKeyColor)
	numColor := Tag(h.theme.NumericKeyColor)
	for _, hint := range hints {
		kc := keyColor
		if hint.Numeric {
			kc = numColor
		}
		_, _ = fmt.Fprintf(h.menu, "[%s::b]<%s>[-:-:-] %s\n", kc, hint.Key, hint.Description)
	}
}

// SetCrumbs renders the page stack as a breadcrumb trail.
func (h *Header) SetCrumbs(stack []string) {
	h.crumbs.Clear()
	parts := make([]string, len(stack))
	for i, name := range stack {
		style := "[black:" + Tag(h.theme.TableCursorBg) + ":b]"
		if i < len(stack)-1 {
			style = "[black:" + Tag(h.theme.DimColor) + ":]"
		}
		parts[i] = style + " " + tview.Escape(name) + " [-:-:-]"
	}
	_, _ = fmt.Fprint(h.crumbs, " "+strings.Join(parts, " "))
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
