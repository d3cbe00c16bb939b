package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/wppdesk/internal/tui/ui"
)

// HelpView lists key bindings and commands.
type HelpView struct {
	*tview.TextView
}

// NewHelpView creates the help page.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	kc := ui.Tag(theme.MenuKeyColor)
	key := func(k string) string { return fmt.Sprintf("[%s]%-18s[-]", kc, tview.Escape(k)) }
	section := func(title string, rows ...[2]string) {
		_, _ = fmt.Fprintf(tv, "\n  [::b]%s[-:-:-]\n\n", title)
		for _, r := range rows {
			_, _ = fmt.Fprintf(tv, "  %s %s\n", key(r[0]), r[1])
		}
	}

	section("Everywhere",
		[2]string{"Ctrl-J / Ctrl-K", "Next / previous chat"},
		[2]string{":", "Command mode"},
		[2]string{"/", "Search messages"},
		[2]string{"Esc", "Back"},
		[2]string{"?", "This help"},
		[2]string{"q", "Quit"},
	)
	section("Chat list",
		[2]string{"Enter", "Open chat"},
		[2]string{"1-9", "Open the Nth chat"},
		[2]string{"x", "Toggle silenced and move to the next chat"},
		[2]string{"u", "Toggle unread"},
	)
	section("Thread",
		[2]string{"i", "Focus the composer"},
		[2]string{"t", "Transcribe the newest voice note"},
		[2]string{"d", "Chat details"},
	)
	section("Commands",
		[2]string{":inbox [tag]", "Show the inbox, optionally one tag"},
		[2]string{":unreads", "Show chats marked unread"},
		[2]string{":silenced", "Show silenced chats"},
		[2]string{":tag <name>", "Tag the current chat (:tag - clears)"},
		[2]string{":down [n] / :up [n]", "Move n chats"},
		[2]string{":chat <name>", "Open a chat by name"},
		[2]string{":search <query>", "Search messages"},
		[2]string{":transcribe [id]", "Transcribe a voice note"},
		[2]string{":connect", "Connect or start pairing"},
		[2]string{":logout", "Unlink this device"},
		[2]string{":quit", "Quit"},
	)

	return &HelpView{TextView: tv}
}

// Name implements ui.Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements ui.Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{{Key: "Esc", Description: "Back"}}
}
