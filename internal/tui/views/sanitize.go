package views

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rivo/tview"

	"github.com/matheus3301/wppdesk/internal/model"
)

// sanitizeForTerminal removes codepoints tcell renders badly: skin tone modifiers, the
// zero width joiner and variation selectors. An emoji sequence collapses to its base
// emoji, which tcell draws as one two-cell character.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isProblematicRune(r) {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

func isProblematicRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}

// cell prepares untrusted text for a single table cell.
func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return tview.Escape(sanitizeForTerminal(s))
}

// body prepares untrusted multi-line text for a text view.
func body(s string) string {
	return tview.Escape(sanitizeForTerminal(s))
}

func formatTimestamp(ts model.Timestamp, now time.Time) string {
	if ts == 0 {
		return ""
	}
	t := ts.Time().Local()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	if t.Year() == now.Year() {
		return t.Format("Jan 02")
	}
	return t.Format("2006-01-02")
}
