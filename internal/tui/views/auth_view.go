package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/matheus3301/wppdesk/internal/tui/ui"
)

// AuthView shows the pairing QR code.
type AuthView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewAuthView creates the pairing view.
func NewAuthView(theme *ui.Theme) *AuthView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Link this device ")
	tv.SetTitleColor(theme.TitleColor)

	return &AuthView{TextView: tv, theme: theme}
}

// Name implements ui.Component.
func (av *AuthView) Name() string { return "Pairing" }

// Hints implements ui.Component.
func (av *AuthView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// ShowQR renders code as a scannable block.
func (av *AuthView) ShowQR(code string) {
	av.Clear()
	_, _ = fmt.Fprintf(av, "\nOpen WhatsApp > Linked devices > Link a device and scan:\n\n%s\n[%s]Waiting for the scan...[-]",
		renderQR(code), ui.Tag(av.theme.DimColor))
}

// ShowMessage replaces the view with a status line.
func (av *AuthView) ShowMessage(msg string) {
	av.Clear()
	_, _ = fmt.Fprintf(av, "\n\n%s", tview.Escape(msg))
}

// renderQR draws code with Unicode half blocks, two modules per character cell.
func renderQR(code string) string {
	qr, err := qrcode.New(code, qrcode.Low)
	if err != nil {
		return "(QR generation failed: " + err.Error() + ")"
	}
	bitmap := qr.Bitmap()

	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bot := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
