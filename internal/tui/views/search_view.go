package views

import (
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/wppdesk/internal/index"
	"github.com/matheus3301/wppdesk/internal/model"
	tuimodel "github.com/matheus3301/wppdesk/internal/tui/model"
	"github.com/matheus3301/wppdesk/internal/tui/ui"
)

// SearchView lists full-text search hits.
type SearchView struct {
	*tview.Table
	theme *ui.Theme
	hits  []index.Hit
}

// NewSearchView creates the results table.
func NewSearchView(theme *ui.Theme) *SearchView {
	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true)
	results.SetBorderColor(theme.BorderColor)
	results.SetBackgroundColor(theme.BgColor)
	results.SetTitle(" Results ")
	results.SetTitleColor(theme.TitleColor)
	results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	return &SearchView{Table: results, theme: theme}
}

// Name implements ui.Component.
func (sv *SearchView) Name() string { return "Search" }

// Hints implements ui.Component.
func (sv *SearchView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open chat"},
		{Key: "/", Description: "New search"},
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders hits for query. Chat names come from s.
func (sv *SearchView) Update(query string, hits []index.Hit, s tuimodel.State) {
	sv.hits = hits
	sv.Clear()
	sv.SetTitle(" Results for " + cell(query) + " ")

	for col, h := range []string{" CHAT", " SNIPPET", " TIME"} {
		sv.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sv.theme.TableHeaderFg).
			SetBackgroundColor(sv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}

	now := time.Now()
	for i, h := range hits {
		row := i + 1
		sv.SetCell(row, 0, tview.NewTableCell(" "+cell(s.DisplayName(h.ChatID))).SetMaxWidth(25).SetTextColor(sv.theme.FgColor))
		sv.SetCell(row, 1, tview.NewTableCell(" "+cell(h.Snippet)).SetExpansion(1).SetTextColor(sv.theme.FgColor))
		sv.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(model.Timestamp(h.Timestamp), now)).SetTextColor(sv.theme.FgColor))
	}
	if len(hits) > 0 {
		sv.Select(1, 0)
	}
}

// SelectedHit returns the hit under the cursor.
func (sv *SearchView) SelectedHit() (index.Hit, bool) {
	row, _ := sv.GetSelection()
	if row < 1 || row > len(sv.hits) {
		return index.Hit{}, false
	}
	return sv.hits[row-1], true
}
