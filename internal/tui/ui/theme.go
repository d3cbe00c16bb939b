package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	DimColor          tcell.Color
	BorderColor       tcell.Color
	TableHeaderFg     tcell.Color
	TableHeaderBg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	UnreadColor       tcell.Color
	SilencedColor     tcell.Color
	TagColor          tcell.Color
	OwnMessageColor   tcell.Color
	AudioColor        tcell.Color
	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color
}

// DefaultTheme returns a dark theme with WhatsApp-green accents.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorSilver,
		DimColor:          tcell.ColorGray,
		BorderColor:       tcell.ColorSeaGreen,
		TableHeaderFg:     tcell.ColorWhite,
		TableHeaderBg:     tcell.ColorBlack,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorMediumSeaGreen,
		MenuKeyColor:      tcell.ColorMediumSeaGreen,
		NumericKeyColor:   tcell.ColorFuchsia,
		TitleColor:        tcell.ColorLimeGreen,
		CounterColor:      tcell.ColorPapayaWhip,
		UnreadColor:       tcell.ColorWhite,
		SilencedColor:     tcell.ColorDimGray,
		TagColor:          tcell.ColorGold,
		OwnMessageColor:   tcell.ColorPaleGreen,
		AudioColor:        tcell.ColorSkyblue,
		FlashInfoColor:    tcell.ColorNavajoWhite,
		FlashWarnColor:    tcell.ColorOrange,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorSeaGreen,
	}
}

// Tag returns c as a tview color tag name.
func Tag(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}
