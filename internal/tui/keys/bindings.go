// Package keys maps key presses to actions per page and produces the hints shown in the
// header.
package keys

import (
	"slices"

	"github.com/gdamore/tcell/v2"

	"github.com/matheus3301/wppdesk/internal/tui/ui"
)

// Action is one key binding.
type Action struct {
	Key     tcell.Key
	Rune    rune
	Hint    string // label shown in the header; "" hides the binding
	Handler func()
}

// Matches reports whether ev triggers the action.
func (a Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

func (a Action) label() string {
	if a.Key == tcell.KeyRune {
		return string(a.Rune)
	}
	return tcell.KeyNames[a.Key]
}

// Registry holds global and per-page bindings in registration order.
type Registry struct {
	global []Action
	pages  map[string][]Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string][]Action)}
}

// Global registers a binding active on every page.
func (r *Registry) Global(a Action) {
	r.global = append(r.global, a)
}

// On registers a binding active on one page. Page bindings win over global ones.
func (r *Registry) On(page string, a Action) {
	r.pages[page] = append(r.pages[page], a)
}

// Hints returns the visible bindings of page followed by the global ones.
func (r *Registry) Hints(page string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, a := range slices.Concat(r.pages[page], r.global) {
		if a.Hint != "" {
			hints = append(hints, ui.MenuHint{Key: a.label(), Description: a.Hint})
		}
	}
	return hints
}

// Handle runs the first binding of page, then of the global set, that matches ev. It
// reports whether one did.
func (r *Registry) Handle(page string, ev *tcell.EventKey) bool {
	for _, set := range [][]Action{r.pages[page], r.global} {
		for _, a := range set {
			if a.Matches(ev) {
				a.Handler()
				return true
			}
		}
	}
	return false
}
