package ui

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestPagesStack(t *testing.T) {
	p := NewPages()
	for _, name := range []string{"chats", "thread", "info"} {
		p.AddPage(name, NewFlashBar(DefaultTheme()), true, false)
	}
	var seen [][]string
	p.SetOnChange(func(s []string) { seen = append(seen, s) })

	p.Reset("chats")
	p.Push("thread")
	p.Push("thread")
	p.Push("info")
	if got := p.Stack(); !slices.Equal(got, []string{"chats", "thread", "info"}) {
		t.Fatalf("stack = %v", got)
	}

	p.Push("thread")
	if got := p.Stack(); !slices.Equal(got, []string{"chats", "thread"}) {
		t.Errorf("push existing page: stack = %v", got)
	}
	if top := p.Pop(); top != "thread" {
		t.Errorf("Pop() = %q", top)
	}
	if top := p.Pop(); top != "" || p.Current() != "chats" {
		t.Errorf("bottom page popped: %q, current %q", top, p.Current())
	}
	if len(seen) != 5 {
		t.Errorf("onChange fired %d times, want 5", len(seen))
	}
}

func TestFlashExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	if f.Current() != nil {
		t.Fatal("empty model has a message")
	}
	f.Err("send", errors.New("offline"))
	m := f.Current()
	if m == nil || m.Text != "send: offline" || m.Level != FlashErr {
		t.Fatalf("Current() = %+v", m)
	}

	now = now.Add(9 * time.Second)
	if f.Current() == nil {
		t.Error("error flash expired too early")
	}
	f.Info("sent to %s", "Alice")
	now = now.Add(5 * time.Second)
	if f.Current() != nil {
		t.Error("info flash did not expire")
	}
}
