package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/wppdesk/internal/model"
	"github.com/matheus3301/wppdesk/internal/status"
	"github.com/matheus3301/wppdesk/internal/tui/keys"
	tuimodel "github.com/matheus3301/wppdesk/internal/tui/model"
	"github.com/matheus3301/wppdesk/internal/tui/ui"
	"github.com/matheus3301/wppdesk/internal/tui/views"
)

const (
	pageChats  = "chats"
	pageThread = "thread"
	pageInfo   = "info"
	pageSearch = "search"
	pageAuth   = "auth"
	pageHelp   = "help"

	requestTimeout = 30 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	root     *tview.Flex
	pages    *ui.Pages
	header   *ui.Header
	prompt   *ui.Prompt
	flash    *ui.FlashModel
	flashBar *ui.FlashBar
	registry *keys.Registry
	vm       *tuimodel.ViewModel
	session  string

	list   *views.ConversationList
	thread *views.MessageThread
	info   *views.ConversationInfo
	search *views.SearchView
	auth   *views.AuthView
	help   *views.HelpView

	components map[string]ui.Component
	shownQR    string
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewApp creates the TUI over a daemon connection.
func NewApp(backend tuimodel.Backend, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		pages:    ui.NewPages(),
		header:   ui.NewHeader(theme),
		prompt:   ui.NewPrompt(theme),
		flash:    ui.NewFlashModel(),
		flashBar: ui.NewFlashBar(theme),
		registry: keys.NewRegistry(),
		vm:       tuimodel.NewViewModel(backend),
		session:  sessionName,
		list:     views.NewConversationList(theme),
		thread:   views.NewMessageThread(theme),
		info:     views.NewConversationInfo(theme),
		search:   views.NewSearchView(theme),
		auth:     views.NewAuthView(theme),
		help:     views.NewHelpView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}
	a.components = map[string]ui.Component{
		pageChats:  a.list,
		pageThread: a.thread,
		pageInfo:   a.info,
		pageSearch: a.search,
		pageAuth:   a.auth,
		pageHelp:   a.help,
	}

	a.setupLayout()
	a.setupBindings()
	a.setupCallbacks()
	a.pages.Reset(pageChats)
	return a
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageChats, a.list, true, false)
	a.pages.AddPage(pageThread, a.thread, true, false)
	a.pages.AddPage(pageInfo, a.info, true, false)
	a.pages.AddPage(pageSearch, a.search, true, false)
	a.pages.AddPage(pageAuth, a.auth, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.header, 8, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.flashBar, 1, 0, false)
	a.app.SetRoot(a.root, true)

	a.pages.SetOnChange(func(stack []string) {
		names := make([]string, len(stack))
		for i, n := range stack {
			names[i] = a.components[n].Name()
		}
		a.header.SetCrumbs(names)
		a.header.SetHints(append(a.components[a.pages.Current()].Hints(), a.registry.Hints(a.pages.Current())...))
		a.focusPage()
	})

	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch a.app.GetFocus() {
		case a.prompt.InputField:
			return ev
		case a.thread.Composer():
			if ev.Key() == tcell.KeyEscape {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			return ev
		}
		if a.registry.Handle(a.pages.Current(), ev) {
			return nil
		}
		return ev
	})
}

func (a *App) setupBindings() {
	r := a.registry
	r.Global(keys.Action{Key: tcell.KeyRune, Rune: ':', Hint: "Command", Handler: func() { a.showPrompt(ui.PromptCommand) }})
	r.Global(keys.Action{Key: tcell.KeyRune, Rune: '/', Hint: "Search", Handler: func() { a.showPrompt(ui.PromptSearch) }})
	r.Global(keys.Action{Key: tcell.KeyRune, Rune: '?', Hint: "Help", Handler: func() { a.pages.Push(pageHelp) }})
	r.Global(keys.Action{Key: tcell.KeyCtrlJ, Hint: "Next chat", Handler: func() { a.moveSelection(1) }})
	r.Global(keys.Action{Key: tcell.KeyCtrlK, Hint: "Prev chat", Handler: func() { a.moveSelection(-1) }})
	r.Global(keys.Action{Key: tcell.KeyEscape, Handler: func() { a.pages.Pop() }})
	r.Global(keys.Action{Key: tcell.KeyRune, Rune: 'q', Hint: "Quit", Handler: a.Stop})

	r.On(pageChats, keys.Action{Key: tcell.KeyEnter, Handler: func() { a.openChat(a.list.SelectedChat()) }})
	r.On(pageChats, keys.Action{Key: tcell.KeyRune, Rune: 'x', Hint: "Silence", Handler: a.silenceAndAdvance})
	r.On(pageChats, keys.Action{Key: tcell.KeyRune, Rune: 'u', Hint: "Unread", Handler: a.toggleUnread})
	for n := 1; n <= 9; n++ {
		r.On(pageChats, keys.Action{Key: tcell.KeyRune, Rune: rune('0' + n), Handler: func() {
			a.openChat(a.list.ChatByIndex(n))
		}})
	}

	r.On(pageThread, keys.Action{Key: tcell.KeyRune, Rune: 'i', Handler: func() { a.app.SetFocus(a.thread.Composer()) }})
	r.On(pageThread, keys.Action{Key: tcell.KeyRune, Rune: 't', Handler: func() { a.transcribe("") }})
	r.On(pageThread, keys.Action{Key: tcell.KeyRune, Rune: 'd', Handler: func() { a.pages.Push(pageInfo) }})

	r.On(pageInfo, keys.Action{Key: tcell.KeyRune, Rune: 'x', Handler: a.toggleSilenced})
	r.On(pageInfo, keys.Action{Key: tcell.KeyRune, Rune: 'u', Handler: a.toggleUnread})

	r.On(pageSearch, keys.Action{Key: tcell.KeyEnter, Handler: func() {
		if hit, ok := a.search.SelectedHit(); ok {
			a.openChat(hit.ChatID)
		}
	}})
}

func (a *App) setupCallbacks() {
	a.list.SetSelectionChangedFunc(func(row, _ int) {
		if id := a.list.ChatByIndex(row); id != "" && id != a.vm.State().ActiveChatID {
			a.vm.OpenChat(id)
		}
	})

	a.thread.SetOnSend(func(text string) {
		a.do("send", func(ctx context.Context) error {
			if err := a.vm.SendText(ctx, text); err != nil {
				return err
			}
			a.flash.Info("sent")
			return nil
		})
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptSearch {
			a.runSearch(text)
			return
		}
		a.runCommand(ParseCommand(text))
	})
	a.prompt.SetOnCancel(a.hidePrompt)
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusPage()
}

func (a *App) focusPage() {
	switch a.pages.Current() {
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageChats:
		a.app.SetFocus(a.list)
	case pageInfo:
		a.app.SetFocus(a.info)
	case pageSearch:
		a.app.SetFocus(a.search)
	case pageAuth:
		a.app.SetFocus(a.auth)
	case pageHelp:
		a.app.SetFocus(a.help)
	}
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "quit":
		a.Stop()
	case "help":
		a.pages.Push(pageHelp)
	case "search":
		a.runSearch(cmd.Args)
	case "inbox", "unreads", "silenced":
		f, _ := tuimodel.ParseFilter(cmd.Name)
		a.vm.SetFilter(f, cmd.Args)
		a.pages.Reset(pageChats)
	case "down", "up":
		n, ok := cmd.Count(1)
		if !ok {
			a.flash.Warn("usage: :%s [n]", cmd.Name)
			return
		}
		if cmd.Name == "up" {
			n = -n
		}
		a.moveSelection(n)
	case "chat":
		a.openChatByName(cmd.Args)
	case "tag":
		a.setTag(cmd.Args)
	case "silence":
		a.toggleSilenced()
	case "unread":
		a.toggleUnread()
	case "transcribe":
		a.transcribe(cmd.Args)
	case "connect":
		a.do("connect", func(ctx context.Context) error {
			msg, err := a.vm.Connect(ctx)
			if err == nil {
				a.flash.Info("%s", msg)
			}
			return err
		})
	case "logout":
		a.do("logout", func(ctx context.Context) error {
			msg, err := a.vm.Logout(ctx)
			if err == nil {
				a.flash.Warn("%s", msg)
			}
			return err
		})
	default:
		a.flash.Warn("unknown command %q, see :help", cmd.Name)
	}
	a.render()
}

func (a *App) openChat(id string) {
	if id == "" {
		return
	}
	a.vm.OpenChat(id)
	a.pages.Reset(pageChats)
	a.pages.Push(pageThread)
	a.render()
}

func (a *App) openChatByName(name string) {
	s := a.vm.State()
	for _, c := range s.Chats {
		if strings.Contains(strings.ToLower(s.DisplayName(c.ID)), strings.ToLower(name)) {
			a.openChat(c.ID)
			return
		}
	}
	a.flash.Warn("no chat matches %q", name)
}

func (a *App) moveSelection(delta int) {
	if id := a.vm.State().MoveSelection(delta); id != "" {
		a.vm.OpenChat(id)
	}
}

// silenceAndAdvance toggles the silenced flag of the active chat and moves on to the next
// one, so a run of chats can be triaged with one key.
func (a *App) silenceAndAdvance() {
	s := a.vm.State()
	current := s.ActiveChatID
	if next := s.MoveSelection(1); next != current {
		a.vm.OpenChat(next)
	}
	a.updateFlags(current, func(c model.Chat) model.ChatFlags {
		return model.ChatFlags{Silenced: model.Flag(!c.Silenced())}
	})
}

func (a *App) toggleSilenced() {
	a.updateFlags(a.vm.State().ActiveChatID, func(c model.Chat) model.ChatFlags {
		return model.ChatFlags{Silenced: model.Flag(!c.Silenced())}
	})
}

func (a *App) toggleUnread() {
	a.updateFlags(a.vm.State().ActiveChatID, func(c model.Chat) model.ChatFlags {
		return model.ChatFlags{Unread: model.Flag(!c.Unread())}
	})
}

func (a *App) setTag(tag string) {
	if tag == "-" {
		tag = ""
	}
	a.updateFlags(a.vm.State().ActiveChatID, func(model.Chat) model.ChatFlags {
		return model.ChatFlags{Tag: &tag}
	})
}

func (a *App) updateFlags(chatID string, flags func(model.Chat) model.ChatFlags) {
	chat, ok := a.vm.State().Chat(chatID)
	if !ok {
		a.flash.Warn("no chat selected")
		return
	}
	a.do("update chat", func(ctx context.Context) error {
		return a.vm.UpdateChatFlags(ctx, chatID, flags(chat))
	})
}

func (a *App) transcribe(msgID string) {
	s := a.vm.State()
	if s.ActiveChatID == "" {
		a.flash.Warn("open a chat first")
		return
	}
	if msgID == "" {
		msgID = views.LastUntranscribed(s)
	}
	if msgID == "" {
		a.flash.Info("no voice note left to transcribe")
		return
	}
	a.flash.Info("transcribing...")
	a.do("transcribe", func(ctx context.Context) error {
		_, err := a.vm.Transcribe(ctx, msgID)
		return err
	})
}

func (a *App) runSearch(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}
	a.do("search", func(ctx context.Context) error {
		hits, err := a.vm.Search(ctx, query, "")
		if err != nil {
			return err
		}
		a.app.QueueUpdateDraw(func() {
			a.search.Update(query, hits, a.vm.State())
			a.pages.Push(pageSearch)
		})
		return nil
	})
}

// do runs fn off the UI goroutine and reports failures in the flash bar.
func (a *App) do(what string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, requestTimeout)
		defer cancel()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.flash.Err(what, err)
		}
		a.app.QueueUpdateDraw(a.render)
	}()
}

// render redraws every view from the current state. It runs on the UI goroutine.
func (a *App) render() {
	s := a.vm.State()

	view := string(s.Filter)
	if s.InboxTag != "" {
		view += ": " + s.InboxTag
	}
	data := ui.SessionData{Session: a.session, State: "connecting to daemon", View: view}
	if st := a.vm.Status(); st != nil {
		data.Phone = st.PhoneNumber
		data.State = st.State
		data.Chats = st.Chats
		data.Messages = st.Messages
		data.Indexed = st.Indexed
		data.Uptime = time.Duration(st.UptimeMs) * time.Millisecond
	}
	a.header.SetSession(data)

	a.list.Update(s)
	if s.ActiveChatID != "" {
		a.thread.Update(s)
		a.info.Update(s)
	}

	switch {
	case s.QR != nil && !s.Ready:
		a.auth.ShowQR(s.QR.Code)
		if s.QR.Code != a.shownQR {
			a.shownQR = s.QR.Code
			a.pages.Push(pageAuth)
		}
	case s.Ready && a.pages.Current() == pageAuth:
		a.pages.Reset(pageChats)
	}

	a.flashBar.Update(a.flash.Current())
}

// Run loads the initial state, starts the event stream and blocks until the user quits.
func (a *App) Run() error {
	go a.sync()
	go a.redrawLoop()
	return a.app.Run()
}

// sync loads state and follows the daemon's event stream, reloading after a dropped
// stream so no delta is missed.
func (a *App) sync() {
	for {
		if err := a.vm.Load(a.ctx); err != nil {
			a.flash.Err("load", err)
		} else if st := a.vm.Status(); st != nil && !st.LoggedIn && st.State != string(status.AwaitingQR) {
			a.app.QueueUpdateDraw(func() {
				a.auth.ShowMessage("Not linked yet. Requesting a pairing code...")
				a.pages.Push(pageAuth)
			})
			a.do("connect", func(ctx context.Context) error {
				_, err := a.vm.Connect(ctx)
				return err
			})
		}

		err := a.vm.Watch(a.ctx)
		if a.ctx.Err() != nil {
			return
		}
		if err != nil {
			a.flash.Warn("event stream lost (%v), reconnecting", err)
		}
		select {
		case <-time.After(2 * time.Second):
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) redrawLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
		case n := <-a.vm.Notices():
			a.flash.Warn("%s", n)
		case <-ticker.C:
		case <-a.ctx.Done():
			return
		}
		a.app.QueueUpdateDraw(a.render)
	}
}

// Stop shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
