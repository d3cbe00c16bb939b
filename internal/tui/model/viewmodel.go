package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/matheus3301/wppdesk/internal/api"
	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/index"
	"github.com/matheus3301/wppdesk/internal/model"
	"github.com/matheus3301/wppdesk/internal/status"
)

// Backend is the slice of the daemon API the TUI uses. *api.Client implements it.
type Backend interface {
	Status(ctx context.Context) (*api.StatusResponse, error)
	Connect(ctx context.Context) (*api.Ack, error)
	Logout(ctx context.Context) (*api.Ack, error)
	Snapshot(ctx context.Context, chatID string) (*model.Snapshot, error)
	SetChatFlags(ctx context.Context, chatID string, flags model.ChatFlags) (model.Chat, error)
	SendText(ctx context.Context, to, text string) (model.Message, error)
	Transcribe(ctx context.Context, chatID, msgID string) (model.Message, error)
	Search(ctx context.Context, query, chatID string, limit int) (*api.SearchResponse, error)
	Watch(ctx context.Context, prefix string, fn func(*api.Envelope) error) error
}

// ViewModel holds the reduced state behind a mutex and signals the UI when it changes.
type ViewModel struct {
	mu sync.RWMutex

	backend Backend
	state   State
	status  *api.StatusResponse
	notices chan string

	refreshCh chan struct{}
}

// NewViewModel creates a view model over the daemon API.
func NewViewModel(b Backend) *ViewModel {
	return &ViewModel{
		backend:   b,
		state:     NewState(),
		notices:   make(chan string, 8),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

// Notices returns error and logout notifications pushed by the daemon.
func (vm *ViewModel) Notices() <-chan string {
	return vm.notices
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

func (vm *ViewModel) notify(msg string) {
	select {
	case vm.notices <- msg:
	default:
	}
}

// Dispatch reduces a into the current state.
func (vm *ViewModel) Dispatch(a Action) {
	vm.mu.Lock()
	vm.state = Reduce(vm.state, a)
	vm.mu.Unlock()
	vm.signalRefresh()
}

// State returns the current state.
func (vm *ViewModel) State() State {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.state
}

// Status returns the last session status fetched from the daemon, or nil.
func (vm *ViewModel) Status() *api.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Load fetches the session status and the full snapshot.
func (vm *ViewModel) Load(ctx context.Context) error {
	if err := vm.LoadStatus(ctx); err != nil {
		return err
	}
	snap, err := vm.backend.Snapshot(ctx, "")
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	vm.Dispatch(SetSnapshot{Snapshot: *snap})
	if st := vm.Status(); st != nil && st.State == string(status.Open) {
		vm.Dispatch(MarkReady{})
	}
	return nil
}

// LoadStatus refreshes the session status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.backend.Status(ctx)
	if err != nil {
		return fmt.Errorf("load status: %w", err)
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Watch applies daemon events to the state until ctx is done or the stream fails.
func (vm *ViewModel) Watch(ctx context.Context) error {
	return vm.backend.Watch(ctx, "", func(env *api.Envelope) error {
		vm.Apply(ctx, env)
		return nil
	})
}

// Apply translates one streamed event into state changes. Undecodable payloads are
// reported as notices and otherwise ignored.
func (vm *ViewModel) Apply(ctx context.Context, env *api.Envelope) {
	var err error
	switch env.Kind {
	case bus.KindSync:
		var snap model.Snapshot
		if err = env.Decode(&snap); err == nil {
			vm.Dispatch(SetSnapshot{Snapshot: snap})
		}
	case bus.KindMessages:
		var delta model.Delta
		if err = env.Decode(&delta); err == nil {
			vm.Dispatch(ApplyDelta{Delta: delta})
		}
	case bus.KindChatFlags:
		var chat model.Chat
		if err = env.Decode(&chat); err == nil {
			vm.Dispatch(SetChatFlags{Chat: chat})
		}
	case bus.KindQR:
		var code model.PairingCode
		if err = env.Decode(&code); err == nil {
			vm.Dispatch(ShowQR{Code: code})
		}
	case bus.KindReady:
		vm.Dispatch(MarkReady{})
	case bus.KindError, bus.KindLoggedOut:
		var n model.Notice
		if err = env.Decode(&n); err == nil {
			vm.Dispatch(ShowError{Message: n.Message})
			vm.notify(n.Message)
		}
	case bus.KindStatusChanged:
		err = vm.LoadStatus(ctx)
	}
	if err != nil {
		vm.notify(fmt.Sprintf("%s: %v", env.Kind, err))
	}
}

// OpenChat makes chatID the active chat.
func (vm *ViewModel) OpenChat(chatID string) {
	vm.Dispatch(SetActiveChat{ChatID: chatID})
}

// SendText sends text to the active chat. The message appears once the daemon pushes it.
func (vm *ViewModel) SendText(ctx context.Context, text string) error {
	chatID := vm.State().ActiveChatID
	if chatID == "" {
		return errors.New("no chat open")
	}
	msg, err := vm.backend.SendText(ctx, chatID, text)
	if err != nil {
		return err
	}
	vm.Dispatch(ApplyDelta{Delta: model.Delta{Messages: model.GroupByChat([]model.Message{msg})}})
	return nil
}

// Transcribe requests the transcript of an audio message in the active chat.
func (vm *ViewModel) Transcribe(ctx context.Context, msgID string) (string, error) {
	chatID := vm.State().ActiveChatID
	msg, err := vm.backend.Transcribe(ctx, chatID, msgID)
	if err != nil {
		return "", err
	}
	text := ""
	if a := msg.Audio(); a != nil {
		text = a.TranscribedText
	}
	vm.Dispatch(AttachTranscript{ChatID: chatID, MsgID: msgID, Text: text})
	return text, nil
}

// UpdateChatFlags changes the local metadata of a chat.
func (vm *ViewModel) UpdateChatFlags(ctx context.Context, chatID string, flags model.ChatFlags) error {
	chat, err := vm.backend.SetChatFlags(ctx, chatID, flags)
	if err != nil {
		return err
	}
	vm.Dispatch(SetChatFlags{Chat: chat})
	return nil
}

// ToggleSilenced flips the silenced flag of a chat.
func (vm *ViewModel) ToggleSilenced(ctx context.Context, chatID string) error {
	chat, ok := vm.State().Chat(chatID)
	if !ok {
		return fmt.Errorf("unknown chat %s", chatID)
	}
	return vm.UpdateChatFlags(ctx, chatID, model.ChatFlags{Silenced: model.Flag(!chat.Silenced())})
}

// SetFilter switches the chat list filter.
func (vm *ViewModel) SetFilter(f Filter, tag string) {
	vm.Dispatch(SetFilter{Filter: f, Tag: tag})
}

// Search runs a full-text query, optionally within one chat.
func (vm *ViewModel) Search(ctx context.Context, query, chatID string) ([]index.Hit, error) {
	resp, err := vm.backend.Search(ctx, query, chatID, 50)
	if err != nil {
		return nil, err
	}
	return resp.Hits, nil
}

// Connect asks the daemon to connect, starting QR pairing when unauthenticated.
func (vm *ViewModel) Connect(ctx context.Context) (string, error) {
	ack, err := vm.backend.Connect(ctx)
	if err != nil {
		return "", err
	}
	return ack.Message, nil
}

// Logout unlinks the session.
func (vm *ViewModel) Logout(ctx context.Context) (string, error) {
	ack, err := vm.backend.Logout(ctx)
	if err != nil {
		return "", err
	}
	return ack.Message, nil
}
