package model

import (
	"cmp"
	"slices"
	"strings"

	"github.com/matheus3301/wppdesk/internal/merge"
	"github.com/matheus3301/wppdesk/internal/model"
)

// Filter selects which chats the conversation list shows.
type Filter string

const (
	FilterInbox    Filter = "inbox"
	FilterUnreads  Filter = "unreads"
	FilterSilenced Filter = "silenced"
)

// ParseFilter maps user input to a Filter. ok is false for unknown names.
func ParseFilter(s string) (f Filter, ok bool) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case FilterInbox, "":
		return FilterInbox, true
	case FilterUnreads, "unread":
		return FilterUnreads, true
	case FilterSilenced, "silent":
		return FilterSilenced, true
	}
	return "", false
}

// State is the renderer's in-memory copy of the daemon's data plus view selection.
// Reduce never modifies a State in place; treat values as immutable.
type State struct {
	Chats        []model.Chat
	Contacts     []model.Contact
	Messages     map[string][]model.Message
	ActiveChatID string
	Filter       Filter
	InboxTag     string // "" shows every chat in the inbox
	QR           *model.PairingCode
	Ready        bool
	Err          string
}

// NewState returns an empty state showing the whole inbox.
func NewState() State {
	return State{Filter: FilterInbox, Messages: map[string][]model.Message{}}
}

// Action is a state transition understood by Reduce.
type Action interface{ action() }

type (
	// SetSnapshot replaces the collections with a full daemon snapshot.
	SetSnapshot struct{ Snapshot model.Snapshot }
	// ApplyDelta merges a live delta into the collections.
	ApplyDelta struct{ Delta model.Delta }
	// SetActiveChat opens a chat. An empty id closes the active one.
	SetActiveChat struct{ ChatID string }
	// SetFilter switches the chat list filter. Tag applies to FilterInbox only.
	SetFilter struct {
		Filter Filter
		Tag    string
	}
	// SetChatFlags replaces the local metadata of a chat with the daemon's copy.
	SetChatFlags struct{ Chat model.Chat }
	// AttachTranscript records the transcript of one audio message.
	AttachTranscript struct {
		ChatID string
		MsgID  string
		Text   string
	}
	// ShowQR displays a pairing code.
	ShowQR struct{ Code model.PairingCode }
	// MarkReady notes that the session is connected and synced.
	MarkReady struct{}
	// ShowError displays a notification.
	ShowError struct{ Message string }
)

func (SetSnapshot) action()      {}
func (ApplyDelta) action()       {}
func (SetActiveChat) action()    {}
func (SetFilter) action()        {}
func (SetChatFlags) action()     {}
func (AttachTranscript) action() {}
func (ShowQR) action()           {}
func (MarkReady) action()        {}
func (ShowError) action()        {}

// Reduce returns the state that results from applying a to s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetSnapshot:
		s.Chats = slices.Clone(a.Snapshot.Chats)
		s.Contacts = slices.Clone(a.Snapshot.Contacts)
		s.Messages = merge.MessagesByChat(nil, a.Snapshot.Messages)
		if s.ActiveChatID != "" && s.chat(s.ActiveChatID) == nil {
			s.ActiveChatID = ""
		}

	case ApplyDelta:
		s.Chats = merge.Chats(s.Chats, a.Delta.Chats)
		s.Messages = merge.MessagesByChat(s.Messages, a.Delta.Messages)

	case SetActiveChat:
		s.ActiveChatID = a.ChatID

	case SetFilter:
		s.Filter = a.Filter
		if s.Filter == "" {
			s.Filter = FilterInbox
		}
		s.InboxTag = ""
		if s.Filter == FilterInbox {
			s.InboxTag = strings.TrimSpace(a.Tag)
		}

	case SetChatFlags:
		i := slices.IndexFunc(s.Chats, func(c model.Chat) bool { return c.ID == a.Chat.ID })
		if i < 0 {
			s.Chats = append(slices.Clone(s.Chats), a.Chat)
			break
		}
		chats := slices.Clone(s.Chats)
		chats[i].Tag = a.Chat.Tag
		chats[i].IsSilenced = a.Chat.IsSilenced
		chats[i].IsUnread = a.Chat.IsUnread
		s.Chats = chats

	case AttachTranscript:
		msgs := s.Messages[a.ChatID]
		i := slices.IndexFunc(msgs, func(m model.Message) bool { return m.Key.ID == a.MsgID })
		if i < 0 || msgs[i].Audio() == nil {
			break
		}
		updated := msgs[i].Clone()
		updated.Message.AudioMessage.TranscribedText = a.Text
		s.Messages = merge.MessagesByChat(s.Messages, map[string][]model.Message{a.ChatID: {updated}})

	case ShowQR:
		code := a.Code
		s.QR = &code
		s.Ready = false

	case MarkReady:
		s.QR = nil
		s.Ready = true
		s.Err = ""

	case ShowError:
		s.Err = a.Message
	}
	return s
}

// FilteredChats returns the chats the list should show, most recent first.
func (s State) FilteredChats() []model.Chat {
	var out []model.Chat
	for _, c := range s.Chats {
		switch s.Filter {
		case FilterUnreads:
			if !c.Unread() {
				continue
			}
		case FilterSilenced:
			if !c.Silenced() {
				continue
			}
		default:
			if s.InboxTag != "" && !strings.EqualFold(c.Tag, s.InboxTag) {
				continue
			}
		}
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b model.Chat) int {
		return cmp.Compare(b.ConversationTimestamp.Unix(), a.ConversationTimestamp.Unix())
	})
	return out
}

// ActiveMessages returns the open chat's messages oldest first.
func (s State) ActiveMessages() []model.Message {
	msgs := slices.Clone(s.Messages[s.ActiveChatID])
	slices.Reverse(msgs)
	return msgs
}

// DisplayName picks the best label for a chat: its own name, then the contact's, then
// the phone number part of the id.
func (s State) DisplayName(chatID string) string {
	if c := s.chat(chatID); c != nil && c.HasName() {
		return c.Name
	}
	for _, c := range s.Contacts {
		if c.ID == chatID {
			if name := c.DisplayName(); name != "" {
				return name
			}
			break
		}
	}
	user, _, _ := strings.Cut(chatID, "@")
	return user
}

// MoveSelection returns the id of the chat delta positions away from the active one in
// the filtered list, clamped to its ends. Without an active chat, moving down starts at
// the top and moving up starts at the bottom. It returns "" when the list is empty.
func (s State) MoveSelection(delta int) string {
	chats := s.FilteredChats()
	if len(chats) == 0 {
		return ""
	}
	i := slices.IndexFunc(chats, func(c model.Chat) bool { return c.ID == s.ActiveChatID })
	switch {
	case i < 0 && delta >= 0:
		return chats[0].ID
	case i < 0:
		return chats[len(chats)-1].ID
	}
	return chats[max(0, min(len(chats)-1, i+delta))].ID
}

// Tags lists the distinct chat tags in first-seen order.
func (s State) Tags() []string {
	var tags []string
	for _, c := range s.Chats {
		if c.Tag != "" && !slices.ContainsFunc(tags, func(t string) bool { return strings.EqualFold(t, c.Tag) }) {
			tags = append(tags, c.Tag)
		}
	}
	return tags
}

// Chat returns the chat with the given id.
func (s State) Chat(id string) (model.Chat, bool) {
	if c := s.chat(id); c != nil {
		return *c, true
	}
	return model.Chat{}, false
}

func (s State) chat(id string) *model.Chat {
	for i := range s.Chats {
		if s.Chats[i].ID == id {
			return &s.Chats[i]
		}
	}
	return nil
}
