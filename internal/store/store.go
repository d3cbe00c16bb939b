// Package store persists chats, contacts and messages as three JSON documents in the
// session's user-data directory.
//
// Each file is rewritten in full on every save, through a temporary file and a rename, so
// a reader never sees a half-written document. The three files are not written as one
// transaction: a crash between two saves can leave, say, messages.json ahead of
// chats.json. Every later merge heals that, since merges are idempotent.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/matheus3301/wppdesk/internal/merge"
	"github.com/matheus3301/wppdesk/internal/model"
)

const (
	ChatsFile    = "chats.json"
	ContactsFile = "contacts.json"
	MessagesFile = "messages.json"
)

var (
	// ErrNotFound is returned when a chat or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCorrupt wraps decode failures. A corrupt file is never overwritten.
	ErrCorrupt = errors.New("corrupt store file")
)

// Store reads and writes the JSON documents. It is safe for concurrent use; the load,
// merge and save of one Merge call happen under a single lock.
type Store struct {
	dir string
	mu  sync.Mutex
}

// Open returns a store rooted at dir, creating the directory when needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory holding the documents.
func (s *Store) Dir() string { return s.dir }

// LoadChats returns the stored chats, or none when the file does not exist yet.
func (s *Store) LoadChats() ([]model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadChats()
}

// LoadContacts returns the stored contacts.
func (s *Store) LoadContacts() ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadContacts()
}

// LoadMessages returns messages grouped by chat id, each chat sorted newest first.
func (s *Store) LoadMessages() (map[string][]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMessages()
}

// SaveChats replaces chats.json with chats.
func (s *Store) SaveChats(chats []model.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ChatsFile, chats)
}

// SaveContacts replaces contacts.json with contacts.
func (s *Store) SaveContacts(contacts []model.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ContactsFile, contacts)
}

// SaveMessages replaces messages.json with msgs.
func (s *Store) SaveMessages(msgs map[string][]model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(MessagesFile, msgs)
}

// MergeChats merges incoming into the stored chats, saves and returns the result.
func (s *Store) MergeChats(incoming []model.Chat) ([]model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.loadChats()
	if err != nil {
		return nil, err
	}
	merged := merge.Chats(existing, incoming)
	if err := s.write(ChatsFile, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// MergeContacts merges incoming into the stored contacts, saves and returns the result.
func (s *Store) MergeContacts(incoming []model.Contact) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.loadContacts()
	if err != nil {
		return nil, err
	}
	merged := merge.Contacts(existing, incoming)
	if err := s.write(ContactsFile, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// MergeMessages merges incoming (grouped by chat) into the stored messages, saves and
// returns the full merged map.
func (s *Store) MergeMessages(incoming map[string][]model.Message) (map[string][]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.loadMessages()
	if err != nil {
		return nil, err
	}
	merged := merge.MessagesByChat(existing, incoming)
	if err := s.write(MessagesFile, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// SetChatFlags applies a local metadata update to an existing chat.
func (s *Store) SetChatFlags(chatID string, flags model.ChatFlags) (model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chats, err := s.loadChats()
	if err != nil {
		return model.Chat{}, err
	}
	for i := range chats {
		if chats[i].ID != chatID {
			continue
		}
		chats[i] = flags.Apply(chats[i])
		if err := s.write(ChatsFile, chats); err != nil {
			return model.Chat{}, err
		}
		return chats[i], nil
	}
	return model.Chat{}, fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
}

// Message returns one stored message.
func (s *Store) Message(chatID, msgID string) (model.Message, error) {
	msgs, err := s.LoadMessages()
	if err != nil {
		return model.Message{}, err
	}
	for _, m := range msgs[chatID] {
		if m.Key.ID == msgID {
			return m, nil
		}
	}
	return model.Message{}, fmt.Errorf("message %s/%s: %w", chatID, msgID, ErrNotFound)
}

// Snapshot loads all three documents.
func (s *Store) Snapshot() (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snap model.Snapshot
	var err error
	if snap.Chats, err = s.loadChats(); err != nil {
		return snap, err
	}
	if snap.Contacts, err = s.loadContacts(); err != nil {
		return snap, err
	}
	if snap.Messages, err = s.loadMessages(); err != nil {
		return snap, err
	}
	return snap, nil
}

// Counts reports how many chats, contacts and messages are stored.
type Counts struct {
	Chats    int
	Contacts int
	Messages int
}

// Counts loads the documents and counts their entries.
func (s *Store) Counts() (Counts, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return Counts{}, err
	}
	c := Counts{Chats: len(snap.Chats), Contacts: len(snap.Contacts)}
	for _, msgs := range snap.Messages {
		c.Messages += len(msgs)
	}
	return c, nil
}

func (s *Store) loadChats() ([]model.Chat, error) {
	var chats []model.Chat
	if err := s.read(ChatsFile, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (s *Store) loadContacts() ([]model.Contact, error) {
	var contacts []model.Contact
	if err := s.read(ContactsFile, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (s *Store) loadMessages() (map[string][]model.Message, error) {
	msgs := make(map[string][]model.Message)
	if err := s.read(MessagesFile, &msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = make(map[string][]model.Message)
	}
	for _, list := range msgs {
		merge.SortMessages(list)
	}
	return msgs, nil
}

// read decodes name into v. A missing or empty file leaves v untouched.
func (s *Store) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w %s: %v", ErrCorrupt, name, err)
	}
	return nil
}

// write replaces name with the JSON encoding of v via a temp file and rename.
func (s *Store) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
