package session

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory, mostly for tests and portable installs.
const HomeEnv = "WPPDESK_HOME"

// BaseDir returns ~/.wppdesk, or $WPPDESK_HOME when set.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wppdesk")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// Layout is the user-data directory of one session. Every file the daemon owns lives
// under Root; the JSON store writes chats.json, contacts.json and messages.json directly
// into it.
type Layout struct {
	Root string
}

// For returns the layout of the named session.
func For(name string) Layout {
	return Layout{Root: filepath.Join(BaseDir(), "sessions", name)}
}

// AudioDir holds downloaded voice notes, one <message-id>.ogg per message.
func (l Layout) AudioDir() string { return filepath.Join(l.Root, "audio") }

// AuthDir holds the protocol credentials. It is deleted on logout.
func (l Layout) AuthDir() string { return filepath.Join(l.Root, "auth") }

// SessionDB is the whatsmeow device store inside AuthDir.
func (l Layout) SessionDB() string { return filepath.Join(l.AuthDir(), "session.db") }

// IndexDB is the search index. It can be rebuilt from the JSON store.
func (l Layout) IndexDB() string { return filepath.Join(l.Root, "index.db") }

func (l Layout) SocketPath() string { return filepath.Join(l.Root, "daemon.sock") }
func (l Layout) LockPath() string   { return filepath.Join(l.Root, "LOCK") }
func (l Layout) LogDir() string     { return filepath.Join(l.Root, "logs") }
func (l Layout) LogPath() string    { return filepath.Join(l.LogDir(), "wppd.log") }

// EnsureDirs creates the session directory tree with owner-only permissions.
func (l Layout) EnsureDirs() error {
	for _, d := range []string{l.Root, l.LogDir(), l.AudioDir(), l.AuthDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
