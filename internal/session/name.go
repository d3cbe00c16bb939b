package session

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/matheus3301/wppdesk/internal/config"
)

const (
	// DefaultName is used when neither a flag, the environment nor the config names a session.
	DefaultName = "main"
	// NameEnv selects the session when no --session flag is given.
	NameEnv = "WPPDESK_SESSION"
)

// ErrInvalidName is returned for names that cannot be used as a directory under sessions/.
var ErrInvalidName = errors.New("invalid session name")

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// CheckName reports whether name is a usable session name: lowercase letters, digits,
// '-' and '_', starting with a letter or digit, at most 64 characters.
func CheckName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w %q", ErrInvalidName, name)
	}
	return nil
}

// Name picks the session to operate on. The flag wins, then $WPPDESK_SESSION, then
// default_session from config.toml, then DefaultName. The result is validated.
func Name(flag string) (string, error) {
	name := flag
	if name == "" {
		name = os.Getenv(NameEnv)
	}
	if name == "" {
		if cfg, err := config.Load(ConfigPath()); err == nil {
			name = cfg.DefaultSession
		}
	}
	if name == "" {
		name = DefaultName
	}
	return name, CheckName(name)
}
