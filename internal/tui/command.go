package tui

import (
	"strconv"
	"strings"
)

// Command is a parsed ":" command line.
type Command struct {
	Name string
	Args string
}

var aliases = map[string]string{
	"q":  "quit",
	"h":  "help",
	"s":  "search",
	"j":  "down",
	"k":  "up",
	"tr": "transcribe",
}

// ParseCommand parses a command line without the leading ':'. Names are case-insensitive
// and short aliases are expanded.
func ParseCommand(input string) Command {
	name, args, _ := strings.Cut(strings.TrimSpace(input), " ")
	name = strings.ToLower(name)
	if full, ok := aliases[name]; ok {
		name = full
	}
	return Command{Name: name, Args: strings.TrimSpace(args)}
}

// Count returns the numeric argument, or def when there is none. ok is false when the
// argument is not a positive number.
func (c Command) Count(def int) (n int, ok bool) {
	if c.Args == "" {
		return def, true
	}
	n, err := strconv.Atoi(c.Args)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
