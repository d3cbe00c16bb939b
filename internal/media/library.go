package media

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// URLScheme prefixes local references handed to renderers.
const URLScheme = "app://"

var (
	// ErrUnknownURL is returned for references outside the app://audio/ namespace.
	ErrUnknownURL = errors.New("not an app://audio reference")
	// ErrOutsideAudioDir is returned when a reference would resolve outside the audio
	// directory.
	ErrOutsideAudioDir = errors.New("path escapes audio directory")
)

// Library owns the directory of downloaded voice notes. A message id maps to exactly one
// file, <id>.ogg, so downloading twice overwrites instead of duplicating.
type Library struct {
	dir string
}

// NewLibrary creates the audio directory if needed.
func NewLibrary(dir string) (*Library, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &Library{dir: dir}, nil
}

// Dir returns the audio directory.
func (l *Library) Dir() string { return l.dir }

// Path returns the file for a message id.
func (l *Library) Path(msgID string) (string, error) {
	return l.fileFor(msgID + ".ogg")
}

// URL returns the renderer-facing reference for a message id.
func URL(msgID string) string {
	return URLScheme + "audio/" + msgID + ".ogg"
}

// Resolve maps an app://audio/<name> reference to a file inside the audio directory.
func (l *Library) Resolve(ref string) (string, error) {
	rest, ok := strings.CutPrefix(ref, URLScheme)
	if !ok {
		return "", fmt.Errorf("%q: %w", ref, ErrUnknownURL)
	}
	name, ok := strings.CutPrefix(rest, "audio/")
	if !ok {
		return "", fmt.Errorf("%q: %w", ref, ErrUnknownURL)
	}
	return l.fileFor(name)
}

// Exists reports whether audio for msgID was already downloaded.
func (l *Library) Exists(msgID string) bool {
	path, err := l.Path(msgID)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Write stores data as the audio of msgID and returns its reference. The file appears
// atomically, so an existing file is always complete.
func (l *Library) Write(msgID string, data []byte) (string, error) {
	path, err := l.Path(msgID)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(l.dir, ".download-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", err
	}
	return URL(msgID), nil
}

// Routes mounts GET /audio/{name} so renderers can play app://audio/<name> references
// over HTTP.
func (l *Library) Routes(r chi.Router) {
	r.Get("/audio/{name}", func(w http.ResponseWriter, req *http.Request) {
		path, err := l.fileFor(chi.URLParam(req, "name"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "audio/ogg")
		http.ServeFile(w, req, path)
	})
}

func (l *Library) fileFor(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%q: %w", name, ErrOutsideAudioDir)
	}
	path := filepath.Join(l.dir, name)
	rel, err := filepath.Rel(l.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%q: %w", name, ErrOutsideAudioDir)
	}
	return path, nil
}
