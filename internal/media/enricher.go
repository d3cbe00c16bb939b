// Package media downloads voice notes, serves them under app://audio/ references and
// transcribes them on request.
package media

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/wppdesk/internal/model"
)

// DownloadFailed is returned by DownloadAudio in place of a reference when the download
// did not succeed. It is never stored on a message.
const DownloadFailed = "download failed"

// Downloader fetches and decrypts the media behind an audio descriptor.
type Downloader interface {
	DownloadAudio(ctx context.Context, audio *model.AudioMessage) ([]byte, error)
}

// Enricher attaches local audio files and transcripts to messages.
type Enricher struct {
	lib         *Library
	dl          Downloader
	transcriber Transcriber
	workers     int
	logger      *zap.Logger
}

// NewEnricher wires the pipeline. A nil downloader disables downloads; a nil transcriber
// behaves like Disabled.
func NewEnricher(lib *Library, dl Downloader, tr Transcriber, workers int, logger *zap.Logger) *Enricher {
	if tr == nil {
		tr = Disabled{}
	}
	if workers < 1 {
		workers = 1
	}
	return &Enricher{lib: lib, dl: dl, transcriber: tr, workers: workers, logger: logger}
}

// DownloadAudio stores the audio of msg and returns its app://audio reference, or
// DownloadFailed. Failures are logged, never returned.
func (e *Enricher) DownloadAudio(ctx context.Context, msg model.Message) string {
	audio := msg.Audio()
	if audio == nil || e.dl == nil {
		return DownloadFailed
	}
	id := msg.Key.ID
	if _, err := e.lib.Path(id); err != nil {
		e.logger.Warn("unusable message id for audio file", zap.String("msg_id", id), zap.Error(err))
		return DownloadFailed
	}
	if e.lib.Exists(id) {
		return URL(id)
	}

	data, err := e.dl.DownloadAudio(ctx, audio)
	if err != nil {
		e.logger.Warn("audio download failed",
			zap.String("chat", msg.ChatID()), zap.String("msg_id", id), zap.Error(err))
		return DownloadFailed
	}
	ref, err := e.lib.Write(id, data)
	if err != nil {
		e.logger.Warn("audio write failed", zap.String("msg_id", id), zap.Error(err))
		return DownloadFailed
	}
	e.logger.Debug("audio stored", zap.String("msg_id", id), zap.Int("bytes", len(data)))
	return ref
}

// EnrichBatch downloads the audio of every message that lacks a local file and returns
// the batch with localPath attached where the download worked. It returns only after the
// whole batch has settled. msgs is not modified.
func (e *Enricher) EnrichBatch(ctx context.Context, msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	if e.dl == nil {
		return out
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range out {
		audio := out[i].Audio()
		if audio == nil || audio.LocalPath != "" {
			continue
		}
		g.Go(func() error {
			ref := e.DownloadAudio(ctx, out[i])
			if ref == DownloadFailed {
				return nil
			}
			enriched := out[i].Clone()
			enriched.Message.AudioMessage.LocalPath = ref
			out[i] = enriched
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Transcribe sends the audio behind localRef to the speech-to-text backend. An empty
// result becomes model.NoTranscription. Errors are returned to the caller.
func (e *Enricher) Transcribe(ctx context.Context, localRef string) (string, error) {
	path, err := e.lib.Resolve(localRef)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("audio file for %s: %w", localRef, err)
	}
	text, err := e.transcriber.Transcribe(ctx, path)
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", localRef, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.NoTranscription, nil
	}
	return text, nil
}
