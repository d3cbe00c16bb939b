package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/config"
	"github.com/matheus3301/wppdesk/internal/media"
	"github.com/matheus3301/wppdesk/internal/merge"
	"github.com/matheus3301/wppdesk/internal/model"
	"github.com/matheus3301/wppdesk/internal/store"
	"github.com/matheus3301/wppdesk/internal/wa"
)

// Enricher downloads and transcribes audio. *media.Enricher implements it.
type Enricher interface {
	EnrichBatch(ctx context.Context, msgs []model.Message) []model.Message
	DownloadAudio(ctx context.Context, msg model.Message) string
	Transcribe(ctx context.Context, localRef string) (string, error)
}

// Indexer keeps the search index current. *index.DB implements it.
type Indexer interface {
	IndexMessages(ctx context.Context, msgs map[string][]model.Message) (int, error)
}

// Stats summarizes what the engine has ingested since it started.
type Stats struct {
	HistoryBatches  int       `json:"historyBatches"`
	Upserts         int       `json:"upserts"`
	MessagesMerged  int       `json:"messagesMerged"`
	DroppedChats    int       `json:"droppedChats"`
	DroppedMessages int       `json:"droppedMessages"`
	IgnoredUpserts  int       `json:"ignoredUpserts"`
	LastSyncAt      time.Time `json:"lastSyncAt"`
}

// Engine applies protocol events to the store and pushes the results to renderers.
// It subscribes to "wa." events on the bus and handles them one at a time, so the
// load-merge-save cycle of the store is never interleaved.
type Engine struct {
	store    *store.Store
	enricher Enricher
	index    Indexer
	bus      *bus.Bus
	cfg      config.SyncConfig
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	stats Stats
	ready bool // set between a connection open and the next close
}

// NewEngine creates a new sync engine. enricher and index may be nil.
func NewEngine(st *store.Store, enricher Enricher, index Indexer, b *bus.Bus, cfg config.SyncConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    st,
		enricher: enricher,
		index:    index,
		bus:      b,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start subscribes to inbound WhatsApp events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.SubscribeReliable("wa.", 64)

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.HandleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the event in flight to finish.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

// Stats returns a copy of the ingestion counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// HandleEvent processes one protocol event synchronously.
func (e *Engine) HandleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindConnection:
		u, ok := evt.Payload.(wa.ConnectionUpdate)
		if !ok {
			return
		}
		switch u.State {
		case wa.ConnectionOpen:
			e.handleOpen()
		case wa.ConnectionClose:
			e.mu.Lock()
			e.ready = false
			e.mu.Unlock()
		}
	case bus.KindHistory:
		snap, ok := evt.Payload.(wa.HistorySnapshot)
		if !ok {
			return
		}
		if err := e.IngestHistory(ctx, snap); err != nil {
			e.fail("history sync", err, zap.String("type", snap.SyncType))
		}
	case bus.KindUpsert:
		up, ok := evt.Payload.(wa.Upsert)
		if !ok {
			return
		}
		if _, err := e.IngestUpsert(ctx, up); err != nil {
			e.fail("message upsert", err, zap.Int("count", len(up.Messages)))
		}
	}
}

// handleOpen publishes the full state and ui.ready once per connection. Repeated open
// updates without a close in between are ignored.
func (e *Engine) handleOpen() {
	e.mu.Lock()
	already := e.ready
	e.ready = true
	e.mu.Unlock()
	if already {
		return
	}
	if err := e.publishSnapshot(); err != nil {
		e.fail("initial snapshot", err)
	}
	e.bus.Publish(bus.NewEvent(bus.KindReady, nil))
}

// IngestHistory merges a history snapshot into the store and publishes the full state.
func (e *Engine) IngestHistory(ctx context.Context, snap wa.HistorySnapshot) error {
	chats := snap.Chats
	dropped := 0
	if e.cfg.DropUnnamedChats {
		chats, dropped = namedChats(chats)
	}
	msgs := e.enrich(ctx, snap.Messages)

	if len(chats) > 0 {
		if _, err := e.store.MergeChats(chats); err != nil {
			return fmt.Errorf("merge chats: %w", err)
		}
	}
	if len(snap.Contacts) > 0 {
		if _, err := e.store.MergeContacts(snap.Contacts); err != nil {
			return fmt.Errorf("merge contacts: %w", err)
		}
	}
	grouped := model.GroupByChat(msgs)
	if len(grouped) > 0 {
		merged, err := e.store.MergeMessages(grouped)
		if err != nil {
			return fmt.Errorf("merge messages: %w", err)
		}
		e.reindex(ctx, touchedByChat(merged, grouped))
	}

	e.mu.Lock()
	e.stats.HistoryBatches++
	e.stats.MessagesMerged += len(msgs)
	e.stats.DroppedChats += dropped
	e.stats.LastSyncAt = time.Now()
	e.mu.Unlock()

	e.logger.Info("history snapshot merged",
		zap.String("type", snap.SyncType),
		zap.Int("chats", len(chats)),
		zap.Int("dropped_unnamed_chats", dropped),
		zap.Int("contacts", len(snap.Contacts)),
		zap.Int("messages", len(msgs)),
	)
	return e.publishSnapshot()
}

// IngestUpsert merges live messages and publishes only what changed. Upserts other than
// notify are ignored.
func (e *Engine) IngestUpsert(ctx context.Context, up wa.Upsert) (model.Delta, error) {
	if up.Type != wa.UpsertNotify {
		e.logger.Debug("ignoring non-notify upsert", zap.String("type", string(up.Type)), zap.Int("count", len(up.Messages)))
		e.mu.Lock()
		e.stats.IgnoredUpserts++
		e.mu.Unlock()
		return model.Delta{}, nil
	}

	msgs := up.Messages
	dropped := 0
	if e.cfg.DropUnsupportedMessages {
		msgs, dropped = supportedMessages(msgs)
	}
	if dropped > 0 {
		e.logger.Debug("dropped unsupported messages", zap.Int("count", dropped))
	}
	if len(msgs) == 0 {
		e.mu.Lock()
		e.stats.DroppedMessages += dropped
		e.mu.Unlock()
		return model.Delta{}, nil
	}

	msgs = e.enrich(ctx, msgs)
	grouped := model.GroupByChat(msgs)
	merged, err := e.store.MergeMessages(grouped)
	if err != nil {
		return model.Delta{}, fmt.Errorf("merge messages: %w", err)
	}
	delta := model.Delta{Messages: touchedByChat(merged, grouped)}

	stubs, err := e.chatStubs(grouped)
	if err != nil {
		return model.Delta{}, err
	}
	if len(stubs) > 0 {
		all, err := e.store.MergeChats(stubs)
		if err != nil {
			return model.Delta{}, fmt.Errorf("merge chat stubs: %w", err)
		}
		delta.Chats = pickChats(all, stubs)
	}
	e.reindex(ctx, delta.Messages)

	e.mu.Lock()
	e.stats.Upserts++
	e.stats.MessagesMerged += len(msgs)
	e.stats.DroppedMessages += dropped
	e.stats.LastSyncAt = time.Now()
	e.mu.Unlock()

	e.bus.Publish(bus.NewEvent(bus.KindMessages, delta))
	return delta, nil
}

// Transcribe attaches a transcript to a stored audio message, downloading the audio
// first when it is not on disk yet. A message that already has a transcript is returned
// unchanged.
func (e *Engine) Transcribe(ctx context.Context, chatID, msgID string) (model.Message, error) {
	if e.enricher == nil {
		return model.Message{}, fmt.Errorf("transcribe %s: no media pipeline", msgID)
	}
	msg, err := e.store.Message(chatID, msgID)
	if err != nil {
		return model.Message{}, err
	}
	audio := msg.Audio()
	if audio == nil {
		return model.Message{}, fmt.Errorf("message %s has no audio", msgID)
	}
	if audio.TranscribedText != "" {
		return msg, nil
	}

	ref := audio.LocalPath
	if ref == "" {
		if ref = e.enricher.DownloadAudio(ctx, msg); ref == media.DownloadFailed {
			return model.Message{}, fmt.Errorf("message %s: audio %s", msgID, media.DownloadFailed)
		}
	}
	text, err := e.enricher.Transcribe(ctx, ref)
	if err != nil {
		return model.Message{}, err
	}

	updated := msg.Clone()
	updated.Message.AudioMessage.LocalPath = ref
	updated.Message.AudioMessage.TranscribedText = text
	incoming := map[string][]model.Message{chatID: {updated}}
	merged, err := e.store.MergeMessages(incoming)
	if err != nil {
		return model.Message{}, fmt.Errorf("store transcript: %w", err)
	}
	delta := model.Delta{Messages: touchedByChat(merged, incoming)}
	e.reindex(ctx, delta.Messages)
	e.bus.Publish(bus.NewEvent(bus.KindMessages, delta))
	return delta.Messages[chatID][0], nil
}

// SetChatFlags updates the local tag and flags of a chat and notifies renderers.
func (e *Engine) SetChatFlags(chatID string, flags model.ChatFlags) (model.Chat, error) {
	chat, err := e.store.SetChatFlags(chatID, flags)
	if err != nil {
		return model.Chat{}, err
	}
	e.bus.Publish(bus.NewEvent(bus.KindChatFlags, chat))
	return chat, nil
}

// RecordSent stores a message this client just sent and pushes it as a delta.
func (e *Engine) RecordSent(ctx context.Context, msg model.Message) (model.Delta, error) {
	return e.IngestUpsert(ctx, wa.Upsert{Type: wa.UpsertNotify, Messages: []model.Message{msg}})
}

func (e *Engine) publishSnapshot() error {
	snap, err := e.store.Snapshot()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	e.bus.Publish(bus.NewEvent(bus.KindSync, snap))
	return nil
}

func (e *Engine) enrich(ctx context.Context, msgs []model.Message) []model.Message {
	if e.enricher == nil || !e.cfg.DownloadAudio {
		return msgs
	}
	return e.enricher.EnrichBatch(ctx, msgs)
}

func (e *Engine) reindex(ctx context.Context, msgs map[string][]model.Message) {
	if e.index == nil || len(msgs) == 0 {
		return
	}
	if _, err := e.index.IndexMessages(ctx, msgs); err != nil {
		e.logger.Warn("search index update failed", zap.Error(err))
	}
}

// chatStubs returns a minimal chat for every chat in grouped that is unknown or whose
// conversation timestamp is older than its newest incoming message.
func (e *Engine) chatStubs(grouped map[string][]model.Message) ([]model.Chat, error) {
	chats, err := e.store.LoadChats()
	if err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}
	known := make(map[string]model.Timestamp, len(chats))
	for _, c := range chats {
		known[c.ID] = c.ConversationTimestamp
	}
	var stubs []model.Chat
	for chatID, msgs := range grouped {
		newest := model.Timestamp(0)
		for _, m := range msgs {
			newest = max(newest, m.MessageTimestamp)
		}
		if ts, ok := known[chatID]; ok && ts >= newest {
			continue
		}
		stubs = append(stubs, model.Chat{ID: chatID, ConversationTimestamp: newest})
	}
	return stubs, nil
}

func (e *Engine) fail(what string, err error, fields ...zap.Field) {
	e.logger.Error(what+" failed", append(fields, zap.Error(err))...)
	e.bus.Publish(bus.NewEvent(bus.KindError, model.Notice{Message: what + " failed: " + err.Error()}))
}

func namedChats(chats []model.Chat) ([]model.Chat, int) {
	out := make([]model.Chat, 0, len(chats))
	for _, c := range chats {
		if c.HasName() {
			out = append(out, c)
		}
	}
	return out, len(chats) - len(out)
}

func supportedMessages(msgs []model.Message) ([]model.Message, int) {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsSupported() {
			out = append(out, m)
		}
	}
	return out, len(msgs) - len(out)
}

func touchedByChat(merged, incoming map[string][]model.Message) map[string][]model.Message {
	out := make(map[string][]model.Message, len(incoming))
	for chatID, in := range incoming {
		if t := merge.Touched(merged[chatID], in); len(t) > 0 {
			out[chatID] = t
		}
	}
	return out
}

func pickChats(all, wanted []model.Chat) []model.Chat {
	ids := make(map[string]struct{}, len(wanted))
	for _, c := range wanted {
		ids[c.ID] = struct{}{}
	}
	var out []model.Chat
	for _, c := range all {
		if _, ok := ids[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}
