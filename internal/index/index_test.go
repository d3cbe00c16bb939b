package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/matheus3301/wppdesk/internal/model"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenAndMigrate(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func audioWithTranscript(chat, id string, ts int64, text string) model.Message {
	return model.Message{
		Key:              model.MessageKey{RemoteJID: chat, ID: id},
		Message:          &model.MessageContent{AudioMessage: &model.AudioMessage{TranscribedText: text}},
		MessageTimestamp: model.Timestamp(ts),
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	mig, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if mig.Stale() {
		t.Errorf("second Migrate() = %+v, want no change", mig)
	}
	if mig.To != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", mig.To)
	}
}

func TestMigrateFreshIndexIsStale(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mig, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if mig.From != 0 || mig.To != 2 || !mig.Stale() {
		t.Errorf("Migrate() = %+v, want 0 -> 2", mig)
	}
}

func TestIndexAndSearch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	n, err := db.IndexMessages(ctx, map[string][]model.Message{
		"A@x": {
			model.TextMessage("A@x", "m1", false, 1000, "hello world"),
			model.TextMessage("A@x", "m2", true, 2000, "goodbye world"),
			{Key: model.MessageKey{RemoteJID: "A@x", ID: "sticker"}},
		},
		"B@x": {audioWithTranscript("B@x", "m3", 3000, "hello from a voice note")},
	})
	if err != nil {
		t.Fatalf("IndexMessages() error = %v", err)
	}
	if n != 3 {
		t.Errorf("indexed %d messages, want 3 (content-less skipped)", n)
	}

	hits, err := db.Search(ctx, "hello", "", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].MsgID != "m3" || hits[1].MsgID != "m1" {
		t.Errorf("hits = %+v, want m3 then m1 (newest first)", hits)
	}
	if hits[0].Snippet == "" {
		t.Error("hit has no snippet")
	}

	scoped, err := db.Search(ctx, "hello", "A@x", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].ChatID != "A@x" {
		t.Errorf("scoped hits = %+v", scoped)
	}
}

func TestReindexReplacesRow(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	msgs := map[string][]model.Message{"A@x": {audioWithTranscript("A@x", "m3", 3000, "")}}
	msgs["A@x"][0].Message.Conversation = "voice"
	if _, err := db.IndexMessages(ctx, msgs); err != nil {
		t.Fatal(err)
	}
	msgs["A@x"][0].Message.AudioMessage.TranscribedText = "buenos dias"
	if _, err := db.IndexMessages(ctx, msgs); err != nil {
		t.Fatal(err)
	}

	count, err := db.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
	hits, err := db.Search(ctx, "buenos", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits for updated transcript, want 1", len(hits))
	}
}

func TestNoTranscriptionSentinelNotIndexed(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	n, err := db.IndexMessages(ctx, map[string][]model.Message{
		"A@x": {audioWithTranscript("A@x", "m3", 3000, model.NoTranscription)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("indexed %d, want 0 for sentinel transcript", n)
	}
}

func TestRebuild(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.IndexMessages(ctx, map[string][]model.Message{
		"A@x": {model.TextMessage("A@x", "old", false, 1, "stale text")},
	}); err != nil {
		t.Fatal(err)
	}
	n, err := db.Rebuild(ctx, map[string][]model.Message{
		"A@x": {model.TextMessage("A@x", "new", false, 2, "fresh text")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Rebuild() = %d, want 1", n)
	}
	hits, _ := db.Search(ctx, "stale", "", 10)
	if len(hits) != 0 {
		t.Errorf("stale row survived rebuild: %+v", hits)
	}
}
