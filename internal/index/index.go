package index

import (
	"context"
	"fmt"

	"github.com/matheus3301/wppdesk/internal/model"
)

// IndexMessages upserts the searchable text of msgs. Messages without text or transcript
// are skipped. Re-indexing the same message replaces its row.
func (db *DB) IndexMessages(ctx context.Context, msgs map[string][]model.Message) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (chat_id, msg_id, sender, from_me, body, transcript, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, msg_id) DO UPDATE SET
			sender = excluded.sender,
			body = excluded.body,
			transcript = excluded.transcript,
			timestamp = excluded.timestamp`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	n := 0
	for chatID, list := range msgs {
		for _, m := range list {
			body, transcript := searchableText(m)
			if m.Key.ID == "" || (body == "" && transcript == "") {
				continue
			}
			sender := m.Key.Participant
			if sender == "" && !m.Key.FromMe {
				sender = chatID
			}
			if _, err := stmt.ExecContext(ctx, chatID, m.Key.ID, sender, m.Key.FromMe, body, transcript, m.MessageTimestamp.Unix()); err != nil {
				return n, fmt.Errorf("index %s/%s: %w", chatID, m.Key.ID, err)
			}
			n++
		}
	}
	return n, tx.Commit()
}

// Rebuild clears the index and indexes every message in msgs.
func (db *DB) Rebuild(ctx context.Context, msgs map[string][]model.Message) (int, error) {
	if _, err := db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}
	return db.IndexMessages(ctx, msgs)
}

// Count returns the number of indexed messages.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

func searchableText(m model.Message) (body, transcript string) {
	body = m.Text()
	if a := m.Audio(); a != nil && a.TranscribedText != model.NoTranscription {
		transcript = a.TranscribedText
	}
	return body, transcript
}
