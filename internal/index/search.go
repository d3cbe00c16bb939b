package index

import "context"

// Hit is one search result.
type Hit struct {
	ChatID    string `json:"chatId"`
	MsgID     string `json:"msgId"`
	Sender    string `json:"sender,omitempty"`
	FromMe    bool   `json:"fromMe"`
	Body      string `json:"body,omitempty"`
	Snippet   string `json:"snippet"`
	Timestamp int64  `json:"timestamp"`
}

// Search runs a full-text query over message text and transcripts, newest first.
// chatID restricts results to one chat when non-empty.
func (db *DB) Search(ctx context.Context, query, chatID string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.chat_id, m.msg_id, m.sender, m.from_me, m.body, m.timestamp,
		       snippet(messages_fts, '<<', '>>', '...', -1, 16)
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.docid
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if chatID != "" {
		q += " AND m.chat_id = ?"
		args = append(args, chatID)
	}
	q += " ORDER BY m.timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ChatID, &h.MsgID, &h.Sender, &h.FromMe, &h.Body, &h.Timestamp, &h.Snippet); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
