package sqlite

import (
	"context"
	"strings"

	"github.com/iamwavecut/tool"

	"github.com/evocoder/mimicbot/internal/db"
)

func (c *sqliteClient) InsertMessage(ctx context.Context, msg *db.ArchivedMessage) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// SQLite's built-in LOWER() folds ASCII only, so case folding for search
	// happens here, into a shadow column.
	row := struct {
		*db.ArchivedMessage
		TextLower string `db:"text_lower"`
	}{msg, strings.ToLower(msg.Text)}

	query := `
		INSERT INTO messages (chat_id, user_id, username, message_id, text, text_lower, inserted_at)
		VALUES (:chat_id, :user_id, :username, :message_id, :text, :text_lower, :inserted_at)
		ON CONFLICT(chat_id, message_id) DO UPDATE SET
			text = excluded.text,
			text_lower = excluded.text_lower,
			inserted_at = excluded.inserted_at
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, row))
}

func (c *sqliteClient) PurgeUserMessages(ctx context.Context, userID int64, chatID int64) (int64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `DELETE FROM messages WHERE user_id = ?`
	args := []any{userID}
	if chatID != 0 {
		query += ` AND chat_id = ?`
		args = append(args, chatID)
	}
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *sqliteClient) SearchUserMessages(ctx context.Context, authorID int64, patterns []string, limit int) ([]string, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if len(patterns) == 0 {
		return nil, nil
	}

	conditions := make([]string, 0, len(patterns))
	args := []any{authorID}
	for _, pattern := range patterns {
		conditions = append(conditions, "text_lower LIKE ?")
		args = append(args, "%"+strings.ToLower(pattern)+"%")
	}
	args = append(args, limit)

	query := `
		SELECT text FROM messages
		WHERE user_id = ? AND (` + strings.Join(conditions, " OR ") + `)
		ORDER BY inserted_at ASC
		LIMIT ?
	`
	var texts []string
	err := c.db.SelectContext(ctx, &texts, query, args...)
	return texts, err
}

func (c *sqliteClient) ListUserMessageRefs(ctx context.Context, userID int64) ([]db.MessageRef, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var refs []db.MessageRef
	err := c.db.SelectContext(ctx, &refs, `
		SELECT chat_id, message_id FROM messages WHERE user_id = ?
	`, userID)
	return refs, err
}
