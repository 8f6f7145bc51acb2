package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iamwavecut/tool"

	"github.com/evocoder/mimicbot/internal/db"
)

func (c *sqliteClient) UpsertKnownUser(ctx context.Context, user *db.KnownUser) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO known_users (user_id, username, last_seen)
		VALUES (:user_id, :username, :last_seen)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			last_seen = excluded.last_seen
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, user))
}

func (c *sqliteClient) GetKnownUserByUsername(ctx context.Context, username string) (*db.KnownUser, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var user db.KnownUser
	err := c.db.GetContext(ctx, &user, `
		SELECT user_id, username, last_seen FROM known_users
		WHERE username = ? COLLATE NOCASE
		ORDER BY last_seen DESC
		LIMIT 1
	`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
