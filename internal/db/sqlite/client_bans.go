package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iamwavecut/tool"

	"github.com/evocoder/mimicbot/internal/db"
)

func (c *sqliteClient) UpsertBan(ctx context.Context, ban *db.BannedUser) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO banned_users (user_id, username, ban_end_at)
		VALUES (:user_id, :username, :ban_end_at)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			ban_end_at = excluded.ban_end_at
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, ban))
}

func (c *sqliteClient) GetBan(ctx context.Context, userID int64) (*db.BannedUser, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var ban db.BannedUser
	err := c.db.GetContext(ctx, &ban, `
		SELECT user_id, username, ban_end_at FROM banned_users WHERE user_id = ?
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ban, nil
}

func (c *sqliteClient) DeleteBan(ctx context.Context, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM banned_users WHERE user_id = ?`, userID)
	return err
}

func (c *sqliteClient) DeleteExpiredBans(ctx context.Context, now time.Time) (int64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `DELETE FROM banned_users WHERE ban_end_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
