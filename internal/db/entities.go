package db

import "time"

type (
	// ArchivedMessage is one observed chat message from a non-suppressed sender.
	ArchivedMessage struct {
		ChatID     int64     `db:"chat_id"`
		UserID     int64     `db:"user_id"`
		Username   string    `db:"username"`
		MessageID  int       `db:"message_id"`
		Text       string    `db:"text"`
		InsertedAt time.Time `db:"inserted_at"`
	}

	// BannedUser is a durable suppression with an expiry, survives restarts.
	BannedUser struct {
		UserID   int64     `db:"user_id"`
		Username string    `db:"username"`
		BanEndAt time.Time `db:"ban_end_at"`
	}

	// KnownUser maps usernames to numeric ids for command targets given as @username.
	KnownUser struct {
		UserID   int64     `db:"user_id"`
		Username string    `db:"username"`
		LastSeen time.Time `db:"last_seen"`
	}

	// MessageRef identifies a live chat message for deferred deletion.
	MessageRef struct {
		ChatID    int64 `db:"chat_id"`
		MessageID int   `db:"message_id"`
	}
)
