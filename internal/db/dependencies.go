package db

import (
	"context"
	"time"
)

type Client interface {
	Close() error

	// Archive
	InsertMessage(ctx context.Context, msg *ArchivedMessage) error
	PurgeUserMessages(ctx context.Context, userID int64, chatID int64) (int64, error)
	SearchUserMessages(ctx context.Context, authorID int64, patterns []string, limit int) ([]string, error)
	ListUserMessageRefs(ctx context.Context, userID int64) ([]MessageRef, error)

	// Bans
	UpsertBan(ctx context.Context, ban *BannedUser) error
	GetBan(ctx context.Context, userID int64) (*BannedUser, error)
	DeleteBan(ctx context.Context, userID int64) error
	DeleteExpiredBans(ctx context.Context, now time.Time) (int64, error)

	// Known users
	UpsertKnownUser(ctx context.Context, user *KnownUser) error
	GetKnownUserByUsername(ctx context.Context, username string) (*KnownUser, error)
}
