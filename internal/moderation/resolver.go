package moderation

import (
	"context"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/evocoder/mimicbot/internal/db"
	mberrors "github.com/evocoder/mimicbot/internal/errors"
)

type knownUserStore interface {
	GetKnownUserByUsername(ctx context.Context, username string) (*db.KnownUser, error)
}

// Target is a resolved moderation command target.
type Target struct {
	UserID   int64
	Username string
}

// ResolveTarget picks the command target: the replied-to author, then an
// @username argument resolved against known users, then the caller themselves.
func ResolveTarget(ctx context.Context, store knownUserStore, msg *api.Message, caller *api.User) (*Target, error) {
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		from := msg.ReplyToMessage.From
		return &Target{UserID: from.ID, Username: from.UserName}, nil
	}

	if username := firstUsernameArg(msg.CommandArguments()); username != "" {
		known, err := store.GetKnownUserByUsername(ctx, username)
		if err != nil {
			return nil, errors.WithMessage(err, "lookup known user")
		}
		if known == nil {
			return nil, mberrors.ErrNotFound
		}
		return &Target{UserID: known.UserID, Username: known.Username}, nil
	}

	if caller == nil {
		return nil, mberrors.ErrInvalidInput
	}
	return &Target{UserID: caller.ID, Username: caller.UserName}, nil
}

func firstUsernameArg(args string) string {
	for _, field := range strings.Fields(args) {
		if strings.HasPrefix(field, "@") && len(field) > 1 {
			return strings.TrimPrefix(field, "@")
		}
	}
	return ""
}
