package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/evocoder/mimicbot/internal/db"
	mberrors "github.com/evocoder/mimicbot/internal/errors"
	"github.com/evocoder/mimicbot/internal/event"
	"github.com/evocoder/mimicbot/internal/i18n"
	"github.com/evocoder/mimicbot/internal/moderation"
	"github.com/evocoder/mimicbot/internal/observability"
)

const helpText = `/mute [@user|reply] [minutes]
/unmute [@user|reply]
/ban [@user|reply] [minutes]
/unban [@user|reply]
/wipe
/help`

// Transport is the slice of the bot API the handlers use.
type Transport interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendReply(ctx context.Context, chatID int64, replyToMessageID int, text string) error
}

type ModeratorConfig struct {
	OperatorIDs         []int64
	DefaultMuteDuration time.Duration
	DefaultBanDuration  time.Duration
	Language            string
}

type moderatorStore interface {
	PurgeUserMessages(ctx context.Context, userID int64, chatID int64) (int64, error)
	ListUserMessageRefs(ctx context.Context, userID int64) ([]db.MessageRef, error)
	GetKnownUserByUsername(ctx context.Context, username string) (*db.KnownUser, error)
}

// Moderator deletes messages from muted/banned users and runs the operator
// command surface.
type Moderator struct {
	registry  *moderation.Registry
	store     moderatorStore
	transport Transport
	deletions *event.DeletionQueue
	config    ModeratorConfig
}

func NewModerator(registry *moderation.Registry, store moderatorStore, transport Transport, deletions *event.DeletionQueue, config ModeratorConfig) *Moderator {
	if config.DefaultMuteDuration <= 0 {
		config.DefaultMuteDuration = moderation.DefaultDuration
	}
	if config.DefaultBanDuration <= 0 {
		config.DefaultBanDuration = moderation.DefaultDuration
	}
	m := &Moderator{
		registry:  registry,
		store:     store,
		transport: transport,
		deletions: deletions,
		config:    config,
	}
	m.getLogEntry().Debug("created new moderator")
	return m
}

func (m *Moderator) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil || chat == nil || user == nil {
		return true, nil
	}

	if m.registry.IsSuppressed(ctx, user.ID) {
		entry := m.getLogEntry().WithFields(log.Fields{"chat_id": chat.ID, "user_id": user.ID})
		if err := m.transport.DeleteMessage(ctx, chat.ID, msg.MessageID); err != nil {
			entry.WithError(err).Error("cant delete suppressed message")
		} else {
			observability.RecordDeletedMessage("suppressed")
		}
		return false, nil
	}

	if msg.IsCommand() {
		if err := m.handleCommand(ctx, msg, chat, user); err != nil {
			m.getLogEntry().WithField("command", msg.Command()).WithError(err).Error("cant handle command")
		}
		return false, nil
	}

	return true, nil
}

func (m *Moderator) handleCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	command := msg.Command()
	switch command {
	case "mute", "unmute", "ban", "unban", "wipe", "help":
	default:
		return nil
	}

	if !m.isOperator(user.ID) {
		return m.transport.SendReply(ctx, chat.ID, msg.MessageID, i18n.Get("You are not allowed to do that", m.config.Language))
	}

	switch command {
	case "help":
		return m.transport.SendMessage(ctx, chat.ID, i18n.Get("Available commands", m.config.Language)+":\n"+helpText)
	case "mute":
		return m.muteCommand(ctx, msg, chat, user)
	case "unmute":
		return m.unmuteCommand(ctx, msg, chat, user)
	case "ban":
		return m.banCommand(ctx, msg, chat, user)
	case "unban":
		return m.unbanCommand(ctx, msg, chat, user)
	case "wipe":
		return m.wipeCommand(ctx, msg, chat, user)
	}
	return nil
}

func (m *Moderator) muteCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	target, err := m.resolveTarget(ctx, msg, chat, user)
	if err != nil || target == nil {
		return err
	}
	m.registry.Mute(target.UserID, durationArg(msg.CommandArguments(), m.config.DefaultMuteDuration))
	return m.transport.SendReply(ctx, chat.ID, msg.MessageID, i18n.Get("User is muted", m.config.Language))
}

func (m *Moderator) unmuteCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	target, err := m.resolveTarget(ctx, msg, chat, user)
	if err != nil || target == nil {
		return err
	}
	existed := m.registry.Unmute(target.UserID)
	reply := "User is unmuted"
	if !existed {
		reply = "User was not muted"
	}
	return m.transport.SendReply(ctx, chat.ID, msg.MessageID, i18n.Get(reply, m.config.Language))
}

func (m *Moderator) banCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	target, err := m.resolveTarget(ctx, msg, chat, user)
	if err != nil || target == nil {
		return err
	}
	entry := m.getLogEntry().WithFields(log.Fields{"chat_id": chat.ID, "target_id": target.UserID})

	if err := m.registry.Ban(ctx, target.UserID, target.Username, durationArg(msg.CommandArguments(), m.config.DefaultBanDuration)); err != nil {
		return errors.WithMessage(err, "ban")
	}

	// Collect live message ids before the purge drops them from the archive.
	refs, err := m.store.ListUserMessageRefs(ctx, target.UserID)
	if err != nil {
		entry.WithError(err).Error("cant list messages of banned user")
	}

	if _, err := m.store.PurgeUserMessages(ctx, target.UserID, 0); err != nil {
		entry.WithError(err).Error("cant purge messages of banned user")
	}

	if m.deletions != nil {
		for _, ref := range refs {
			m.deletions.Enqueue(event.DeleteMessage{ChatID: ref.ChatID, MessageID: ref.MessageID})
		}
	}

	return m.transport.SendReply(ctx, chat.ID, msg.MessageID, i18n.Get("User is banned", m.config.Language))
}

func (m *Moderator) unbanCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	target, err := m.resolveTarget(ctx, msg, chat, user)
	if err != nil || target == nil {
		return err
	}
	if err := m.registry.Unban(ctx, target.UserID); err != nil {
		return errors.WithMessage(err, "unban")
	}
	return m.transport.SendReply(ctx, chat.ID, msg.MessageID, i18n.Get("User is unbanned", m.config.Language))
}

func (m *Moderator) wipeCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	if _, err := m.store.PurgeUserMessages(ctx, user.ID, chat.ID); err != nil {
		return errors.WithMessage(err, "wipe")
	}
	return m.transport.SendReply(ctx, chat.ID, msg.MessageID, i18n.Get("Your messages were wiped", m.config.Language))
}

func (m *Moderator) resolveTarget(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) (*moderation.Target, error) {
	target, err := moderation.ResolveTarget(ctx, m.store, msg, user)
	if err != nil {
		if errors.Is(err, mberrors.ErrNotFound) {
			return nil, m.transport.SendReply(ctx, chat.ID, msg.MessageID, i18n.Get("Cant find that user", m.config.Language))
		}
		return nil, errors.WithMessage(err, "resolve target")
	}
	return target, nil
}

func (m *Moderator) isOperator(userID int64) bool {
	for _, id := range m.config.OperatorIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (m *Moderator) getLogEntry() *log.Entry {
	return log.WithField("context", "moderator")
}

// durationArg parses the first numeric argument as minutes.
func durationArg(args string, fallback time.Duration) time.Duration {
	for _, field := range strings.Fields(args) {
		minutes, err := strconv.Atoi(field)
		if err != nil || minutes <= 0 {
			continue
		}
		return time.Duration(minutes) * time.Minute
	}
	return fallback
}
