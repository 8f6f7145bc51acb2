package handlers

import (
	"context"
	"strings"
	"time"
	"unicode/utf16"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/evocoder/mimicbot/internal/bot"
	"github.com/evocoder/mimicbot/internal/db"
	"github.com/evocoder/mimicbot/internal/observability"
)

type ResponderConfig struct {
	PersonaUserID int64
	SearchLimit   int
}

type responderStore interface {
	InsertMessage(ctx context.Context, msg *db.ArchivedMessage) error
	UpsertKnownUser(ctx context.Context, user *db.KnownUser) error
	SearchUserMessages(ctx context.Context, authorID int64, patterns []string, limit int) ([]string, error)
}

// KeywordSource turns a question into search patterns.
type KeywordSource interface {
	Keywords(ctx context.Context, question string) []string
}

// KeywordFunc adapts a plain function to KeywordSource.
type KeywordFunc func(ctx context.Context, question string) []string

func (f KeywordFunc) Keywords(ctx context.Context, question string) []string { return f(ctx, question) }

// Answerer produces the reply text; empty string means stay silent.
type Answerer interface {
	Synthesize(ctx context.Context, question string, matchedTexts []string) string
}

// Responder archives every surviving message and answers questions addressed
// to the bot in the persona's voice.
type Responder struct {
	store       responderStore
	transport   Transport
	keywords    KeywordSource
	answerer    Answerer
	config      ResponderConfig
	botID       int64
	botUsername string
}

func NewResponder(store responderStore, transport Transport, keywords KeywordSource, answerer Answerer, botID int64, botUsername string, config ResponderConfig) *Responder {
	if config.SearchLimit <= 0 {
		config.SearchLimit = 50
	}
	r := &Responder{
		store:       store,
		transport:   transport,
		keywords:    keywords,
		answerer:    answerer,
		config:      config,
		botID:       botID,
		botUsername: botUsername,
	}
	r.getLogEntry().Debug("created new responder")
	return r
}

func (r *Responder) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil || chat == nil || user == nil || msg.Text == "" {
		return true, nil
	}
	if user.IsBot {
		return true, nil
	}

	r.archive(ctx, msg, chat, user)

	if !r.ShouldRespond(msg) {
		return true, nil
	}

	question := r.stripBotMention(msg)
	if question == "" {
		return true, nil
	}

	done := observability.StartAnswer()
	defer done()
	entry := r.getLogEntry().WithFields(log.Fields{"chat_id": chat.ID, "message_id": msg.MessageID})

	patterns := r.keywords.Keywords(ctx, question)
	if len(patterns) == 0 {
		entry.Debug("no keywords extracted, staying silent")
		return true, nil
	}

	matched, err := r.store.SearchUserMessages(ctx, r.config.PersonaUserID, patterns, r.config.SearchLimit)
	if err != nil {
		entry.WithError(err).Error("cant search archive")
		return true, nil
	}
	if len(matched) == 0 {
		entry.WithField("patterns", patterns).Debug("no archived messages matched")
		return true, nil
	}

	answer := r.answerer.Synthesize(ctx, question, matched)
	if answer == "" {
		observability.RecordGeneratorFailure()
		return true, nil
	}

	if err := r.transport.SendReply(ctx, chat.ID, msg.MessageID, answer); err != nil {
		entry.WithError(err).Error("cant send reply")
		return true, nil
	}
	observability.RecordGeneratedReply()
	return true, nil
}

// archive is best-effort: store failures are logged and the message is still
// answered.
func (r *Responder) archive(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) {
	now := time.Now()
	err := r.store.InsertMessage(ctx, &db.ArchivedMessage{
		ChatID:     chat.ID,
		UserID:     user.ID,
		Username:   bot.GetUN(user),
		MessageID:  msg.MessageID,
		Text:       msg.Text,
		InsertedAt: now,
	})
	if err != nil {
		r.getLogEntry().WithError(err).Error("cant archive message")
	} else {
		observability.RecordArchivedMessage()
	}

	if err := r.store.UpsertKnownUser(ctx, &db.KnownUser{
		UserID:   user.ID,
		Username: user.UserName,
		LastSeen: now,
	}); err != nil { // known_users keeps the raw @username for /mute lookups
		r.getLogEntry().WithError(err).Error("cant upsert known user")
	}
}

// ShouldRespond reports whether the message addresses the bot: an @-mention of
// the bot's username or a reply to one of the bot's own messages.
func (r *Responder) ShouldRespond(msg *api.Message) bool {
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && msg.ReplyToMessage.From.ID == r.botID {
		return true
	}

	mention := "@" + strings.ToLower(r.botUsername)
	for _, entity := range msg.Entities {
		switch entity.Type {
		case "mention":
			if strings.ToLower(entityText(msg.Text, entity)) == mention {
				return true
			}
		case "text_mention":
			if entity.User != nil && entity.User.ID == r.botID {
				return true
			}
		}
	}
	return false
}

// stripBotMention removes the bot's own @mention entities from the text so
// only the user's words reach keyword extraction. Matching is case-insensitive
// like the gate's.
func (r *Responder) stripBotMention(msg *api.Message) string {
	mention := "@" + strings.ToLower(r.botUsername)
	encoded := utf16.Encode([]rune(msg.Text))
	kept := make([]uint16, 0, len(encoded))
	prev := 0
	for _, entity := range msg.Entities {
		if entity.Type != "mention" {
			continue
		}
		if strings.ToLower(entityText(msg.Text, entity)) != mention {
			continue
		}
		if entity.Offset < prev || entity.Offset+entity.Length > len(encoded) {
			continue
		}
		kept = append(kept, encoded[prev:entity.Offset]...)
		prev = entity.Offset + entity.Length
	}
	kept = append(kept, encoded[prev:]...)
	return strings.TrimSpace(string(utf16.Decode(kept)))
}

// entityText cuts the entity out of the message by its UTF-16 offsets, the
// encoding Telegram uses for entity positions.
func entityText(text string, entity api.MessageEntity) string {
	encoded := utf16.Encode([]rune(text))
	if entity.Offset < 0 || entity.Offset+entity.Length > len(encoded) {
		return ""
	}
	return string(utf16.Decode(encoded[entity.Offset : entity.Offset+entity.Length]))
}

func (r *Responder) getLogEntry() *log.Entry {
	return log.WithField("context", "responder")
}
