package handlers

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/evocoder/mimicbot/internal/db"
	"github.com/evocoder/mimicbot/internal/event"
)

type fakeStore struct {
	mutex    sync.Mutex
	messages []db.ArchivedMessage
	bans     map[int64]*db.BannedUser
	known    map[string]*db.KnownUser
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bans:  map[int64]*db.BannedUser{},
		known: map[string]*db.KnownUser{},
	}
}

func (s *fakeStore) InsertMessage(_ context.Context, msg *db.ArchivedMessage) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *fakeStore) PurgeUserMessages(_ context.Context, userID int64, chatID int64) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var kept []db.ArchivedMessage
	var purged int64
	for _, msg := range s.messages {
		if msg.UserID == userID && (chatID == 0 || msg.ChatID == chatID) {
			purged++
			continue
		}
		kept = append(kept, msg)
	}
	s.messages = kept
	return purged, nil
}

func (s *fakeStore) SearchUserMessages(_ context.Context, authorID int64, patterns []string, limit int) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var texts []string
	for _, msg := range s.messages {
		if msg.UserID != authorID {
			continue
		}
		for _, pattern := range patterns {
			if strings.Contains(strings.ToLower(msg.Text), strings.ToLower(pattern)) {
				texts = append(texts, msg.Text)
				break
			}
		}
		if len(texts) >= limit {
			break
		}
	}
	return texts, nil
}

func (s *fakeStore) ListUserMessageRefs(_ context.Context, userID int64) ([]db.MessageRef, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var refs []db.MessageRef
	for _, msg := range s.messages {
		if msg.UserID == userID {
			refs = append(refs, db.MessageRef{ChatID: msg.ChatID, MessageID: msg.MessageID})
		}
	}
	return refs, nil
}

func (s *fakeStore) UpsertBan(_ context.Context, ban *db.BannedUser) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	copied := *ban
	s.bans[ban.UserID] = &copied
	return nil
}

func (s *fakeStore) GetBan(_ context.Context, userID int64) (*db.BannedUser, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ban, ok := s.bans[userID]
	if !ok {
		return nil, nil
	}
	copied := *ban
	return &copied, nil
}

func (s *fakeStore) DeleteBan(_ context.Context, userID int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.bans, userID)
	return nil
}

func (s *fakeStore) DeleteExpiredBans(_ context.Context, now time.Time) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var n int64
	for id, ban := range s.bans {
		if !now.Before(ban.BanEndAt) {
			delete(s.bans, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) UpsertKnownUser(_ context.Context, user *db.KnownUser) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	copied := *user
	s.known[strings.ToLower(user.Username)] = &copied
	return nil
}

func (s *fakeStore) GetKnownUserByUsername(_ context.Context, username string) (*db.KnownUser, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	user, ok := s.known[strings.ToLower(username)]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (s *fakeStore) archivedTexts(userID int64) []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var texts []string
	for _, msg := range s.messages {
		if msg.UserID == userID {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

type fakeTransport struct {
	mutex   sync.Mutex
	sent    []string
	replies []string
	deleted []int
}

func (t *fakeTransport) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.deleted = append(t.deleted, messageID)
	return nil
}

func (t *fakeTransport) SendMessage(_ context.Context, chatID int64, text string) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.sent = append(t.sent, text)
	return nil
}

func (t *fakeTransport) SendReply(_ context.Context, chatID int64, replyToMessageID int, text string) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.replies = append(t.replies, text)
	return nil
}

func (t *fakeTransport) deletedIDs() []int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]int(nil), t.deleted...)
}

func (t *fakeTransport) allReplies() []string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]string(nil), t.replies...)
}

func textMessage(chatID, userID int64, messageID int, text string) *api.Update {
	return &api.Update{
		Message: &api.Message{
			MessageID: messageID,
			Chat:      api.Chat{ID: chatID},
			From:      &api.User{ID: userID, UserName: usernameFor(userID)},
			Text:      text,
			Date:      int(time.Now().Unix()),
		},
	}
}

func commandMessage(chatID, userID int64, messageID int, text string) *api.Update {
	u := textMessage(chatID, userID, messageID, text)
	u.Message.Entities = []api.MessageEntity{{
		Type:   "bot_command",
		Offset: 0,
		Length: len(strings.Fields(text)[0]),
	}}
	return u
}

func archivedFixture(chatID, userID int64, messageID int, text string) db.ArchivedMessage {
	return db.ArchivedMessage{
		ChatID:     chatID,
		UserID:     userID,
		Username:   usernameFor(userID),
		MessageID:  messageID,
		Text:       text,
		InsertedAt: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
	}
}

func knownUserFixture(userID int64, username string) *db.KnownUser {
	return &db.KnownUser{
		UserID:   userID,
		Username: username,
		LastSeen: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
	}
}

type recordingQueue struct {
	queue *event.DeletionQueue
	mutex sync.Mutex
	seen  []event.DeleteMessage
}

func newRecordingQueue(t *testing.T) *recordingQueue {
	t.Helper()
	r := &recordingQueue{}
	r.queue = event.NewDeletionQueue(func(_ context.Context, chatID int64, messageID int) error {
		r.mutex.Lock()
		defer r.mutex.Unlock()
		r.seen = append(r.seen, event.DeleteMessage{ChatID: chatID, MessageID: messageID})
		return nil
	})
	ctx := context.Background()
	if err := r.queue.Start(ctx); err != nil {
		t.Fatalf("start deletion queue: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_ = r.queue.Stop(stopCtx)
	})
	return r
}

func (r *recordingQueue) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.seen)
}

func (r *recordingQueue) waitFor(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for r.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d queued deletions, got %d", n, r.count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func usernameFor(userID int64) string {
	switch userID {
	case 1:
		return "operator"
	case 2:
		return "userB"
	default:
		return "someone"
	}
}
