package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/evocoder/mimicbot/internal/clock"
	"github.com/evocoder/mimicbot/internal/db"
)

const DefaultDuration = 10 * time.Minute

type banStore interface {
	UpsertBan(ctx context.Context, ban *db.BannedUser) error
	GetBan(ctx context.Context, userID int64) (*db.BannedUser, error)
	DeleteBan(ctx context.Context, userID int64) error
	DeleteExpiredBans(ctx context.Context, now time.Time) (int64, error)
}

// Registry tracks muted users in memory and banned users through the store.
// Mutes are lost on restart, bans are not.
type Registry struct {
	store banStore
	clock clock.Clock

	mutesMutex sync.Mutex
	mutes      map[int64]time.Time

	sweepInterval time.Duration
	runMutex      sync.Mutex
	started       bool
	runCancel     context.CancelFunc
	workersWg     sync.WaitGroup
}

func NewRegistry(store banStore, clk clock.Clock, sweepInterval time.Duration) *Registry {
	if clk == nil {
		clk = clock.System()
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Registry{
		store:         store,
		clock:         clk,
		mutes:         map[int64]time.Time{},
		sweepInterval: sweepInterval,
	}
}

// Mute suppresses a user until now+duration, overwriting any existing mute.
func (r *Registry) Mute(userID int64, duration time.Duration) {
	if duration <= 0 {
		duration = DefaultDuration
	}
	r.mutesMutex.Lock()
	defer r.mutesMutex.Unlock()
	r.mutes[userID] = r.clock.Now().Add(duration)
}

// IsMuted sweeps expired entries and reports whether the user is still muted.
func (r *Registry) IsMuted(userID int64) bool {
	now := r.clock.Now()
	r.mutesMutex.Lock()
	defer r.mutesMutex.Unlock()
	for id, deadline := range r.mutes {
		if !now.Before(deadline) {
			delete(r.mutes, id)
		}
	}
	_, muted := r.mutes[userID]
	return muted
}

// Unmute removes the mute unconditionally and reports whether one existed.
func (r *Registry) Unmute(userID int64) bool {
	r.mutesMutex.Lock()
	defer r.mutesMutex.Unlock()
	_, existed := r.mutes[userID]
	delete(r.mutes, userID)
	return existed
}

// Ban upserts a durable suppression; re-banning refreshes the expiry.
func (r *Registry) Ban(ctx context.Context, userID int64, username string, duration time.Duration) error {
	if duration <= 0 {
		duration = DefaultDuration
	}
	ban := &db.BannedUser{
		UserID:   userID,
		Username: username,
		BanEndAt: r.clock.Now().Add(duration),
	}
	if err := r.store.UpsertBan(ctx, ban); err != nil {
		return errors.WithMessage(err, "upsert ban")
	}
	return nil
}

// IsBanned sweeps expired rows and reports whether the user is still banned.
// Store errors degrade to "not banned" so the bot keeps working without the table.
func (r *Registry) IsBanned(ctx context.Context, userID int64) bool {
	now := r.clock.Now()
	if _, err := r.store.DeleteExpiredBans(ctx, now); err != nil {
		log.WithError(err).Error("cant sweep expired bans")
	}
	ban, err := r.store.GetBan(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("cant check ban")
		return false
	}
	return ban != nil && now.Before(ban.BanEndAt)
}

// Unban deletes the ban row unconditionally.
func (r *Registry) Unban(ctx context.Context, userID int64) error {
	if err := r.store.DeleteBan(ctx, userID); err != nil {
		return errors.WithMessage(err, "delete ban")
	}
	return nil
}

// IsSuppressed reports whether the user's messages must be deleted on sight.
func (r *Registry) IsSuppressed(ctx context.Context, userID int64) bool {
	return r.IsMuted(userID) || r.IsBanned(ctx, userID)
}

// Start launches the periodic sweeper. Per-check sweeps keep the state exact,
// the ticker just keeps the tables small between messages.
func (r *Registry) Start(ctx context.Context) error {
	r.runMutex.Lock()
	defer r.runMutex.Unlock()
	if r.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.runCancel = cancel

	r.workersWg.Add(1)
	go func() {
		defer r.workersWg.Done()
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.sweep(runCtx)
			}
		}
	}()

	r.started = true
	return nil
}

func (r *Registry) Stop(ctx context.Context) error {
	r.runMutex.Lock()
	if !r.started {
		r.runMutex.Unlock()
		return nil
	}
	r.started = false
	cancel := r.runCancel
	r.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.workersWg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *Registry) sweep(ctx context.Context) {
	now := r.clock.Now()

	r.mutesMutex.Lock()
	for id, deadline := range r.mutes {
		if !now.Before(deadline) {
			delete(r.mutes, id)
		}
	}
	r.mutesMutex.Unlock()

	n, err := r.store.DeleteExpiredBans(ctx, now)
	if err != nil {
		log.WithError(err).Error("cant sweep expired bans")
		return
	}
	if n > 0 {
		log.WithField("count", n).Debug("swept expired bans")
	}
}
