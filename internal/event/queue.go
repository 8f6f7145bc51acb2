package event

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultQueueSize = 10000

// DeleteMessage is a deferred request to remove a live chat message, queued by
// ban purges so the update loop never blocks on Telegram round-trips.
type DeleteMessage struct {
	ChatID    int64
	MessageID int
}

// DeleteFunc performs the actual transport call.
type DeleteFunc func(ctx context.Context, chatID int64, messageID int) error

// DeletionQueue consumes DeleteMessage jobs one by one, logging and dropping
// failures. Per-message failures never abort the rest of a purge.
type DeletionQueue struct {
	jobs   chan DeleteMessage
	delete DeleteFunc

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	workersWg sync.WaitGroup
}

func NewDeletionQueue(delete DeleteFunc) *DeletionQueue {
	return &DeletionQueue{
		jobs:   make(chan DeleteMessage, defaultQueueSize),
		delete: delete,
	}
}

// Enqueue queues a deletion, dropping it if the queue is full.
func (q *DeletionQueue) Enqueue(job DeleteMessage) {
	select {
	case q.jobs <- job:
	default:
		log.WithFields(log.Fields{
			"chat_id":    job.ChatID,
			"message_id": job.MessageID,
		}).Warn("deletion queue full, dropping job")
	}
}

func (q *DeletionQueue) Start(ctx context.Context) error {
	q.runMutex.Lock()
	defer q.runMutex.Unlock()
	if q.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.runCancel = cancel

	q.workersWg.Add(1)
	go func() {
		defer q.workersWg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case job := <-q.jobs:
				if err := q.delete(runCtx, job.ChatID, job.MessageID); err != nil {
					log.WithError(err).WithFields(log.Fields{
						"chat_id":    job.ChatID,
						"message_id": job.MessageID,
					}).Error("cant delete chat message")
				}
				// Keep well under the bot API rate limits.
				select {
				case <-runCtx.Done():
					return
				case <-time.After(50 * time.Millisecond):
				}
			}
		}
	}()

	q.started = true
	return nil
}

func (q *DeletionQueue) Stop(ctx context.Context) error {
	q.runMutex.Lock()
	if !q.started {
		q.runMutex.Unlock()
		return nil
	}
	q.started = false
	cancel := q.runCancel
	q.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.workersWg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
