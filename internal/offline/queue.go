// Package offline buffers user messages composed without connectivity and
// replays them, one at a time, once the host is back online.
package offline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spa-chat-widget/internal/domain"
)

const (
	DefaultMaxRetries = 3
	DefaultDelay      = time.Second
)

// Deliverer performs the remote call for a queued message and records the
// outcome in the transcript.
type Deliverer interface {
	// Deliver sends msg and, on success, records it and the reply.
	Deliver(ctx context.Context, msg domain.QueuedMessage) error
	// Fail records msg as permanently failed.
	Fail(msg domain.QueuedMessage)
}

// Queue is a FIFO of undelivered messages with a cooperative, single-flight
// drain loop. Every message gets at most MaxRetries+1 delivery attempts.
type Queue struct {
	deliverer  Deliverer
	sched      Scheduler
	online     func() bool
	maxRetries int
	delay      time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	items    []domain.QueuedMessage
	draining bool
	timer    Timer
	stopped  bool
}

type Option func(*Queue)

func WithScheduler(s Scheduler) Option {
	return func(q *Queue) {
		if s != nil {
			q.sched = s
		}
	}
}

// WithOnline gates scheduled iterations; a drain cycle ends as soon as the
// host goes offline and is restarted by the next Drain call.
func WithOnline(online func() bool) Option {
	return func(q *Queue) {
		if online != nil {
			q.online = online
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.maxRetries = n
		}
	}
}

func WithDelay(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.delay = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

func New(d Deliverer, opts ...Option) (*Queue, error) {
	if d == nil {
		return nil, errors.New("offline: deliverer must not be nil")
	}
	q := &Queue{
		deliverer:  d,
		sched:      realScheduler{},
		online:     func() bool { return true },
		maxRetries: DefaultMaxRetries,
		delay:      DefaultDelay,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Enqueue queues content under a fresh id.
func (q *Queue) Enqueue(content string) (domain.QueuedMessage, error) {
	return q.EnqueueMessage(newID(), content, time.Time{})
}

// EnqueueMessage queues content under an existing id, so that a failed
// transcript entry is updated in place once delivered. createdAt is kept as
// the message time; the zero time means now.
func (q *Queue) EnqueueMessage(id, content string, createdAt time.Time) (domain.QueuedMessage, error) {
	if strings.TrimSpace(id) == "" {
		return domain.QueuedMessage{}, errors.New("offline: message id must not be empty")
	}
	if strings.TrimSpace(content) == "" {
		return domain.QueuedMessage{}, errors.New("offline: message content must not be empty")
	}
	if createdAt.IsZero() {
		createdAt = q.now()
	}
	msg := domain.QueuedMessage{ID: id, Content: content, Timestamp: createdAt, RetryCount: 0}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, msg)
	return msg, nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns a snapshot of the queue, head first.
func (q *Queue) Pending() []domain.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.QueuedMessage, len(q.items))
	copy(out, q.items)
	return out
}

// Draining reports whether a drain cycle is running or scheduled.
func (q *Queue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Drain starts a drain cycle unless one is already active. The first item
// is attempted on the calling goroutine; later items follow one per Delay.
func (q *Queue) Drain(ctx context.Context) {
	q.mu.Lock()
	if q.draining || q.stopped {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	q.step(ctx)
}

func (q *Queue) step(ctx context.Context) {
	q.mu.Lock()
	q.timer = nil
	if q.stopped || len(q.items) == 0 || !q.online() {
		q.draining = false
		q.mu.Unlock()
		return
	}
	head := q.items[0]
	q.items = q.items[1:]
	q.mu.Unlock()

	if err := q.deliverer.Deliver(ctx, head); err != nil {
		if head.RetryCount >= q.maxRetries {
			q.logger.Warn("queued message failed permanently", "id", head.ID, "attempts", head.RetryCount+1, "err", err)
			q.deliverer.Fail(head)
		} else {
			q.logger.Debug("queued message requeued", "id", head.ID, "retry", head.RetryCount+1, "err", err)
			head.RetryCount++
			q.mu.Lock()
			q.items = append(q.items, head)
			q.mu.Unlock()
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped || len(q.items) == 0 {
		q.draining = false
		return
	}
	q.timer = q.sched.AfterFunc(q.delay, func() { q.step(ctx) })
}

// Stop cancels any scheduled iteration. Queued items are kept but never
// attempted again.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.draining = false
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

var newID = func() string {
	return uuid.NewString()
}
