// Package widget is the conversation dispatcher of the chat widget. It ties
// the transcript, the offline queue, the connectivity gate and the booking
// dialogue to the spa backend.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spa-chat-widget/internal/booking"
	"spa-chat-widget/internal/connectivity"
	"spa-chat-widget/internal/domain"
	"spa-chat-widget/internal/integrations/spaapi"
	"spa-chat-widget/internal/offline"
	"spa-chat-widget/internal/transcript"
)

const (
	WelcomeText  = "👋 Hello! I'm your spa assistant. How can I help you today?"
	OfflineText  = "You're offline. Your message will be sent once you're back online."
	fallbackText = "I'm sorry, I couldn't process that request."

	defaultSpaID = "default"
)

// API is the spa backend as seen by one widget.
type API interface {
	booking.API
	Chat(ctx context.Context, in spaapi.ChatRequest) (spaapi.ChatResponse, error)
	StoreConversation(ctx context.Context, spaID string, msgs []domain.Message) error
	Authenticated() bool
}

// SessionSaver persists the session id when the backend hands out a new one.
type SessionSaver interface {
	Save(ctx context.Context, id string) error
}

type Config struct {
	SpaID        string
	SessionID    string
	HistoryLimit int
	Window       transcript.Window
}

// Widget is one mounted chat widget. All methods are safe for concurrent use.
type Widget struct {
	api      API
	store    *transcript.Store
	queue    *offline.Queue
	monitor  *connectivity.Monitor
	flow     *booking.Flow
	sessions SessionSaver
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	spaID        string
	historyLimit int
	queueOpts    []offline.Option

	mu        sync.Mutex
	renderer  *transcript.Renderer
	sessionID string
	busy      bool
	closed    bool
	closeOnce sync.Once
}

type Option func(*Widget)

func WithLogger(l *slog.Logger) Option {
	return func(w *Widget) {
		if l != nil {
			w.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Widget) {
		if now != nil {
			w.now = now
		}
	}
}

func WithIDs(newID func() string) Option {
	return func(w *Widget) {
		if newID != nil {
			w.newID = newID
		}
	}
}

func WithSessionSaver(s SessionSaver) Option {
	return func(w *Widget) {
		w.sessions = s
	}
}

// WithQueueOptions tunes the offline queue (retries, delay, scheduler).
func WithQueueOptions(opts ...offline.Option) Option {
	return func(w *Widget) {
		w.queueOpts = append(w.queueOpts, opts...)
	}
}

// New mounts a widget: it seeds the welcome message and starts watching src.
// Call Close to unmount.
func New(api API, src connectivity.Source, cfg Config, opts ...Option) (*Widget, error) {
	if api == nil {
		return nil, errors.New("widget: api must not be nil")
	}
	if src == nil {
		return nil, errors.New("widget: connectivity source must not be nil")
	}
	w := &Widget{
		api:          api,
		store:        transcript.NewStore(),
		logger:       slog.Default(),
		now:          time.Now,
		newID:        uuid.NewString,
		spaID:        strings.TrimSpace(cfg.SpaID),
		historyLimit: cfg.HistoryLimit,
		sessionID:    strings.TrimSpace(cfg.SessionID),
		renderer:     transcript.NewRenderer(cfg.Window),
	}
	if w.spaID == "" {
		w.spaID = defaultSpaID
	}
	if w.historyLimit <= 0 {
		w.historyLimit = defaultHistoryLimit
	}
	if cfg.Window.EstimatedItemHeight <= 0 {
		w.renderer = transcript.NewRenderer(transcript.DefaultWindow)
	}
	for _, opt := range opts {
		opt(w)
	}

	flow, err := booking.NewFlow(api, w.store,
		booking.WithLogger(w.logger),
		booking.WithClock(w.now),
		booking.WithIDs(w.newID),
	)
	if err != nil {
		return nil, fmt.Errorf("widget: %w", err)
	}
	w.flow = flow

	queueOpts := append([]offline.Option{
		offline.WithLogger(w.logger),
		offline.WithClock(w.now),
		offline.WithOnline(w.Online),
	}, w.queueOpts...)
	queue, err := offline.New(w, queueOpts...)
	if err != nil {
		return nil, fmt.Errorf("widget: %w", err)
	}
	w.queue = queue

	w.appendBot(WelcomeText)
	w.monitor = connectivity.Start(src, func() { w.queue.Drain(context.Background()) }, w.logger)
	return w, nil
}

// Send dispatches text to the assistant, or queues it while offline.
func (w *Widget) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return newError(ErrorInvalidInput, "empty_message", ErrEmptyMessage)
	}
	if err := w.acquire(); err != nil {
		return err
	}
	if !w.Online() {
		w.release()
		return w.enqueue(w.newID(), text, time.Time{})
	}
	defer w.release()

	msg := domain.Message{ID: w.newID(), Content: text, IsUser: true, Timestamp: w.now()}
	if err := w.store.Append(msg); err != nil {
		return fmt.Errorf("widget: send: %w", err)
	}
	return w.dispatch(ctx, msg)
}

// Retry resends a failed user message under its original id. The transcript
// entry is updated in place.
func (w *Widget) Retry(ctx context.Context, id string) error {
	msg, ok := w.store.Get(id)
	if !ok {
		return fmt.Errorf("widget: retry %q: %w", id, ErrNotFound)
	}
	if !msg.IsUser || msg.Status != domain.StatusFailed {
		return fmt.Errorf("widget: retry %q: %w", id, ErrNotRetryable)
	}
	if err := w.acquire(); err != nil {
		return err
	}
	if err := w.store.SetStatus(id, domain.StatusRetry); err != nil {
		w.release()
		return fmt.Errorf("widget: retry: %w", err)
	}
	if !w.Online() {
		w.release()
		return w.enqueue(id, msg.Content, msg.Timestamp)
	}
	defer w.release()

	msg.Status = domain.StatusRetry
	return w.dispatch(ctx, msg)
}

func (w *Widget) acquire() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.busy {
		return ErrBusy
	}
	w.busy = true
	return nil
}

func (w *Widget) release() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

func (w *Widget) enqueue(id, content string, createdAt time.Time) error {
	if _, err := w.queue.EnqueueMessage(id, content, createdAt); err != nil {
		return fmt.Errorf("widget: queue message: %w", err)
	}
	w.appendBot(OfflineText)
	return nil
}

// dispatch performs one exchange for msg, which is already in the store.
func (w *Widget) dispatch(ctx context.Context, msg domain.Message) error {
	resp, err := w.chat(ctx, msg.ID, msg.Content)
	if w.isClosed() {
		return ErrClosed
	}
	if err != nil {
		werr := classify(err)
		w.logger.Warn("chat request failed", "id", msg.ID, "code", werr.Code, "err", err)
		if serr := w.store.SetStatus(msg.ID, domain.StatusFailed); serr != nil {
			w.logger.Warn("mark message failed", "id", msg.ID, "err", serr)
		}
		w.appendBot(werr.UserMessage())
		return werr
	}
	if err := w.store.SetStatus(msg.ID, domain.StatusSent); err != nil {
		return fmt.Errorf("widget: mark sent: %w", err)
	}
	w.applyResponse(ctx, resp)
	return nil
}

func (w *Widget) chat(ctx context.Context, id, content string) (spaapi.ChatResponse, error) {
	return w.api.Chat(ctx, spaapi.ChatRequest{
		Message:             content,
		SpaID:               w.spaID,
		SessionID:           w.SessionID(),
		ConversationHistory: buildHistory(w.store.Messages(), id, w.historyLimit),
	})
}

func (w *Widget) applyResponse(ctx context.Context, resp spaapi.ChatResponse) {
	reply := resp.Reply()
	if strings.TrimSpace(reply) == "" {
		reply = fallbackText
	}
	w.appendBot(reply)
	w.adoptSession(ctx, resp.SessionID)
	if w.api.Authenticated() {
		if err := w.api.StoreConversation(ctx, w.spaID, w.store.Messages()); err != nil {
			w.logger.Warn("store conversation failed", "err", err)
		}
	}
	w.flow.ApplyActions(resp.Actions)
}

func (w *Widget) adoptSession(ctx context.Context, id string) {
	id = strings.TrimSpace(id)
	w.mu.Lock()
	if id == "" || id == w.sessionID {
		w.mu.Unlock()
		return
	}
	w.sessionID = id
	w.mu.Unlock()

	if w.sessions == nil {
		return
	}
	if err := w.sessions.Save(ctx, id); err != nil {
		w.logger.Warn("persist session id failed", "err", err)
	}
}

// Deliver sends a queued message. On success the message and the reply are
// recorded; on failure the transcript is left alone so the queue can retry.
func (w *Widget) Deliver(ctx context.Context, q domain.QueuedMessage) error {
	if w.isClosed() {
		return ErrClosed
	}
	resp, err := w.chat(ctx, q.ID, q.Content)
	if w.isClosed() {
		return nil
	}
	if err != nil {
		return classify(err)
	}
	if err := w.store.Put(q.Sent()); err != nil {
		w.logger.Warn("record delivered message", "id", q.ID, "err", err)
	}
	w.applyResponse(ctx, resp)
	return nil
}

// Fail records a queued message that ran out of attempts.
func (w *Widget) Fail(q domain.QueuedMessage) {
	if w.isClosed() {
		return
	}
	if err := w.store.Put(q.Failed()); err != nil {
		w.logger.Warn("record failed message", "id", q.ID, "err", err)
	}
}

func (w *Widget) appendBot(content string) {
	m := domain.Message{ID: w.newID(), Content: content, Timestamp: w.now(), Status: domain.StatusSent}
	if err := w.store.Append(m); err != nil {
		w.logger.Warn("record bot message", "err", err)
	}
}

// Online reports whether sends go to the network right now.
func (w *Widget) Online() bool {
	if w.monitor == nil {
		return false
	}
	return w.monitor.Online()
}

func (w *Widget) SessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

// Booking exposes the booking dialogue for option selection.
func (w *Widget) Booking() *booking.Flow {
	return w.flow
}

// Messages returns the full transcript.
func (w *Widget) Messages() []domain.Message {
	return w.store.Messages()
}

// Queued returns the messages waiting for connectivity, head first.
func (w *Widget) Queued() []domain.QueuedMessage {
	return w.queue.Pending()
}

func (w *Widget) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Close unmounts the widget: it unsubscribes from connectivity and stops the
// drain loop. Requests already in flight finish but change nothing.
func (w *Widget) Close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		w.monitor.Stop()
		w.queue.Stop()
	})
}
