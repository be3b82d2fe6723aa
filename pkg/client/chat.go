package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultPollInterval is how often a visible channel re-refreshes.
const DefaultPollInterval = 15 * time.Second

// defaultRetryDelays is the capped exponential backoff applied to
// transient refresh failures.
var defaultRetryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// ViewMessage is a rendered message: the backend message plus the
// Sending flag for optimistic echoes awaiting confirmation.
type ViewMessage struct {
	ChatMessage
	Sending bool
}

// Channel is the per-order chat synchronization engine for one viewer.
// It keeps the view consistent with the polled backend through a
// short-lived cache, an in-flight guard that drops overlapping
// fetches, optimistic local echo on send, and read-state signalling.
type Channel struct {
	api     *Client
	session *Session
	orderID int

	mu            sync.Mutex
	open          bool
	authoritative []ChatMessage
	pending       []*ChatMessage
	pollCancel    context.CancelFunc
	retryDelays   []time.Duration
	onUpdate      func([]ViewMessage)
}

// NewChannel builds a channel for the given order as seen by the
// session's viewer.
func NewChannel(api *Client, session *Session, orderID int) *Channel {
	return &Channel{
		api:         api,
		session:     session,
		orderID:     orderID,
		retryDelays: defaultRetryDelays,
	}
}

// OnUpdate registers the render callback. It is invoked with the full
// merged message list whenever the view should repaint, and never
// after Close.
func (c *Channel) OnUpdate(fn func([]ViewMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// Open marks the channel visible: unread messages addressed to this
// viewer are flagged read (fire and forget), then an initial refresh
// runs.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()

	go func() {
		_ = c.api.MarkMessagesRead(context.Background(), c.orderID)
	}()

	_, err := c.Refresh(ctx)
	return err
}

// Close hides the channel: polling stops and later fetch results are
// no longer rendered. An already-in-flight fetch is allowed to finish
// and update the cache. Closing a closed channel is a no-op.
func (c *Channel) Close() {
	c.StopPolling()
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

// Refresh returns the channel's messages, consulting the session cache
// first. Within the freshness window the cached list is returned with
// no network call. On a miss the fetch runs under an in-flight guard
// keyed by (order, viewer role): an overlapping call is dropped and
// served the current list instead of queuing a duplicate request.
// Transient upstream failures are retried with capped exponential
// backoff before ErrTemporarilyUnavailable surfaces.
func (c *Channel) Refresh(ctx context.Context) ([]ChatMessage, error) {
	if cached, ok := c.session.State.Get(c.orderID, c.session.Role); ok {
		c.adopt(cached)
		return cached, nil
	}

	guardKey := fmt.Sprintf("chat:%d:%s", c.orderID, c.session.Role)
	if !c.session.State.TryAcquireInFlight(guardKey) {
		c.mu.Lock()
		current := append([]ChatMessage(nil), c.authoritative...)
		c.mu.Unlock()
		return current, nil
	}
	defer c.session.State.ReleaseInFlight(guardKey)

	messages, err := c.fetchWithRetry(ctx)
	if err != nil {
		return nil, err
	}

	c.session.State.Put(c.orderID, c.session.Role, messages)
	c.adopt(messages)
	return messages, nil
}

func (c *Channel) fetchWithRetry(ctx context.Context) ([]ChatMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= len(c.retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelays[attempt-1]):
			}
		}

		messages, err := c.api.ListMessages(ctx, c.orderID)
		if err == nil {
			return messages, nil
		}
		if !errors.Is(err, ErrTemporarilyUnavailable) && !errors.Is(err, ErrOperationTimedOut) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: retries exhausted: %v", ErrTemporarilyUnavailable, lastErr)
}

// Send posts a message carrying a body, an attachment, or both. The
// message is echoed locally as "sending" before the network write; on
// success the cache entry is invalidated and re-fetched so the echo is
// replaced by the authoritative copy, and on failure the echo is
// removed with no cache side effects, leaving the input recoverable.
func (c *Channel) Send(ctx context.Context, body, attachment string) error {
	if body == "" && attachment == "" {
		return ErrMessageEmpty
	}

	echo := &ChatMessage{
		OrderID:    c.orderID,
		UserID:     c.session.UserID,
		SenderRole: c.session.Role,
		SenderName: c.session.Name,
		Body:       body,
		Image:      attachment,
		CreatedAt:  time.Now(),
	}

	c.mu.Lock()
	c.pending = append(c.pending, echo)
	c.mu.Unlock()
	c.notify()

	_, err := c.api.SendMessage(ctx, c.orderID, body, attachment, c.session.Role, c.session.Name)

	c.removeEcho(echo)

	if err != nil {
		c.notify()
		return err
	}

	c.session.State.Invalidate(c.orderID, c.session.Role)
	// The refresh replaces the echo with the authoritative message; if
	// it fails transiently the next poll tick reconciles.
	_, _ = c.Refresh(ctx)
	return nil
}

// StartPolling re-refreshes the channel on a fixed interval while the
// view stays visible. Starting an already-polling channel is a no-op;
// overlapping ticks are dropped by the refresh in-flight guard.
func (c *Channel) StartPolling(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	c.mu.Lock()
	if !c.open || c.pollCancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.pollCancel = cancel
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Each tick gets its own context so cancelling the
				// poller never aborts a fetch already in flight.
				tickCtx, done := context.WithTimeout(context.Background(), requestTimeout)
				_, _ = c.Refresh(tickCtx)
				done()
			}
		}
	}()
}

// StopPolling cancels the polling timer. Idempotent.
func (c *Channel) StopPolling() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

// Messages returns the rendered list: authoritative messages plus any
// optimistic echoes, in ascending creation order.
func (c *Channel) Messages() []ViewMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergedLocked()
}

// Mine reports whether a message was sent by this viewer, derived from
// the sender role rather than list position.
func (c *Channel) Mine(m ChatMessage) bool {
	return m.SenderRole == c.session.Role
}

func (c *Channel) mergedLocked() []ViewMessage {
	merged := make([]ViewMessage, 0, len(c.authoritative)+len(c.pending))
	for _, m := range c.authoritative {
		merged = append(merged, ViewMessage{ChatMessage: m})
	}
	for _, m := range c.pending {
		merged = append(merged, ViewMessage{ChatMessage: *m, Sending: true})
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}

// adopt installs a fetched list as the authoritative view and repaints
// if the view is still open.
func (c *Channel) adopt(messages []ChatMessage) {
	c.mu.Lock()
	c.authoritative = messages
	c.mu.Unlock()
	c.notify()
}

func (c *Channel) removeEcho(echo *ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pending {
		if p == echo {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

func (c *Channel) notify() {
	c.mu.Lock()
	fn := c.onUpdate
	open := c.open
	var view []ViewMessage
	if fn != nil && open {
		view = c.mergedLocked()
	}
	c.mu.Unlock()

	if fn != nil && open {
		fn(view)
	}
}
