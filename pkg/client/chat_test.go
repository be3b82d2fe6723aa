package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatBackend is a shared in-memory conversation store serving both
// viewers' clients.
type chatBackend struct {
	mu        sync.Mutex
	messages  []ChatMessage
	nextID    int
	gets      int
	posts     int
	failGets  int
	failPosts int
	getStarted chan struct{}
	getBlock   chan struct{}
}

func newChatBackend(t *testing.T) (*chatBackend, *httptest.Server) {
	t.Helper()
	b := &chatBackend{nextID: 1}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders/7/messages", func(w http.ResponseWriter, r *http.Request) {
		if b.getStarted != nil {
			b.getStarted <- struct{}{}
		}
		if b.getBlock != nil {
			<-b.getBlock
		}

		b.mu.Lock()
		b.gets++
		if b.failGets > 0 {
			b.failGets--
			b.mu.Unlock()
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database temporarily unavailable"))
			return
		}
		out := append([]ChatMessage(nil), b.messages...)
		b.mu.Unlock()
		writeData(w, http.StatusOK, out)
	})
	mux.HandleFunc("POST /api/orders/7/messages", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.posts++
		if b.failPosts > 0 {
			b.failPosts--
			b.mu.Unlock()
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("failed to send message"))
			return
		}

		var payload struct {
			Body       string `json:"body"`
			Image      string `json:"image"`
			SenderRole string `json:"sender_role"`
			SenderName string `json:"sender_name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)

		msg := ChatMessage{
			ID:         b.nextID,
			OrderID:    7,
			SenderRole: payload.SenderRole,
			SenderName: payload.SenderName,
			Body:       payload.Body,
			Image:      payload.Image,
			CreatedAt:  time.Now(),
		}
		b.nextID++
		b.messages = append(b.messages, msg)
		b.mu.Unlock()
		writeData(w, http.StatusCreated, msg)
	})
	mux.HandleFunc("PUT /api/orders/7/messages/read", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, nil)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *chatBackend) getCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets
}

func fastRetries(c *Channel) {
	c.retryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
}

func TestRefreshCacheHitSkipsNetwork(t *testing.T) {
	backend, srv := newChatBackend(t)
	session := testSession(t, RoleBuyer)
	ch := NewChannel(New(srv.URL), session, 7)

	_, err := ch.Refresh(context.Background())
	require.NoError(t, err)
	_, err = ch.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, backend.getCount(), "second refresh within the window must be served from cache")
}

func TestOverlappingRefreshIssuesOneNetworkCall(t *testing.T) {
	backend, srv := newChatBackend(t)
	backend.getStarted = make(chan struct{}, 1)
	backend.getBlock = make(chan struct{})

	session := testSession(t, RoleBuyer)
	ch := NewChannel(New(srv.URL), session, 7)

	done := make(chan error, 1)
	go func() {
		_, err := ch.Refresh(context.Background())
		done <- err
	}()

	<-backend.getStarted

	// The overlapping call is dropped by the in-flight guard, not queued.
	_, err := ch.Refresh(context.Background())
	require.NoError(t, err)

	close(backend.getBlock)
	require.NoError(t, <-done)
	assert.Equal(t, 1, backend.getCount())
}

func TestRefreshRetriesTransientFailures(t *testing.T) {
	backend, srv := newChatBackend(t)
	backend.failGets = 2
	backend.messages = []ChatMessage{{ID: 1, OrderID: 7, SenderRole: RoleOperator, Body: "on the way"}}

	session := testSession(t, RoleBuyer)
	ch := NewChannel(New(srv.URL), session, 7)
	fastRetries(ch)

	messages, err := ch.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, 3, backend.getCount())
}

func TestRefreshSurfacesUnavailableAfterRetriesExhausted(t *testing.T) {
	backend, srv := newChatBackend(t)
	backend.failGets = 10

	session := testSession(t, RoleBuyer)
	ch := NewChannel(New(srv.URL), session, 7)
	fastRetries(ch)

	_, err := ch.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrTemporarilyUnavailable)
	assert.Equal(t, 4, backend.getCount(), "initial attempt plus three retries")

	// The failure must not have produced a cache entry.
	_, ok := session.State.Get(7, RoleBuyer)
	assert.False(t, ok)
}

func TestSendRequiresBodyOrAttachment(t *testing.T) {
	_, srv := newChatBackend(t)
	session := testSession(t, RoleBuyer)
	ch := NewChannel(New(srv.URL), session, 7)

	assert.ErrorIs(t, ch.Send(context.Background(), "", ""), ErrMessageEmpty)
}

func TestSendFailureRemovesEchoAndPreservesCache(t *testing.T) {
	backend, srv := newChatBackend(t)
	session := testSession(t, RoleBuyer)
	ch := NewChannel(New(srv.URL), session, 7)

	require.NoError(t, ch.Open(context.Background()))
	getsBefore := backend.getCount()

	var sawEcho bool
	ch.OnUpdate(func(view []ViewMessage) {
		for _, m := range view {
			if m.Sending {
				sawEcho = true
			}
		}
	})

	backend.failPosts = 1
	err := ch.Send(context.Background(), "hello", "")
	require.Error(t, err)
	assert.True(t, sawEcho, "the echo renders before the network write")

	// No residual optimistic message, and the read cache not advanced.
	for _, m := range ch.Messages() {
		assert.False(t, m.Sending)
		assert.NotEqual(t, "hello", m.Body)
	}
	assert.Equal(t, getsBefore, backend.getCount())
}

func TestSendReplacesEchoWithAuthoritativeMessage(t *testing.T) {
	_, srv := newChatBackend(t)
	session := testSession(t, RoleBuyer)
	ch := NewChannel(New(srv.URL), session, 7)

	require.NoError(t, ch.Open(context.Background()))
	require.NoError(t, ch.Send(context.Background(), "hello", ""))

	view := ch.Messages()
	require.Len(t, view, 1, "no duplicate of the optimistic echo")
	assert.Equal(t, "hello", view[0].Body)
	assert.False(t, view[0].Sending)
	assert.True(t, ch.Mine(view[0].ChatMessage))
}

func TestOperatorSeesBuyerMessageOnNextRefresh(t *testing.T) {
	_, srv := newChatBackend(t)

	buyer := testSession(t, RoleBuyer)
	buyerCh := NewChannel(New(srv.URL), buyer, 7)
	require.NoError(t, buyerCh.Open(context.Background()))
	require.NoError(t, buyerCh.Send(context.Background(), "hello", ""))

	operator := testSession(t, RoleOperator)
	opCh := NewChannel(New(srv.URL), operator, 7)
	messages, err := opCh.Refresh(context.Background())
	require.NoError(t, err)

	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Body)
	assert.Equal(t, RoleBuyer, messages[0].SenderRole)
	assert.False(t, opCh.Mine(messages[0]))
}

func TestMessagesOrderedByCreationTime(t *testing.T) {
	backend, srv := newChatBackend(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	backend.messages = []ChatMessage{
		{ID: 1, OrderID: 7, Body: "first", CreatedAt: base},
		{ID: 2, OrderID: 7, Body: "second", CreatedAt: base.Add(time.Minute)},
		{ID: 3, OrderID: 7, Body: "third", CreatedAt: base.Add(2 * time.Minute)},
	}

	session := testSession(t, RoleBuyer)
	ch := NewChannel(New(srv.URL), session, 7)
	require.NoError(t, ch.Open(context.Background()))

	var got []string
	for _, m := range ch.Messages() {
		got = append(got, m.Body)
	}
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestStopPollingIdempotent(t *testing.T) {
	_, srv := newChatBackend(t)
	session := testSession(t, RoleBuyer)
	ch := NewChannel(New(srv.URL), session, 7)

	require.NoError(t, ch.Open(context.Background()))
	ch.StartPolling(time.Hour)
	ch.StopPolling()
	ch.StopPolling()
	ch.Close()
	ch.Close()
}

func TestCloseSuppressesRendering(t *testing.T) {
	_, srv := newChatBackend(t)
	session := testSession(t, RoleBuyer)
	ch := NewChannel(New(srv.URL), session, 7)

	var renders int
	ch.OnUpdate(func([]ViewMessage) { renders++ })

	require.NoError(t, ch.Open(context.Background()))
	rendersBefore := renders
	ch.Close()

	// A fetch completing after close still lands in the cache but is
	// not rendered.
	session.State.Invalidate(7, session.Role)
	_, err := ch.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, rendersBefore, renders)
	_, ok := session.State.Get(7, session.Role)
	assert.True(t, ok)
}

func TestIndependentChannelsDoNotContend(t *testing.T) {
	// Guards are keyed per (order, viewer role); a second order's
	// channel must not be blocked by the first.
	session := testSession(t, RoleBuyer)
	require.True(t, session.State.TryAcquireInFlight(fmt.Sprintf("chat:%d:%s", 7, session.Role)))
	assert.True(t, session.State.TryAcquireInFlight(fmt.Sprintf("chat:%d:%s", 8, session.Role)))
}
