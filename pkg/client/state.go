package client

import (
	"sync"
	"time"
)

// messageCacheWindow is how long a fetched message list stays fresh.
const messageCacheWindow = 10 * time.Second

type cacheKey struct {
	OrderID    int
	ViewerRole string
}

type cacheEntry struct {
	messages  []ChatMessage
	fetchedAt time.Time
}

// SessionState is the process-wide mutable state shared by the chat
// channels and the submission guards: a short-lived message cache plus
// the set of request keys currently in flight. It is created at
// session start and Reset on logout.
type SessionState struct {
	mu       sync.Mutex
	cache    map[cacheKey]cacheEntry
	inflight map[string]struct{}
	freshFor time.Duration
	now      func() time.Time
}

// NewSessionState constructs an empty SessionState.
func NewSessionState() *SessionState {
	return &SessionState{
		cache:    make(map[cacheKey]cacheEntry),
		inflight: make(map[string]struct{}),
		freshFor: messageCacheWindow,
		now:      time.Now,
	}
}

// Get returns the cached message list for the key if it is still
// within the freshness window.
func (s *SessionState) Get(orderID int, viewerRole string) ([]ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[cacheKey{OrderID: orderID, ViewerRole: viewerRole}]
	if !ok || s.now().Sub(entry.fetchedAt) > s.freshFor {
		return nil, false
	}
	return entry.messages, true
}

// Put replaces the cached message list for the key. Write paths always
// replace rather than merge so a stale list can never overwrite a
// concurrently fetched authoritative one.
func (s *SessionState) Put(orderID int, viewerRole string, messages []ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[cacheKey{OrderID: orderID, ViewerRole: viewerRole}] = cacheEntry{
		messages:  messages,
		fetchedAt: s.now(),
	}
}

// Invalidate drops the cache entry for the key.
func (s *SessionState) Invalidate(orderID int, viewerRole string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, cacheKey{OrderID: orderID, ViewerRole: viewerRole})
}

// TryAcquireInFlight marks a request key as outstanding. It returns
// false when the key is already held, in which case the caller must
// drop its duplicate request rather than queue it.
func (s *SessionState) TryAcquireInFlight(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.inflight[key]; held {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

// ReleaseInFlight clears an outstanding request key.
func (s *SessionState) ReleaseInFlight(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}

// Reset clears all caches and guards; called on logout.
func (s *SessionState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[cacheKey]cacheEntry)
	s.inflight = make(map[string]struct{})
}
