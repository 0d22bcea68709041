package history

import (
	"context"
	"sync"

	"dm-service/internal/models"
	"dm-service/internal/observability"
)

// DefaultPageSize is the fixed history page size.
const DefaultPageSize = 50

// Fetcher retrieves one page of durable history. A zero `before` requests
// the newest page; otherwise strictly older messages are returned. Pages
// come back in chronological order. The same cursor always yields the same
// page absent concurrent writes, so a failed fetch is safe to re-trigger.
type Fetcher interface {
	FetchPage(ctx context.Context, localID, peerID, limit int, before int64) ([]models.Message, error)
}

type conversationCache struct {
	msgs    []models.Message // ascending by SentAt
	oldest  int64            // cursor: SentAt of the oldest loaded message
	loaded  bool
	hasMore bool
}

// Store caches durable history per conversation, loaded in backward pages.
// Only the store mutates its cache; readers get copies.
type Store struct {
	fetcher  Fetcher
	localID  int
	pageSize int

	mu    sync.Mutex
	convs map[models.ConversationKey]*conversationCache
}

// NewStore builds a store for the local user.
func NewStore(fetcher Fetcher, localID int) *Store {
	return &Store{
		fetcher:  fetcher,
		localID:  localID,
		pageSize: DefaultPageSize,
		convs:    map[models.ConversationKey]*conversationCache{},
	}
}

// LoadOlder fetches the next older page for the conversation with peerID and
// prepends it to the cache. It reports how many messages were added and
// whether more history remains. A fetch error leaves the cache untouched and
// is not retried here; the caller re-triggers on demand.
func (s *Store) LoadOlder(ctx context.Context, peerID int) (added int, hasMore bool, err error) {
	key := models.NewConversationKey(s.localID, peerID)

	s.mu.Lock()
	cache, ok := s.convs[key]
	if !ok {
		cache = &conversationCache{hasMore: true}
		s.convs[key] = cache
	}
	if cache.loaded && !cache.hasMore {
		s.mu.Unlock()
		return 0, false, nil
	}
	before := cache.oldest
	// Snapshot under the lock; a concurrent load may mutate the cache while
	// this fetch is in flight.
	hadMore := cache.hasMore
	s.mu.Unlock()

	page, err := s.fetcher.FetchPage(ctx, s.localID, peerID, s.pageSize, before)
	if err != nil {
		observability.IncHistoryFetch("error")
		return 0, hadMore, err
	}
	observability.IncHistoryFetch("ok")

	s.mu.Lock()
	defer s.mu.Unlock()
	// The cursor may have advanced if another load for the same conversation
	// finished first; the stale page would duplicate cached rows, so drop it.
	if cache.oldest != before {
		return 0, cache.hasMore, nil
	}
	if len(page) > 0 {
		cache.msgs = append(append([]models.Message{}, page...), cache.msgs...)
		cache.oldest = page[0].SentAt
	}
	cache.loaded = true
	cache.hasMore = len(page) == s.pageSize
	return len(page), cache.hasMore, nil
}

// Messages returns a chronological copy of the cached conversation.
func (s *Store) Messages(peerID int) []models.Message {
	key := models.NewConversationKey(s.localID, peerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, ok := s.convs[key]
	if !ok || len(cache.msgs) == 0 {
		return nil
	}
	out := make([]models.Message, len(cache.msgs))
	copy(out, cache.msgs)
	return out
}

// Loaded reports whether at least one page was fetched for the conversation.
func (s *Store) Loaded(peerID int) bool {
	key := models.NewConversationKey(s.localID, peerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, ok := s.convs[key]
	return ok && cache.loaded
}

// HasMore reports whether older history may remain for the conversation.
func (s *Store) HasMore(peerID int) bool {
	key := models.NewConversationKey(s.localID, peerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, ok := s.convs[key]
	if !ok {
		return true
	}
	return cache.hasMore || !cache.loaded
}
