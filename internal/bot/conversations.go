package bot

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxHistoryContents bounds how many turns a conversation keeps. Older
// turns fall off the front.
const maxHistoryContents = 40

// maxConversations bounds the store itself; the least recently used
// conversation is evicted when a new one would exceed it.
const maxConversations = 1024

type conversation struct {
	userID   int64
	contents []Content
	lastUsed time.Time
}

// conversationStore keeps per-conversation history in memory, bound to the
// owning user. Each HTTP request handles its own conversation; the lock
// only serializes access to the map itself plus the short copy in and out.
type conversationStore struct {
	mu      sync.Mutex
	history map[string]*conversation
	now     func() time.Time
}

func newConversationStore() *conversationStore {
	return &conversationStore{
		history: make(map[string]*conversation),
		now:     time.Now,
	}
}

// get returns a copy of the history for id. A fresh conversation id is
// minted when no id is given, the id is unknown, or the conversation
// belongs to another user. Unknown client-supplied ids are never stored.
func (s *conversationStore) get(userID int64, id string) (string, []Content) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if conv, ok := s.history[id]; ok && conv.userID == userID {
			out := make([]Content, len(conv.contents))
			copy(out, conv.contents)
			return id, out
		}
	}
	return uuid.NewString(), nil
}

// put replaces the stored history for id, trimming to the bound and
// evicting the least recently used conversation when the store is full.
func (s *conversationStore) put(userID int64, id string, contents []Content) {
	if len(contents) > maxHistoryContents {
		contents = contents[len(contents)-maxHistoryContents:]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.history[id]; !ok && len(s.history) >= maxConversations {
		s.evictOldest()
	}
	s.history[id] = &conversation{
		userID:   userID,
		contents: contents,
		lastUsed: s.now(),
	}
}

// evictOldest drops the least recently used conversation. Caller holds mu.
func (s *conversationStore) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, conv := range s.history {
		if oldestID == "" || conv.lastUsed.Before(oldest) {
			oldestID = id
			oldest = conv.lastUsed
		}
	}
	if oldestID != "" {
		delete(s.history, oldestID)
	}
}
