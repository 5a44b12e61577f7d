package projection

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"slices"
	"sort"
	"sync"
)

// MessageStore holds the active thread. It only appends or replaces wholesale:
// a message already in the store never moves. Events are published under mu,
// in the order the changes were applied.
type MessageStore struct {
	mu        sync.RWMutex
	pair      domain.Pair
	messages  []domain.Message
	publisher contract.Publisher
}

func NewMessageStore(pair domain.Pair, publisher contract.Publisher) *MessageStore {
	return &MessageStore{pair: pair, publisher: publisher}
}

func (s *MessageStore) Pair() domain.Pair {
	return s.pair
}

// Append adds message at the end of the thread, whatever its SentAt.
func (s *MessageStore) Append(message domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	s.publisher.Publish(event.MessageAppended{Pair: s.pair, Message: message})
}

// Replace resyncs the thread with messages sorted by SentAt ascending. Equal
// timestamps keep their input order, so the same input always yields the same thread.
func (s *MessageStore) Replace(messages []domain.Message) {
	sorted := slices.Clone(messages)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].SentAt.Before(sorted[b].SentAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = sorted
	s.publisher.Publish(event.HistoryReplaced{Pair: s.pair, Messages: slices.Clone(sorted)})
}

// Snapshot returns a copy of the thread.
func (s *MessageStore) Snapshot() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
