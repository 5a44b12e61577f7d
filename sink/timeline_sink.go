package sink

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"slices"
	"sync"
)

// Timeline holds the latest view of the conversation list and of the threads it
// was subscribed to, as rebuilt from events.
type Timeline struct {
	mu            sync.RWMutex
	conversations []domain.Conversation
	unavailable   bool
	skipped       int
	threads       map[domain.Pair][]domain.Message
	undeliverable []event.MessageUndeliverable
}

func NewTimeline() *Timeline {
	return &Timeline{threads: make(map[domain.Pair][]domain.Message)}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch evt := e.(type) {
	case event.ConversationsChanged:
		t.conversations = evt.Conversations
		t.unavailable = false
	case event.ConversationsLoaded:
		t.conversations = evt.Conversations
		t.skipped = evt.Skipped
		t.unavailable = false
	case event.ConversationsUnavailable:
		t.unavailable = true
	case event.MessageAppended:
		t.threads[evt.Pair] = append(t.threads[evt.Pair], evt.Message)
	case event.HistoryReplaced:
		t.threads[evt.Pair] = slices.Clone(evt.Messages)
	case event.MessageUndeliverable:
		t.undeliverable = append(t.undeliverable, evt)
	}
	return nil
}

func (t *Timeline) Conversations() []domain.Conversation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.conversations)
}

// Unavailable reports whether the last bulk fetch failed with nothing loaded since.
func (t *Timeline) Unavailable() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.unavailable
}

func (t *Timeline) Skipped() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.skipped
}

func (t *Timeline) Thread(pair domain.Pair) []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.threads[pair])
}

func (t *Timeline) Undeliverable() []event.MessageUndeliverable {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.undeliverable)
}
