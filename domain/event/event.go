package event

import (
	"chat-sync/domain"

	"github.com/google/uuid"
)

// Stream names the audience of an event: the conversation list or one thread.
type Stream string

const ConversationsStream Stream = "conversations"

func ThreadStream(pair domain.Pair) Stream {
	return Stream("thread:" + pair.Key())
}

type DomainEvent interface {
	Stream() Stream
}

// IsIncremental reports whether e is a delta that no later event repeats.
// Snapshot events carry the whole state, so losing one is repaired by the next.
func IsIncremental(e DomainEvent) bool {
	switch e.(type) {
	case MessageAppended, MessageUndeliverable:
		return true
	default:
		return false
	}
}

// ConversationsChanged carries the full sorted list after an upsert, bind or merge.
type ConversationsChanged struct {
	Conversations []domain.Conversation
}

func (ConversationsChanged) Stream() Stream { return ConversationsStream }

// ConversationsLoaded is emitted once per bulk load, after every peer lookup settled.
type ConversationsLoaded struct {
	Conversations []domain.Conversation
	Skipped       int
}

func (ConversationsLoaded) Stream() Stream { return ConversationsStream }

// ConversationsUnavailable is the empty-state signal of a failed bulk fetch.
type ConversationsUnavailable struct {
	Err error
}

func (ConversationsUnavailable) Stream() Stream { return ConversationsStream }

type MessageAppended struct {
	Pair    domain.Pair
	Message domain.Message
}

func (m MessageAppended) Stream() Stream { return ThreadStream(m.Pair) }

type HistoryReplaced struct {
	Pair     domain.Pair
	Messages []domain.Message
}

func (h HistoryReplaced) Stream() Stream { return ThreadStream(h.Pair) }

type MessageUndeliverable struct {
	Pair       domain.Pair
	DeliveryID uuid.UUID
	Message    domain.Message
	Err        error
}

func (m MessageUndeliverable) Stream() Stream { return ThreadStream(m.Pair) }
