package sink

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

// LogSink writes a line per event. It is the default observer of the daemon.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.ConversationsChanged:
		s.log.Info("Conversations changed", "top", top(evt.Conversations))
	case event.ConversationsLoaded:
		s.log.Info(fmt.Sprintf("%d conversation(s) loaded", len(evt.Conversations)), "skipped", evt.Skipped)
	case event.ConversationsUnavailable:
		s.log.Warn("Conversations unavailable", "error", evt.Err)
	case event.MessageAppended:
		s.log.Info("Message", "from", evt.Message.SenderID, "at", evt.Message.Display(), "body", evt.Message.Body)
	case event.HistoryReplaced:
		s.log.Info(fmt.Sprintf("%d message(s) in thread", len(evt.Messages)), "pair", evt.Pair.Key())
	case event.MessageUndeliverable:
		s.log.Warn("Message undeliverable", "delivery_id", evt.DeliveryID, "error", evt.Err)
	default:
		s.log.Debug("Unhandled event", "stream", e.Stream())
	}
	return nil
}

func top(conversations []domain.Conversation) []string {
	head := conversations
	if len(head) > 3 {
		head = head[:3]
	}
	return lo.Map(head, func(c domain.Conversation, _ int) string {
		name := c.DisplayName
		if name == "" {
			name = c.PeerID
		}
		return name
	})
}
