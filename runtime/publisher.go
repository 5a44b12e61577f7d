package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"fmt"
	"log/slog"
	"time"
)

var _ contract.Publisher = (*Publisher)(nil)

// Publisher is the handoff between the stores and the EventFanout worker.
// A full buffer drops snapshot events at once. Incremental events wait up to
// incrementalWait for room first: the store publishing them is held for that
// long, in exchange for threads that do not silently lose a message.
type Publisher struct {
	log             *slog.Logger
	events          chan event.DomainEvent
	incrementalWait time.Duration
}

func NewPublisher(log *slog.Logger, bufferSize int, incrementalWait time.Duration) *Publisher {
	return &Publisher{
		log:             log,
		events:          make(chan event.DomainEvent, bufferSize),
		incrementalWait: incrementalWait,
	}
}

func (p *Publisher) Publish(e event.DomainEvent) {
	select {
	case p.events <- e:
		return
	default:
	}
	if !event.IsIncremental(e) || p.incrementalWait <= 0 {
		p.log.Warn(fmt.Sprintf("Event channel full, dropping %T", e), "stream", e.Stream())
		return
	}

	timer := time.NewTimer(p.incrementalWait)
	defer timer.Stop()
	select {
	case p.events <- e:
	case <-timer.C:
		p.log.Error(fmt.Sprintf("Event channel still full after %s, dropping %T", p.incrementalWait, e), "stream", e.Stream())
	}
}

func (p *Publisher) Events() <-chan event.DomainEvent {
	return p.events
}
