package services

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/projection"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type DeliveryState string

const (
	DeliveryComposed   DeliveryState = "COMPOSED"
	DeliveryPersisting DeliveryState = "PERSISTING"
	DeliveryDelivered  DeliveryState = "DELIVERED"
	DeliveryFailed     DeliveryState = "FAILED"
)

// Delivery follows one locally composed message to the backend.
type Delivery struct {
	ID      uuid.UUID
	Message domain.Message
	State   DeliveryState
	Err     error
}

type SendResult struct {
	Message domain.Message
	Err     error
}

// ChatSession is the pipeline of the thread between the signed-in user and one peer.
// It is the only writer of its MessageStore.
//
// A failed send leaves nothing in the thread: the failure is published as
// MessageUndeliverable and kept in Failed().
type ChatSession struct {
	log            *slog.Logger
	selfID         string
	peer           domain.Profile
	pair           domain.Pair
	expectedID     string
	store          *projection.MessageStore
	index          *projection.ConversationIndex
	messages       contract.MessageGateway
	conversations  contract.ConversationGateway
	directory      contract.ProfileDirectory
	tokens         ITokenService
	pusher         contract.PushSender
	publisher      contract.Publisher
	now            func() time.Time
	mu             sync.Mutex
	conversationID string
	failed         []Delivery
	fanouts        sync.WaitGroup
}

// NewChatSession prepares the session of selfID with peer. conversationID is the
// reference the thread was opened from, empty for a brand-new thread.
func NewChatSession(log *slog.Logger, selfID string, peer domain.Profile, conversationID string,
	store *projection.MessageStore, index *projection.ConversationIndex,
	messages contract.MessageGateway, conversations contract.ConversationGateway,
	directory contract.ProfileDirectory, tokens ITokenService,
	pusher contract.PushSender, publisher contract.Publisher) *ChatSession {
	return &ChatSession{
		log:            log.With("peer_id", peer.ID),
		selfID:         selfID,
		peer:           peer,
		pair:           domain.NewPair(selfID, peer.ID),
		expectedID:     conversationID,
		store:          store,
		index:          index,
		messages:       messages,
		conversations:  conversations,
		directory:      directory,
		tokens:         tokens,
		pusher:         pusher,
		publisher:      publisher,
		now:            time.Now,
		conversationID: conversationID,
	}
}

func (s *ChatSession) Pair() domain.Pair {
	return s.pair
}

func (s *ChatSession) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Open resolves the conversation of the pair and loads the thread history.
// A thread opened from a conversation id the backend no longer knows fails with
// errors.ErrConversationNotFound.
func (s *ChatSession) Open(ctx context.Context) error {
	s.index.Remember(s.peer)

	dto, err := s.conversations.GetConversation(ctx, s.selfID, s.peer.ID)
	switch {
	case stderrors.Is(err, errors.ErrConversationNotFound):
		if s.expectedID != "" {
			return fmt.Errorf("%w: %s", errors.ErrConversationNotFound, s.expectedID)
		}
	case err != nil:
		return fmt.Errorf("open conversation with %s: %w", s.peer.ID, err)
	default:
		conversation, err := dto.ToConversation(s.selfID)
		if err != nil {
			return err
		}
		if s.expectedID != "" && conversation.ID != s.expectedID {
			return fmt.Errorf("%w: %s", errors.ErrConversationNotFound, s.expectedID)
		}
		s.setConversationID(conversation.ID)
		conversation.Describe(s.peer)
		s.index.Merge(conversation)
	}

	history, err := s.messages.FetchMessages(ctx, s.selfID)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	s.ReceiveHistory(history)
	return nil
}

// Send composes a message and persists it. The backend response is authoritative:
// it is what lands in the thread and in the conversation index.
func (s *ChatSession) Send(ctx context.Context, body string, kind domain.MessageKind) (domain.Message, error) {
	composed, err := domain.NewMessage(s.selfID, s.peer.ID, body, kind, s.now())
	if err != nil {
		return domain.Message{}, err
	}
	delivery := Delivery{ID: uuid.New(), Message: composed, State: DeliveryComposed}

	delivery.State = DeliveryPersisting
	dto, err := s.messages.SendMessage(ctx, domain.FromMessage(composed))
	if err != nil {
		return domain.Message{}, s.fail(delivery, err)
	}
	persisted, err := dto.ToMessage()
	if err != nil {
		return domain.Message{}, s.fail(delivery, fmt.Errorf("invalid backend response: %w", err))
	}
	persisted = persisted.WithConversation(s.ConversationID())

	s.store.Append(persisted)
	delivery.State = DeliveryDelivered
	s.log.Debug("Message delivered", "delivery_id", delivery.ID)

	if _, err := s.index.Upsert(persisted); err != nil {
		s.log.Warn("Conversation index not updated", "error", err)
	}
	s.syncConversation(ctx, persisted)
	s.fanout(context.WithoutCancel(ctx), persisted)
	return persisted, nil
}

// SendAsync runs Send on its own goroutine; the channel yields exactly one result.
func (s *ChatSession) SendAsync(ctx context.Context, body string, kind domain.MessageKind) <-chan SendResult {
	results := make(chan SendResult, 1)
	go func() {
		defer close(results)
		m, err := s.Send(ctx, body, kind)
		results <- SendResult{Message: m, Err: err}
	}()
	return results
}

func (s *ChatSession) fail(delivery Delivery, cause error) error {
	delivery.State = DeliveryFailed
	delivery.Err = cause
	s.mu.Lock()
	s.failed = append(s.failed, delivery)
	s.mu.Unlock()

	s.log.Warn("Message undeliverable", "delivery_id", delivery.ID, "error", cause)
	s.publisher.Publish(event.MessageUndeliverable{
		Pair:       s.pair,
		DeliveryID: delivery.ID,
		Message:    delivery.Message,
		Err:        cause,
	})
	return fmt.Errorf("%w: %v", errors.ErrSendMessage, cause)
}

// Failed returns the deliveries that never reached the backend.
func (s *ChatSession) Failed() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Delivery(nil), s.failed...)
}

// syncConversation creates the remote conversation on the first message and
// updates it afterwards, then binds the issued id locally.
func (s *ChatSession) syncConversation(ctx context.Context, m domain.Message) {
	var (
		dto domain.ConversationDTO
		err error
	)
	if s.ConversationID() == "" {
		dto, err = s.conversations.AddConversation(ctx, m)
	} else {
		dto, err = s.conversations.UpdateConversation(ctx, m)
	}
	if err != nil {
		s.log.Warn("Remote conversation not synced", "error", err)
		return
	}
	conversation, err := dto.ToConversation(s.selfID)
	if err != nil {
		s.log.Warn("Invalid conversation returned by backend", "error", err)
		return
	}
	s.setConversationID(conversation.ID)
	if err := s.index.Bind(m, conversation); err != nil {
		s.log.Warn("Conversation not bound", "error", err)
	}
}

func (s *ChatSession) setConversationID(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = id
}

// fanout nudges the peer in the background. It never affects the committed message.
func (s *ChatSession) fanout(ctx context.Context, m domain.Message) {
	s.fanouts.Add(1)
	go func() {
		defer s.fanouts.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("Push fan-out panicked", "panic", r)
			}
		}()
		s.push(ctx, m)
	}()
}

func (s *ChatSession) push(ctx context.Context, m domain.Message) {
	senderName := s.selfID
	if self, err := s.directory.GetProfile(ctx, s.selfID); err != nil {
		s.log.Debug("Own profile unavailable, using id as sender name", "error", err)
	} else if self.DisplayName != "" {
		senderName = self.DisplayName
	}

	token, err := s.tokens.PeerToken(ctx, s.peer.ID)
	if stderrors.Is(err, errors.ErrTokenNotFound) {
		s.log.Debug("Peer has no push token, skipping fan-out")
		return
	}
	if err != nil {
		s.log.Warn("Peer token lookup failed", "error", err)
		return
	}

	response, err := s.pusher.Send(ctx, domain.NewChatPush(token, s.tokens.OwnToken(), senderName, m))
	if err != nil {
		s.log.Warn("Push fan-out failed", "error", err)
		return
	}
	if response.Failure >= 1 {
		causes := lo.FilterMap(response.Results, func(r domain.PushResult, _ int) (string, bool) {
			return r.Error, r.Error != ""
		})
		s.log.Warn(fmt.Sprintf("Push fan-out rejected %d time(s)", response.Failure), "errors", causes)
	}
}

// Wait blocks until every pending fan-out finished.
func (s *ChatSession) Wait() {
	s.fanouts.Wait()
}

// ReceiveHistory replaces the thread with the backend history of the pair.
// Records of other pairs and malformed records are ignored.
func (s *ChatSession) ReceiveHistory(dtos []domain.MessageDTO) {
	conversationID := s.ConversationID()
	messages := lo.FilterMap(dtos, func(dto domain.MessageDTO, _ int) (domain.Message, bool) {
		m, err := dto.ToMessage()
		if err != nil {
			s.log.Warn("Malformed history record", "error", err)
			return domain.Message{}, false
		}
		if m.Pair() != s.pair {
			return domain.Message{}, false
		}
		return m.WithConversation(conversationID), true
	})
	s.store.Replace(messages)
}

// ReceivePush appends a message the backend already holds and updates the index.
func (s *ChatSession) ReceivePush(m domain.Message) {
	if m.Pair() != s.pair {
		s.log.Warn("Push for another conversation ignored", "pair", m.Pair().Key())
		return
	}
	m = m.WithConversation(s.ConversationID())
	s.store.Append(m)
	if _, err := s.index.Upsert(m); err != nil {
		s.log.Warn("Conversation index not updated", "error", err)
	}
}
