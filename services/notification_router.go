package services

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/projection"
	"context"
	"log/slog"
	"sync"
)

// NotificationRouter dispatches inbound push payloads by topic.
// It never returns an error: malformed or unknown payloads are dropped with a log line.
type NotificationRouter struct {
	log       *slog.Logger
	index     *projection.ConversationIndex
	tokens    ITokenService
	presenter contract.AlertPresenter
	mu        sync.Mutex
	active    *ChatSession
}

func NewNotificationRouter(log *slog.Logger, index *projection.ConversationIndex,
	tokens ITokenService, presenter contract.AlertPresenter) *NotificationRouter {
	return &NotificationRouter{
		log:       log,
		index:     index,
		tokens:    tokens,
		presenter: presenter,
	}
}

// Attach marks session as the thread currently on screen.
func (r *NotificationRouter) Attach(session *ChatSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = session
}

// Detach forgets session if it is still the active one.
func (r *NotificationRouter) Detach(session *ChatSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == session {
		r.active = nil
	}
}

func (r *NotificationRouter) session() *ChatSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *NotificationRouter) Route(ctx context.Context, payload map[string]string) (outcome domain.RouteOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Push routing panicked", "panic", rec)
			outcome = domain.Dropped
		}
	}()

	topic, err := domain.TopicOf(payload)
	if err != nil {
		r.log.Info("Push dropped", "error", err)
		return domain.Dropped
	}
	if topic == domain.TopicChat {
		return r.routeChat(payload)
	}
	return r.routeAlert(ctx, payload)
}

func (r *NotificationRouter) routeChat(payload map[string]string) domain.RouteOutcome {
	decoded, err := domain.DecodeChatPayload(payload)
	if err != nil {
		r.log.Warn("Chat push dropped", "error", err)
		return domain.Dropped
	}
	message, err := decoded.ToMessage()
	if err != nil {
		r.log.Warn("Chat push dropped", "error", err)
		return domain.Dropped
	}
	if decoded.FCMToken != "" {
		r.tokens.Remember(decoded.SenderID, decoded.FCMToken)
	}

	if session := r.session(); session != nil && session.Pair() == message.Pair() {
		session.ReceivePush(message)
		return domain.RoutedChat
	}
	if _, err := r.index.Upsert(message); err != nil {
		r.log.Warn("Chat push not indexed", "error", err)
		return domain.Dropped
	}
	return domain.RoutedChat
}

func (r *NotificationRouter) routeAlert(ctx context.Context, payload map[string]string) domain.RouteOutcome {
	alert, err := domain.DecodeAlertPayload(payload)
	if err != nil {
		r.log.Warn("Alert push dropped", "error", err)
		return domain.Dropped
	}
	if err := r.presenter.Present(ctx, alert.Title, alert.Body); err != nil {
		r.log.Warn("Alert not presented", "error", err)
	}
	return domain.RoutedAlert
}
