//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"reflect"
)

// MessageGateway persists and fetches messages on the remote backend.
type MessageGateway interface {
	SendMessage(ctx context.Context, dto domain.MessageDTO) (domain.MessageDTO, error)
	FetchMessages(ctx context.Context, senderUID string) ([]domain.MessageDTO, error)
}

// ConversationGateway persists conversation heads on the remote backend.
// GetConversation returns errors.ErrConversationNotFound for an unknown pair.
type ConversationGateway interface {
	AddConversation(ctx context.Context, message domain.Message) (domain.ConversationDTO, error)
	UpdateConversation(ctx context.Context, message domain.Message) (domain.ConversationDTO, error)
	GetConversation(ctx context.Context, senderID, recipientID string) (domain.ConversationDTO, error)
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationDTO, error)
}

// TokenRegistry maps a user to its single push token.
// GetToken returns errors.ErrTokenNotFound when the user never registered.
type TokenRegistry interface {
	GetToken(ctx context.Context, uid string) (string, error)
	SetToken(ctx context.Context, uid, token string) error
}

type ProfileDirectory interface {
	GetProfile(ctx context.Context, uid string) (domain.Profile, error)
}

// DeviceTokenSource is the platform push service of the current device.
type DeviceTokenSource interface {
	DeviceToken(ctx context.Context) (string, error)
}

type PushSender interface {
	Send(ctx context.Context, request domain.PushRequest) (domain.PushResponse, error)
}

// AlertPresenter shows an OS-level notification.
type AlertPresenter interface {
	Present(ctx context.Context, title, body string) error
}

// ConversationCache keeps conversation heads across restarts.
type ConversationCache interface {
	Save(owner string, conversation domain.Conversation) error
	List(owner string) ([]domain.Conversation, error)
}

type PushRouter interface {
	Route(ctx context.Context, payload map[string]string) domain.RouteOutcome
}

// Publisher hands events over to the fanout without blocking the writer.
type Publisher interface {
	Publish(e event.DomainEvent)
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	GetSinks(stream event.Stream) []EventSink
	Subscribe(observerID string, stream event.Stream, sink EventSink)
	Unsubscribe(observerID string, stream event.Stream)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
