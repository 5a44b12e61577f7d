package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrInvalidParticipants = fmt.Errorf("sender and recipient must be distinct non-empty ids")
	ErrInvalidMessageKind  = fmt.Errorf("invalid message kind")
	ErrInvalidVisibility   = fmt.Errorf("invalid message visibility")
	ErrInvalidTimestamp    = fmt.Errorf("invalid ISO-8601 timestamp")

	ErrMalformedPayload = fmt.Errorf("malformed push payload")
	ErrUnknownTopic     = fmt.Errorf("unknown push topic")

	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrTokenNotFound        = fmt.Errorf("push token not found")
	ErrProfileNotFound      = fmt.Errorf("profile not found")

	ErrFetchConversations = fmt.Errorf("conversations could not be fetched")
	ErrSendMessage        = fmt.Errorf("message is undeliverable")

	ErrInvalidSession = fmt.Errorf("invalid session token")
)

// Envelope is the uniform error body returned by the backend on non-2xx responses.
type Envelope struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (e *Envelope) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by an Envelope in the chain, or 0.
func StatusOf(err error) int {
	var envelope *Envelope
	if stderrors.As(err, &envelope) {
		return envelope.Status
	}
	return 0
}

func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case stderrors.Is(err, ErrMalformedPayload),
		stderrors.Is(err, ErrUnknownTopic),
		stderrors.Is(err, ErrInvalidParticipants):
		return status.Error(codes.InvalidArgument, err.Error())
	case stderrors.Is(err, ErrConversationNotFound),
		stderrors.Is(err, ErrTokenNotFound),
		stderrors.Is(err, ErrProfileNotFound):
		return status.Error(codes.NotFound, err.Error())
	case stderrors.Is(err, ErrInvalidSession):
		return status.Error(codes.Unauthenticated, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
