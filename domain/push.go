package domain

import (
	"chat-sync/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

const (
	TopicChat   = "chat"
	TopicNotify = "notify"
)

// Push payload keys.
const (
	KeyTopic       = "topic"
	KeySenderID    = "senderId"
	KeyUserID      = "userId"
	KeyRecipientID = "recipientId"
	KeyMessage     = "message"
	KeyVisibility  = "visibility"
	KeyType        = "type"
	KeySendingTime = "sendingTime"
	KeyFCMToken    = "fcmToken"
	KeyTitle       = "title"
	KeyBody        = "body"
)

type RouteOutcome int

const (
	Dropped RouteOutcome = iota
	RoutedChat
	RoutedAlert
)

func (o RouteOutcome) String() string {
	switch o {
	case RoutedChat:
		return "chat"
	case RoutedAlert:
		return "alert"
	default:
		return "dropped"
	}
}

// ChatPayload is a decoded topic=chat push.
type ChatPayload struct {
	SenderID    string `validate:"required"`
	RecipientID string `validate:"required,nefield=SenderID"`
	Message     string
	Visibility  string `validate:"required,oneof=ACTIVE DELETE DELETED HIDDEN"`
	Type        string `validate:"required,oneof=TEXT IMAGE VIDEO"`
	SendingTime string `validate:"required"`
	FCMToken    string
}

// DecodeChatPayload reads a chat push. senderId falls back to userId, which is
// the key our own fan-out uses.
func DecodeChatPayload(payload map[string]string) (ChatPayload, error) {
	sender := payload[KeySenderID]
	if sender == "" {
		sender = payload[KeyUserID]
	}
	p := ChatPayload{
		SenderID:    sender,
		RecipientID: payload[KeyRecipientID],
		Message:     payload[KeyMessage],
		Visibility:  payload[KeyVisibility],
		Type:        payload[KeyType],
		SendingTime: payload[KeySendingTime],
		FCMToken:    payload[KeyFCMToken],
	}
	if _, ok := payload[KeyMessage]; !ok {
		return ChatPayload{}, fmt.Errorf("%w: missing %s", errors.ErrMalformedPayload, KeyMessage)
	}
	if err := validate.Struct(p); err != nil {
		return ChatPayload{}, fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	return p, nil
}

func (p ChatPayload) ToMessage() (Message, error) {
	m, err := MessageDTO{
		SenderID:    p.SenderID,
		RecipientID: p.RecipientID,
		Message:     p.Message,
		Visibility:  p.Visibility,
		Type:        p.Type,
		SendingTime: p.SendingTime,
	}.ToMessage()
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	return m, nil
}

// AlertPayload is a decoded topic=notify push.
type AlertPayload struct {
	Title string `validate:"required"`
	Body  string
}

// TopicOf returns the topic of payload. Anything but chat or notify is ErrUnknownTopic.
func TopicOf(payload map[string]string) (string, error) {
	switch topic := payload[KeyTopic]; topic {
	case TopicChat, TopicNotify:
		return topic, nil
	default:
		return topic, fmt.Errorf("%w: %q", errors.ErrUnknownTopic, topic)
	}
}

func DecodeAlertPayload(payload map[string]string) (AlertPayload, error) {
	p := AlertPayload{Title: payload[KeyTitle], Body: payload[KeyBody]}
	if err := validate.Struct(p); err != nil {
		return AlertPayload{}, fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	return p, nil
}

// PushRequest is the legacy FCM send body.
type PushRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Data            map[string]string `json:"data"`
	Notification    *PushNotification `json:"notification,omitempty"`
}

type PushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type PushResponse struct {
	MulticastID int64        `json:"multicast_id"`
	Success     int          `json:"success"`
	Failure     int          `json:"failure"`
	Results     []PushResult `json:"results"`
}

type PushResult struct {
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewChatPush builds the fan-out request nudging peerToken about m.
func NewChatPush(peerToken, ownToken, senderName string, m Message) PushRequest {
	return PushRequest{
		RegistrationIDs: []string{peerToken},
		Data: map[string]string{
			KeyTopic:       TopicChat,
			KeyUserID:      m.SenderID,
			KeyRecipientID: m.RecipientID,
			KeyMessage:     m.Body,
			KeyVisibility:  m.Visibility.Wire(),
			KeyType:        string(m.Kind),
			KeySendingTime: FormatTime(m.SentAt),
			KeyFCMToken:    ownToken,
		},
		Notification: &PushNotification{Title: senderName, Body: m.Body},
	}
}
