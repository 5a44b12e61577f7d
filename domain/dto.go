package domain

import (
	"chat-sync/errors"
	"fmt"
	"strings"
	"time"
)

// Accepted ISO-8601 layouts, most precise first. Values without a zone are UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errors.ErrInvalidTimestamp, s)
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// MessageDTO is the backend representation of a Message.
type MessageDTO struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Message     string `json:"message"`
	Visibility  string `json:"visibility"`
	Type        string `json:"type"`
	SendingTime string `json:"sendingTime"`
}

func FromMessage(m Message) MessageDTO {
	return MessageDTO{
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Message:     m.Body,
		Visibility:  m.Visibility.Wire(),
		Type:        string(m.Kind),
		SendingTime: FormatTime(m.SentAt),
	}
}

func (d MessageDTO) ToMessage() (Message, error) {
	kind, err := ParseKind(d.Type)
	if err != nil {
		return Message{}, err
	}
	visibility, err := ParseVisibility(d.Visibility)
	if err != nil {
		return Message{}, err
	}
	at, err := ParseTime(d.SendingTime)
	if err != nil {
		return Message{}, err
	}
	m := Message{
		SenderID:    d.SenderID,
		RecipientID: d.RecipientID,
		Body:        d.Message,
		Kind:        kind,
		Visibility:  visibility,
		SentAt:      at,
	}
	return m, m.Validate()
}

// ConversationDTO is the backend representation of a Conversation.
type ConversationDTO struct {
	ID              string `json:"id"`
	SenderID        string `json:"senderId"`
	RecipientID     string `json:"recipientId"`
	LastMessage     string `json:"lastMessage"`
	LastMessageTime string `json:"lastMessageTime"`
}

// ToConversation converts the record from owner's side. Display fields are left
// empty: they come from the profile directory.
func (d ConversationDTO) ToConversation(owner string) (Conversation, error) {
	if d.SenderID == "" || d.RecipientID == "" || d.SenderID == d.RecipientID {
		return Conversation{}, fmt.Errorf("%w: %q/%q", errors.ErrInvalidParticipants, d.SenderID, d.RecipientID)
	}
	var at time.Time
	if d.LastMessageTime != "" {
		parsed, err := ParseTime(d.LastMessageTime)
		if err != nil {
			return Conversation{}, err
		}
		at = parsed
	}
	pair := NewPair(d.SenderID, d.RecipientID)
	peer := pair.Other(owner)
	if peer == "" {
		peer = d.SenderID
	}
	return Conversation{
		ID:              d.ID,
		Participants:    pair,
		PeerID:          peer,
		LastMessageBody: d.LastMessage,
		LastMessageAt:   at,
	}, nil
}
