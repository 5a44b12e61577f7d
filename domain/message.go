// Package domain contains core concepts of the chat system.
// This file defines Message values and their invariants.
// Messages are immutable once built, except for the conversation backfill.
package domain

import (
	"chat-sync/errors"
	"fmt"
	"strings"
	"time"
)

type MessageKind string

const (
	KindText  MessageKind = "TEXT"
	KindImage MessageKind = "IMAGE"
	KindVideo MessageKind = "VIDEO"
)

func ParseKind(s string) (MessageKind, error) {
	switch k := MessageKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindText, KindImage, KindVideo:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidMessageKind, s)
	}
}

type Visibility string

const (
	VisibilityActive  Visibility = "ACTIVE"
	VisibilityDeleted Visibility = "DELETED"
	VisibilityHidden  Visibility = "HIDDEN"
)

// wireDeleted is how the backend and the push channel spell VisibilityDeleted.
const wireDeleted = "DELETE"

func ParseVisibility(s string) (Visibility, error) {
	switch v := strings.ToUpper(strings.TrimSpace(s)); v {
	case string(VisibilityActive):
		return VisibilityActive, nil
	case wireDeleted, string(VisibilityDeleted):
		return VisibilityDeleted, nil
	case string(VisibilityHidden):
		return VisibilityHidden, nil
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidVisibility, s)
	}
}

// Wire returns the spelling used on the wire.
func (v Visibility) Wire() string {
	if v == VisibilityDeleted {
		return wireDeleted
	}
	return string(v)
}

const displayLayout = "02-01 15:04"

// Message is one entry of a two-party thread.
type Message struct {
	SenderID       string
	RecipientID    string
	Body           string
	Kind           MessageKind
	Visibility     Visibility
	SentAt         time.Time
	ConversationID string
}

// NewMessage builds an ACTIVE message stamped at the given time.
func NewMessage(senderID, recipientID, body string, kind MessageKind, at time.Time) (Message, error) {
	m := Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
		Kind:        kind,
		Visibility:  VisibilityActive,
		SentAt:      at.UTC(),
	}
	return m, m.Validate()
}

func (m Message) Validate() error {
	if m.SenderID == "" || m.RecipientID == "" || m.SenderID == m.RecipientID {
		return fmt.Errorf("%w: %q/%q", errors.ErrInvalidParticipants, m.SenderID, m.RecipientID)
	}
	if _, err := ParseKind(string(m.Kind)); err != nil {
		return err
	}
	if _, err := ParseVisibility(string(m.Visibility)); err != nil {
		return err
	}
	return nil
}

// Pair returns the unordered participant pair of the message.
func (m Message) Pair() Pair {
	return NewPair(m.SenderID, m.RecipientID)
}

// WithConversation backfills the conversation id. An empty id is a no-op.
func (m Message) WithConversation(id string) Message {
	if id != "" {
		m.ConversationID = id
	}
	return m
}

// Display formats SentAt for thread rendering.
func (m Message) Display() string {
	return m.SentAt.Local().Format(displayLayout)
}
