package domain

import "time"

// Conversation is the ledger head of a two-party thread as seen by its owner.
// ID stays empty until the backend has persisted the conversation.
type Conversation struct {
	ID              string
	Participants    Pair
	PeerID          string
	DisplayName     string
	DisplayImage    string
	LastMessageBody string
	LastMessageAt   time.Time
}

// NewConversation opens a conversation from its first message, seen from owner's side.
func NewConversation(owner string, m Message) Conversation {
	return Conversation{
		ID:              m.ConversationID,
		Participants:    m.Pair(),
		PeerID:          peerOf(owner, m),
		LastMessageBody: m.Body,
		LastMessageAt:   m.SentAt,
	}
}

func peerOf(owner string, m Message) string {
	if owner == m.SenderID {
		return m.RecipientID
	}
	if owner == m.RecipientID {
		return m.SenderID
	}
	return m.SenderID
}

// Touch applies a message of the same pair. Older messages never move
// LastMessageAt backwards; they only contribute a missing conversation id.
// It reports whether anything changed.
func (c *Conversation) Touch(m Message) bool {
	changed := false
	if c.ID == "" && m.ConversationID != "" {
		c.ID = m.ConversationID
		changed = true
	}
	if m.SentAt.Before(c.LastMessageAt) {
		return changed
	}
	if c.LastMessageBody != m.Body || !c.LastMessageAt.Equal(m.SentAt) {
		c.LastMessageBody = m.Body
		c.LastMessageAt = m.SentAt
		changed = true
	}
	return changed
}

// Describe fills the display fields from the peer profile.
func (c *Conversation) Describe(p Profile) bool {
	if p.ID == "" || p.ID != c.PeerID {
		return false
	}
	if c.DisplayName == p.DisplayName && c.DisplayImage == p.Image {
		return false
	}
	c.DisplayName = p.DisplayName
	c.DisplayImage = p.Image
	return true
}

// Merge folds another record of the same pair into c: a known id is kept,
// display fields follow other when set, and metadata is newer-wins.
func (c *Conversation) Merge(other Conversation) bool {
	changed := false
	if c.ID == "" && other.ID != "" {
		c.ID = other.ID
		changed = true
	}
	if other.DisplayName != "" && other.DisplayName != c.DisplayName {
		c.DisplayName = other.DisplayName
		changed = true
	}
	if other.DisplayImage != "" && other.DisplayImage != c.DisplayImage {
		c.DisplayImage = other.DisplayImage
		changed = true
	}
	if other.LastMessageAt.After(c.LastMessageAt) {
		c.LastMessageBody = other.LastMessageBody
		c.LastMessageAt = other.LastMessageAt
		changed = true
	}
	return changed
}

// Newer orders conversations by recency, ties broken by id then pair key.
func Newer(a, b Conversation) bool {
	if !a.LastMessageAt.Equal(b.LastMessageAt) {
		return a.LastMessageAt.After(b.LastMessageAt)
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return a.Participants.Key() < b.Participants.Key()
}
