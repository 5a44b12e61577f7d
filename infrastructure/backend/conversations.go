package backend

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"fmt"
	"net/http"
	"net/url"
)

func conversationOf(m domain.Message) domain.ConversationDTO {
	return domain.ConversationDTO{
		ID:              m.ConversationID,
		SenderID:        m.SenderID,
		RecipientID:     m.RecipientID,
		LastMessage:     m.Body,
		LastMessageTime: domain.FormatTime(m.SentAt),
	}
}

// AddConversation creates the conversation of m's pair; the response carries the issued id.
func (c *Client) AddConversation(ctx context.Context, m domain.Message) (domain.ConversationDTO, error) {
	var created domain.ConversationDTO
	err := c.do(ctx, call{method: http.MethodPost, path: "/conversations", body: conversationOf(m), out: &created})
	return created, err
}

// UpdateConversation moves the last-message metadata of m's conversation forward.
func (c *Client) UpdateConversation(ctx context.Context, m domain.Message) (domain.ConversationDTO, error) {
	var updated domain.ConversationDTO
	err := c.do(ctx, call{method: http.MethodPut, path: "/conversations", body: conversationOf(m), out: &updated})
	return updated, err
}

func (c *Client) GetConversation(ctx context.Context, senderID, recipientID string) (domain.ConversationDTO, error) {
	query := url.Values{}
	query.Set("senderId", senderID)
	query.Set("recipientId", recipientID)

	var conversation domain.ConversationDTO
	err := c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/conversations/between?" + query.Encode(),
		out:        &conversation,
		idempotent: true,
	})
	if isNotFound(err) {
		return domain.ConversationDTO{}, fmt.Errorf("%w: %s/%s", errors.ErrConversationNotFound, senderID, recipientID)
	}
	return conversation, err
}

func (c *Client) ListConversations(ctx context.Context, userID string) ([]domain.ConversationDTO, error) {
	var conversations []domain.ConversationDTO
	err := c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/conversations?userId=" + url.QueryEscape(userID),
		out:        &conversations,
		idempotent: true,
	})
	return conversations, err
}
