package backend

import (
	"chat-sync/domain"
	"context"
	"net/http"
	"net/url"
)

// SendMessage persists dto. The backend echoes the stored record, which is authoritative.
func (c *Client) SendMessage(ctx context.Context, dto domain.MessageDTO) (domain.MessageDTO, error) {
	var stored domain.MessageDTO
	err := c.do(ctx, call{method: http.MethodPost, path: "/messages", body: dto, out: &stored})
	return stored, err
}

// FetchMessages returns every message involving senderUID.
func (c *Client) FetchMessages(ctx context.Context, senderUID string) ([]domain.MessageDTO, error) {
	var messages []domain.MessageDTO
	err := c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/messages?uid=" + url.QueryEscape(senderUID),
		out:        &messages,
		idempotent: true,
	})
	return messages, err
}
