package backend

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type profileBody struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Image       string `json:"image"`
}

func (c *Client) GetProfile(ctx context.Context, uid string) (domain.Profile, error) {
	var body profileBody
	err := c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/users/" + url.PathEscape(uid),
		out:        &body,
		idempotent: true,
	})
	if isNotFound(err) {
		return domain.Profile{}, fmt.Errorf("%w: %s", errors.ErrProfileNotFound, uid)
	}
	if err != nil {
		return domain.Profile{}, err
	}
	if body.ID == "" {
		body.ID = uid
	}
	return domain.Profile{ID: body.ID, DisplayName: body.DisplayName, Image: body.Image}, nil
}
