package backend

import (
	"chat-sync/errors"
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type tokenBody struct {
	Token string `json:"token"`
}

func (c *Client) GetToken(ctx context.Context, uid string) (string, error) {
	var body tokenBody
	err := c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/tokens/" + url.PathEscape(uid),
		out:        &body,
		idempotent: true,
	})
	if isNotFound(err) {
		return "", fmt.Errorf("%w: %s", errors.ErrTokenNotFound, uid)
	}
	if err != nil {
		return "", err
	}
	if body.Token == "" {
		return "", fmt.Errorf("%w: %s", errors.ErrTokenNotFound, uid)
	}
	return body.Token, nil
}

// SetToken replaces the push token of uid. Replaying it is harmless, so it is retried.
func (c *Client) SetToken(ctx context.Context, uid, token string) error {
	return c.do(ctx, call{
		method:     http.MethodPut,
		path:       "/tokens/" + url.PathEscape(uid),
		body:       tokenBody{Token: token},
		idempotent: true,
	})
}
