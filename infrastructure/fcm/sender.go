// Package fcm sends legacy Firebase Cloud Messaging pushes.
package fcm

import (
	"bytes"
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const DefaultEndpoint = "https://fcm.googleapis.com/fcm/send"

// Sender posts push requests to the FCM endpoint. A send is never retried:
// replaying it would notify the peer twice.
type Sender struct {
	log        *slog.Logger
	endpoint   string
	serverKey  string
	httpClient *http.Client
}

func NewSender(log *slog.Logger, endpoint, serverKey string, timeout time.Duration) *Sender {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Sender{
		log:        log,
		endpoint:   endpoint,
		serverKey:  serverKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *Sender) Send(ctx context.Context, request domain.PushRequest) (domain.PushResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return domain.PushResponse{}, fmt.Errorf("failed to marshal push: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.PushResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.serverKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.PushResponse{}, fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PushResponse{}, fmt.Errorf("failed to read push response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.PushResponse{}, &errors.Envelope{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	var response domain.PushResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return domain.PushResponse{}, fmt.Errorf("failed to parse push response: %w", err)
	}
	s.log.Debug("Push sent", "success", response.Success, "failure", response.Failure)
	return response, nil
}

// StaticTokenSource serves the device token given at start-up.
type StaticTokenSource struct {
	Token string
}

func (s StaticTokenSource) DeviceToken(_ context.Context) (string, error) {
	return s.Token, nil
}
