package services

import (
	"chat-sync/contract"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type ITokenService interface {
	Register(ctx context.Context, userID string) error
	PeerToken(ctx context.Context, uid string) (string, error)
	Remember(uid, token string)
	OwnToken() string
}

// TokenService keeps the push token bookkeeping of the running process: the
// device's own token and a cache of peer tokens. Only found tokens are cached,
// so a peer registering later is picked up by the next send.
type TokenService struct {
	log      *slog.Logger
	registry contract.TokenRegistry
	source   contract.DeviceTokenSource
	mu       sync.RWMutex
	own      string
	peers    map[string]string
}

func NewTokenService(log *slog.Logger, registry contract.TokenRegistry, source contract.DeviceTokenSource) *TokenService {
	return &TokenService{log: log, registry: registry, source: source, peers: make(map[string]string)}
}

// Register publishes the device token of userID. Called on each session start.
func (s *TokenService) Register(ctx context.Context, userID string) error {
	token, err := s.source.DeviceToken(ctx)
	if err != nil {
		return fmt.Errorf("device token: %w", err)
	}
	if token == "" {
		return errors.ErrTokenNotFound
	}
	if err := s.registry.SetToken(ctx, userID, token); err != nil {
		return fmt.Errorf("register token of %s: %w", userID, err)
	}
	s.mu.Lock()
	s.own = token
	s.mu.Unlock()
	s.log.Debug("Push token registered", "user_id", userID)
	return nil
}

// PeerToken returns the push token of uid, asking the registry once per process.
func (s *TokenService) PeerToken(ctx context.Context, uid string) (string, error) {
	s.mu.RLock()
	token, ok := s.peers[uid]
	s.mu.RUnlock()
	if ok {
		return token, nil
	}

	token, err := s.registry.GetToken(ctx, uid)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("%w: %s", errors.ErrTokenNotFound, uid)
	}
	s.Remember(uid, token)
	return token, nil
}

// Remember caches a token learnt elsewhere, for instance from an inbound push.
func (s *TokenService) Remember(uid, token string) {
	if uid == "" || token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[uid] = token
}

func (s *TokenService) OwnToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.own
}
