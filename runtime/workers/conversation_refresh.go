package workers

import (
	"chat-sync/domain"
	"context"
	"log/slog"
	"time"
)

type conversationLoader interface {
	LoadAll(ctx context.Context, currentUserID string) ([]domain.Conversation, error)
}

// ConversationRefreshWorker reloads the conversation list of userID every interval.
// A failed load is logged and retried at the next tick; it never stops the worker.
type ConversationRefreshWorker struct {
	log      *slog.Logger
	loader   conversationLoader
	userID   string
	interval time.Duration
}

func NewConversationRefreshWorker(log *slog.Logger, loader conversationLoader,
	userID string, interval time.Duration) *ConversationRefreshWorker {
	return &ConversationRefreshWorker{log: log, loader: loader, userID: userID, interval: interval}
}

func (w *ConversationRefreshWorker) Run(ctx context.Context) error {
	w.log.Info("Starting conversation refresh worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.loader.LoadAll(ctx, w.userID); err != nil {
				w.log.Warn("Conversation refresh failed", "error", err)
			}
		}
	}
}
