package sink_test

import (
	"bytes"
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/sink"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	_ contract.EventSink      = (*sink.Timeline)(nil)
	_ contract.EventSink      = (*sink.LogSink)(nil)
	_ contract.AlertPresenter = (*sink.ConsolePresenter)(nil)
)

func message(t *testing.T, sender, recipient, body string, at time.Time) domain.Message {
	m, err := domain.NewMessage(sender, recipient, body, domain.KindText, at)
	require.NoError(t, err)
	return m
}

func TestTimeline_Consume(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	timeline := sink.NewTimeline()
	pair := domain.NewPair("u1", "u2")
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	// Given a failed load followed by a successful one
	req.NoError(timeline.Consume(ctx, event.ConversationsUnavailable{Err: fmt.Errorf("offline")}))
	req.True(timeline.Unavailable())

	loaded := []domain.Conversation{{ID: "c1", Participants: pair, PeerID: "u2"}}
	req.NoError(timeline.Consume(ctx, event.ConversationsLoaded{Conversations: loaded, Skipped: 1}))
	req.False(timeline.Unavailable())
	req.Equal(loaded, timeline.Conversations())
	req.Equal(1, timeline.Skipped())

	// When the thread is resynced then a message is appended
	first := message(t, "u2", "u1", "first", at)
	second := message(t, "u1", "u2", "second", at.Add(time.Second))
	req.NoError(timeline.Consume(ctx, event.HistoryReplaced{Pair: pair, Messages: []domain.Message{first}}))
	req.NoError(timeline.Consume(ctx, event.MessageAppended{Pair: pair, Message: second}))

	// Then the thread reflects both, in arrival order
	req.Equal([]domain.Message{first, second}, timeline.Thread(pair))

	// And a failed delivery is kept aside
	req.NoError(timeline.Consume(ctx, event.MessageUndeliverable{Pair: pair, DeliveryID: uuid.New(), Message: second}))
	req.Len(timeline.Undeliverable(), 1)
	req.Len(timeline.Thread(pair), 2)
}

func TestLogSink_Consume(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	logSink := sink.NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	conversations := []domain.Conversation{
		{PeerID: "u2", DisplayName: "Bob"},
		{PeerID: "u3"},
	}
	req.NoError(logSink.Consume(context.Background(), event.ConversationsChanged{Conversations: conversations}))
	req.NoError(logSink.Consume(context.Background(), event.ConversationsUnavailable{Err: fmt.Errorf("offline")}))

	req.Contains(buf.String(), "Conversations changed")
	req.Contains(buf.String(), "Bob")
	req.Contains(buf.String(), "u3")
	req.Contains(buf.String(), "offline")
}

func TestConsolePresenter_Present(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	presenter := sink.NewConsolePresenter(&buf, false)

	req.NoError(presenter.Present(context.Background(), "Maintenance", "Back at 6"))
	req.Equal("[Maintenance] Back at 6\n", buf.String())

	coloured := sink.NewConsolePresenter(io.Discard, true)
	req.NoError(coloured.Present(context.Background(), "Hi", ""))
}
