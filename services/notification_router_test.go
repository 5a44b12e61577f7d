package services

import (
	"chat-sync/domain"
	"chat-sync/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func chatPayload(sender, recipient, body string) map[string]string {
	return map[string]string{
		domain.KeyTopic:       domain.TopicChat,
		domain.KeyUserID:      sender,
		domain.KeyRecipientID: recipient,
		domain.KeyMessage:     body,
		domain.KeyVisibility:  "ACTIVE",
		domain.KeyType:        "TEXT",
		domain.KeySendingTime: "2024-05-01T10:00:01Z",
	}
}

func TestNotificationRouter_Chat_Without_Session(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	f := newFixture(ctrl)
	router := NewNotificationRouter(slog.Default(), f.index, f.tokens, mocks.NewMockAlertPresenter(ctrl))

	// Given a chat push carrying the sender's token
	payload := chatPayload("u2", "u1", "hello")
	payload[domain.KeyFCMToken] = "tok-u2"
	f.registry.EXPECT().GetToken(gomock.Any(), gomock.Any()).Times(0)

	// When it is routed with no thread open
	outcome := router.Route(context.Background(), payload)

	// Then the conversation list is updated and the token is known
	req.Equal(domain.RoutedChat, outcome)
	conversation, ok := f.index.Get(domain.NewPair("u1", "u2"))
	req.True(ok)
	req.Equal("hello", conversation.LastMessageBody)
	req.Zero(f.store.Len())

	token, err := f.tokens.PeerToken(context.Background(), "u2")
	req.NoError(err)
	req.Equal("tok-u2", token)
}

func TestNotificationRouter_Chat_Into_Active_Thread(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	f := newFixture(ctrl)
	router := NewNotificationRouter(slog.Default(), f.index, f.tokens, mocks.NewMockAlertPresenter(ctrl))
	session := f.session("c1")
	router.Attach(session)

	// When pushes arrive for the open pair and for another pair
	req.Equal(domain.RoutedChat, router.Route(context.Background(), chatPayload("u2", "u1", "hello")))
	req.Equal(domain.RoutedChat, router.Route(context.Background(), chatPayload("u3", "u1", "psst")))

	// Then only the open pair's message is shown in the thread, both are indexed
	snapshot := f.store.Snapshot()
	req.Len(snapshot, 1)
	req.Equal("hello", snapshot[0].Body)
	req.Equal(2, f.index.Len())

	// When the thread is closed, pushes no longer reach it
	router.Detach(session)
	req.Equal(domain.RoutedChat, router.Route(context.Background(), chatPayload("u2", "u1", "later")))
	req.Len(f.store.Snapshot(), 1)
}

func TestNotificationRouter_Drops_Malformed_Chat(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(ctrl)
	router := NewNotificationRouter(slog.Default(), f.index, f.tokens, mocks.NewMockAlertPresenter(ctrl))

	cases := map[string]func(map[string]string){
		"missing message":  func(p map[string]string) { delete(p, domain.KeyMessage) },
		"missing sender":   func(p map[string]string) { delete(p, domain.KeyUserID) },
		"unknown type":     func(p map[string]string) { p[domain.KeyType] = "AUDIO" },
		"bad sending time": func(p map[string]string) { p[domain.KeySendingTime] = "yesterday" },
		"self message":     func(p map[string]string) { p[domain.KeyRecipientID] = "u2" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			payload := chatPayload("u2", "u1", "hello")
			mutate(payload)

			req.Equal(domain.Dropped, router.Route(context.Background(), payload))
			req.Zero(f.index.Len())
		})
	}
}

func TestNotificationRouter_Alerts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(ctrl)

	t.Run("should present a notify push", func(t *testing.T) {
		req := require.New(t)
		presenter := mocks.NewMockAlertPresenter(ctrl)
		router := NewNotificationRouter(slog.Default(), f.index, f.tokens, presenter)
		presenter.EXPECT().Present(gomock.Any(), "Maintenance", "Back at 6").Return(nil).Times(1)

		outcome := router.Route(context.Background(), map[string]string{
			domain.KeyTopic: domain.TopicNotify,
			domain.KeyTitle: "Maintenance",
			domain.KeyBody:  "Back at 6",
		})
		req.Equal(domain.RoutedAlert, outcome)
	})

	t.Run("should still route when the presenter fails", func(t *testing.T) {
		req := require.New(t)
		presenter := mocks.NewMockAlertPresenter(ctrl)
		router := NewNotificationRouter(slog.Default(), f.index, f.tokens, presenter)
		presenter.EXPECT().Present(gomock.Any(), gomock.Any(), gomock.Any()).Return(fmt.Errorf("no tty"))

		outcome := router.Route(context.Background(), map[string]string{
			domain.KeyTopic: domain.TopicNotify,
			domain.KeyTitle: "Hi",
		})
		req.Equal(domain.RoutedAlert, outcome)
	})

	t.Run("should drop a notify push without title", func(t *testing.T) {
		req := require.New(t)
		presenter := mocks.NewMockAlertPresenter(ctrl)
		router := NewNotificationRouter(slog.Default(), f.index, f.tokens, presenter)
		presenter.EXPECT().Present(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		outcome := router.Route(context.Background(), map[string]string{domain.KeyTopic: domain.TopicNotify})
		req.Equal(domain.Dropped, outcome)
	})

	t.Run("should recover a panicking presenter", func(t *testing.T) {
		req := require.New(t)
		presenter := mocks.NewMockAlertPresenter(ctrl)
		router := NewNotificationRouter(slog.Default(), f.index, f.tokens, presenter)
		presenter.EXPECT().Present(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, string, string) error { panic("boom") })

		outcome := router.Route(context.Background(), map[string]string{
			domain.KeyTopic: domain.TopicNotify,
			domain.KeyTitle: "Hi",
		})
		req.Equal(domain.Dropped, outcome)
	})
}

func TestNotificationRouter_Unknown_Topic(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	f := newFixture(ctrl)
	router := NewNotificationRouter(slog.Default(), f.index, f.tokens, mocks.NewMockAlertPresenter(ctrl))

	req.Equal(domain.Dropped, router.Route(context.Background(), map[string]string{domain.KeyTopic: "promo"}))
	req.Equal(domain.Dropped, router.Route(context.Background(), map[string]string{}))
	req.Zero(f.index.Len())
}
