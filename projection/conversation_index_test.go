package projection

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/mocks"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recorder struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (r *recorder) Publish(e event.DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Events() []event.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.DomainEvent(nil), r.events...)
}

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func message(t *testing.T, sender, recipient, body string, at time.Time) domain.Message {
	m, err := domain.NewMessage(sender, recipient, body, domain.KindText, at)
	require.NoError(t, err)
	return m
}

func newIndex(owner string) (*ConversationIndex, *recorder) {
	rec := &recorder{}
	return NewConversationIndex(slog.Default(), owner, nil, nil, nil, rec, 50*time.Millisecond), rec
}

func TestConversationIndex_Scenario_Send_Then_Push(t *testing.T) {
	req := require.New(t)
	index, rec := newIndex("u1")

	// Given u1 sends "hi" to u2 with no prior conversation
	created, err := index.Upsert(message(t, "u1", "u2", "hi", t0))
	req.NoError(err)

	// Then one conversation exists for {u1,u2}
	req.Equal(1, index.Len())
	req.Equal(domain.NewPair("u1", "u2"), created.Participants)
	req.Equal("u2", created.PeerID)
	req.Equal("hi", created.LastMessageBody)
	req.Equal(t0, created.LastMessageAt)

	// When a push for the same pair arrives one second later, from the other side
	updated, err := index.Upsert(message(t, "u2", "u1", "hello", t0.Add(time.Second)))
	req.NoError(err)

	// Then the same conversation is updated in place and stays at position 0
	snapshot := index.Snapshot()
	req.Len(snapshot, 1)
	req.Equal(created.Participants, updated.Participants)
	req.Equal("hello", snapshot[0].LastMessageBody)
	req.Equal(t0.Add(time.Second), snapshot[0].LastMessageAt)
	req.Len(rec.Events(), 2)
}

func TestConversationIndex_Dedup_Concurrent_Symmetric_Upserts(t *testing.T) {
	req := require.New(t)
	index, _ := newIndex("u1")

	// When many goroutines upsert the same pair, alternating sides
	var wg sync.WaitGroup
	for n := 0; n < 200; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sender, recipient := "u1", "u2"
			if n%2 == 0 {
				sender, recipient = recipient, sender
			}
			_, err := index.Upsert(message(t, sender, recipient, fmt.Sprintf("m%d", n), t0.Add(time.Duration(n)*time.Second)))
			req.NoError(err)
		}(n)
	}
	wg.Wait()

	// Then exactly one conversation exists, carrying the most recent message
	snapshot := index.Snapshot()
	req.Len(snapshot, 1)
	req.Equal("m199", snapshot[0].LastMessageBody)
	req.Equal(t0.Add(199*time.Second), snapshot[0].LastMessageAt)
}

func TestConversationIndex_Sort_Moves_Touched_To_Front(t *testing.T) {
	req := require.New(t)
	index, _ := newIndex("me")

	// Given three conversations at T1 < T2 < T3
	_, _ = index.Upsert(message(t, "me", "p1", "one", t0.Add(1*time.Minute)))
	_, _ = index.Upsert(message(t, "p2", "me", "two", t0.Add(2*time.Minute)))
	_, _ = index.Upsert(message(t, "me", "p3", "three", t0.Add(3*time.Minute)))
	req.Equal([]string{"p3", "p2", "p1"}, peers(index.Snapshot()))

	// When the T1 conversation gets a message at T4 > T3
	_, err := index.Upsert(message(t, "p1", "me", "four", t0.Add(4*time.Minute)))
	req.NoError(err)

	// Then it moves to the front, and p3/p2 keep their relative order
	req.Equal([]string{"p1", "p3", "p2"}, peers(index.Snapshot()))
}

func TestConversationIndex_Ties_Are_Deterministic(t *testing.T) {
	req := require.New(t)
	index, _ := newIndex("me")

	_, _ = index.Upsert(message(t, "me", "zed", "a", t0))
	_, _ = index.Upsert(message(t, "me", "amy", "b", t0))
	first := peers(index.Snapshot())

	// When re-sorting repeatedly with equal timestamps, the order does not flicker
	for n := 0; n < 10; n++ {
		_, _ = index.Upsert(message(t, "zed", "me", "a", t0))
		req.Equal(first, peers(index.Snapshot()))
	}
}

func TestConversationIndex_Older_Message_Does_Not_Regress(t *testing.T) {
	req := require.New(t)
	index, rec := newIndex("u1")

	_, _ = index.Upsert(message(t, "u1", "u2", "latest", t0.Add(time.Hour)))

	// When a late message arrives out of order
	conversation, err := index.Upsert(message(t, "u2", "u1", "stale", t0))
	req.NoError(err)

	// Then the conversation keeps its latest metadata and nothing is published
	req.Equal("latest", conversation.LastMessageBody)
	req.Equal(t0.Add(time.Hour), conversation.LastMessageAt)
	req.Len(rec.Events(), 1)
}

func TestConversationIndex_Upsert_Rejects_Self_Message(t *testing.T) {
	req := require.New(t)
	index, _ := newIndex("u1")

	_, err := index.Upsert(domain.Message{SenderID: "u1", RecipientID: "u1", Kind: domain.KindText, Visibility: domain.VisibilityActive})

	req.ErrorIs(err, errors.ErrInvalidParticipants)
	req.Zero(index.Len())
}

func TestConversationIndex_Bind_Fills_Id_And_Caches(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockConversationCache(ctrl)
	index := NewConversationIndex(slog.Default(), "u1", nil, nil, cache, &recorder{}, time.Second)

	m := message(t, "u1", "u2", "hi", t0)
	cache.EXPECT().Save("u1", gomock.Any()).Return(nil).Times(1)
	_, err := index.Upsert(m)
	req.NoError(err)

	// When the backend answers with the conversation id
	cache.EXPECT().Save("u1", gomock.Any()).
		Do(func(_ string, c domain.Conversation) {
			req.Equal("conv-1", c.ID)
		}).Return(nil).Times(1)
	err = index.Bind(m, domain.Conversation{ID: "conv-1"})
	req.NoError(err)

	// Then the in-memory record carries it
	conversation, ok := index.Get(domain.NewPair("u2", "u1"))
	req.True(ok)
	req.Equal("conv-1", conversation.ID)
	req.Equal(1, index.Len())
}

func TestConversationIndex_Remember_Describes_Conversations(t *testing.T) {
	req := require.New(t)
	index, _ := newIndex("u1")

	_, _ = index.Upsert(message(t, "u1", "u2", "hi", t0))

	// When the peer profile becomes known
	index.Remember(domain.Profile{ID: "u2", DisplayName: "Bob", Image: "bob.png"})

	// Then existing and future conversations get display fields
	req.Equal("Bob", index.Snapshot()[0].DisplayName)
	index.Remember(domain.Profile{ID: "u3", DisplayName: "Cid"})
	_, _ = index.Upsert(message(t, "u1", "u3", "y", t0.Add(time.Minute)))
	c, _ := index.Get(domain.NewPair("u1", "u3"))
	req.Equal("Cid", c.DisplayName)
}

func TestConversationIndex_LoadAll_Skips_Unresolved_Peers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockConversationGateway(ctrl)
	directory := mocks.NewMockProfileDirectory(ctrl)
	rec := &recorder{}
	index := NewConversationIndex(slog.Default(), "", gateway, directory, nil, rec, 30*time.Millisecond)

	// Given three raw conversations
	gateway.EXPECT().ListConversations(gomock.Any(), "u1").Return([]domain.ConversationDTO{
		{ID: "c2", SenderID: "u1", RecipientID: "u2", LastMessage: "a", LastMessageTime: "2024-05-01T10:00:00Z"},
		{ID: "c3", SenderID: "u3", RecipientID: "u1", LastMessage: "b", LastMessageTime: "2024-05-01T11:00:00Z"},
		{ID: "c4", SenderID: "u1", RecipientID: "u4", LastMessage: "c", LastMessageTime: "2024-05-01T12:00:00Z"},
	}, nil).Times(1)
	// And two peer lookups succeed
	directory.EXPECT().GetProfile(gomock.Any(), "u2").Return(domain.Profile{ID: "u2", DisplayName: "Bob"}, nil).Times(1)
	directory.EXPECT().GetProfile(gomock.Any(), "u3").Return(domain.Profile{ID: "u3", DisplayName: "Cid"}, nil).Times(1)
	// And one times out
	directory.EXPECT().GetProfile(gomock.Any(), "u4").
		DoAndReturn(func(ctx context.Context, _ string) (domain.Profile, error) {
			<-ctx.Done()
			return domain.Profile{}, ctx.Err()
		}).Times(1)

	// When loading everything
	loaded, err := index.LoadAll(context.Background(), "u1")

	// Then exactly the two resolved conversations are emitted, sorted by recency
	req.NoError(err)
	req.Len(loaded, 2)
	req.Equal([]string{"c3", "c2"}, lo.Map(loaded, func(c domain.Conversation, _ int) string { return c.ID }))
	req.Equal("Cid", loaded[0].DisplayName)
	req.Equal("Bob", loaded[1].DisplayName)

	events := rec.Events()
	req.Len(events, 1)
	evt, ok := events[0].(event.ConversationsLoaded)
	req.True(ok)
	req.Equal(1, evt.Skipped)
	req.Equal(loaded, evt.Conversations)
}

func TestConversationIndex_LoadAll_Failure_Signals_Empty_State(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockConversationGateway(ctrl)
	rec := &recorder{}
	index := NewConversationIndex(slog.Default(), "u1", gateway, nil, nil, rec, time.Second)

	gateway.EXPECT().ListConversations(gomock.Any(), "u1").Return(nil, fmt.Errorf("connection refused")).Times(1)

	loaded, err := index.LoadAll(context.Background(), "u1")

	req.ErrorIs(err, errors.ErrFetchConversations)
	req.Empty(loaded)
	req.Len(rec.Events(), 1)
	req.IsType(event.ConversationsUnavailable{}, rec.Events()[0])
}

func TestConversationIndex_LoadAll_Converges_With_Concurrent_Push(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockConversationGateway(ctrl)
	directory := mocks.NewMockProfileDirectory(ctrl)
	index := NewConversationIndex(slog.Default(), "u1", gateway, directory, nil, &recorder{}, time.Second)

	lookupStarted := make(chan struct{})
	pushDone := make(chan struct{})
	gateway.EXPECT().ListConversations(gomock.Any(), "u1").Return([]domain.ConversationDTO{
		{ID: "c2", SenderID: "u2", RecipientID: "u1", LastMessage: "old", LastMessageTime: "2024-05-01T10:00:00Z"},
	}, nil).Times(1)
	directory.EXPECT().GetProfile(gomock.Any(), "u2").
		DoAndReturn(func(context.Context, string) (domain.Profile, error) {
			close(lookupStarted)
			<-pushDone
			return domain.Profile{ID: "u2", DisplayName: "Bob"}, nil
		}).Times(1)

	// Given a push for the same pair lands while the load is in flight
	go func() {
		<-lookupStarted
		_, _ = index.Upsert(message(t, "u2", "u1", "fresh", t0.Add(time.Hour)))
		close(pushDone)
	}()

	loaded, err := index.LoadAll(context.Background(), "u1")
	req.NoError(err)

	// Then a single record holds the backend id, the profile and the newest message
	req.Len(loaded, 1)
	req.Equal("c2", loaded[0].ID)
	req.Equal("Bob", loaded[0].DisplayName)
	req.Equal("fresh", loaded[0].LastMessageBody)
}

func TestConversationIndex_Restore_From_Cache(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockConversationCache(ctrl)
	index := NewConversationIndex(slog.Default(), "u1", nil, nil, cache, &recorder{}, time.Second)

	cache.EXPECT().List("u1").Return([]domain.Conversation{
		{ID: "c2", Participants: domain.NewPair("u1", "u2"), PeerID: "u2", LastMessageBody: "a", LastMessageAt: t0},
		{ID: "c3", Participants: domain.NewPair("u1", "u3"), PeerID: "u3", LastMessageBody: "b", LastMessageAt: t0.Add(time.Minute)},
	}, nil).Times(1)

	req.NoError(index.Restore())
	req.Equal([]string{"u3", "u2"}, peers(index.Snapshot()))

	// And a restored conversation is still deduplicated against new messages
	cache.EXPECT().Save("u1", gomock.Any()).Return(nil).Times(1)
	_, err := index.Upsert(message(t, "u2", "u1", "c", t0.Add(time.Hour)))
	req.NoError(err)
	req.Equal([]string{"u2", "u3"}, peers(index.Snapshot()))
}

func peers(conversations []domain.Conversation) []string {
	return lo.Map(conversations, func(c domain.Conversation, _ int) string { return c.PeerID })
}

// gatedPublisher holds its first Publish until gate is closed.
type gatedPublisher struct {
	recorder
	once    sync.Once
	reached chan struct{}
	gate    chan struct{}
}

func newGatedPublisher() *gatedPublisher {
	return &gatedPublisher{reached: make(chan struct{}), gate: make(chan struct{})}
}

func (g *gatedPublisher) Publish(e event.DomainEvent) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.reached)
		<-g.gate
	}
	g.recorder.Publish(e)
}

func TestConversationIndex_Last_Published_Snapshot_Is_Current(t *testing.T) {
	req := require.New(t)
	publisher := newGatedPublisher()
	index := NewConversationIndex(slog.Default(), "u1", nil, nil, nil, publisher, time.Second)

	// Given a first upsert stalled while publishing
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = index.Upsert(message(t, "u2", "u1", "first", t0))
	}()
	<-publisher.reached

	// When a second writer races it
	go func() {
		defer wg.Done()
		_, _ = index.Upsert(message(t, "u3", "u1", "second", t0.Add(time.Minute)))
	}()
	time.Sleep(20 * time.Millisecond)
	close(publisher.gate)
	wg.Wait()

	// Then the last snapshot observers received matches the index
	events := publisher.Events()
	req.Len(events, 2)
	last, ok := events[1].(event.ConversationsChanged)
	req.True(ok)
	req.Equal(index.Snapshot(), last.Conversations)
	req.Len(last.Conversations, 2)
}
