package projection

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessageStore_History_Then_Push_Is_Append_Monotonic(t *testing.T) {
	req := require.New(t)
	rec := &recorder{}
	pair := domain.NewPair("u1", "u2")
	store := NewMessageStore(pair, rec)

	m1 := message(t, "u1", "u2", "m1", t0)
	m2 := message(t, "u2", "u1", "m2", t0.Add(time.Minute))
	m3 := message(t, "u1", "u2", "m3", t0.Add(2*time.Minute))
	m4 := message(t, "u2", "u1", "m4", t0.Add(3*time.Minute))

	// Given a resync delivered out of order
	store.Replace([]domain.Message{m3, m1, m2})
	// When a push arrives
	store.Append(m4)

	// Then the thread is exactly [m1..m3, m4]
	req.Equal([]domain.Message{m1, m2, m3, m4}, store.Snapshot())

	// When the same history is resynced again, the result is identical
	store.Replace([]domain.Message{m3, m1, m2})
	first := store.Snapshot()
	store.Replace([]domain.Message{m3, m1, m2})
	req.Equal(first, store.Snapshot())
	req.Equal([]domain.Message{m1, m2, m3}, first)

	events := rec.Events()
	req.Len(events, 4)
	req.Equal(event.ThreadStream(pair), events[1].Stream())
}

func TestMessageStore_Append_Never_Reorders(t *testing.T) {
	req := require.New(t)
	store := NewMessageStore(domain.NewPair("u1", "u2"), &recorder{})

	late := message(t, "u1", "u2", "late", t0.Add(time.Hour))
	early := message(t, "u2", "u1", "early", t0)

	// When an older message arrives after a newer one
	store.Append(late)
	store.Append(early)

	// Then it is stored after it anyway
	req.Equal([]domain.Message{late, early}, store.Snapshot())
}

func TestMessageStore_Equal_Timestamps_Keep_Input_Order(t *testing.T) {
	req := require.New(t)
	store := NewMessageStore(domain.NewPair("u1", "u2"), &recorder{})

	a := message(t, "u1", "u2", "a", t0)
	b := message(t, "u2", "u1", "b", t0)

	store.Replace([]domain.Message{b, a})

	req.Equal([]domain.Message{b, a}, store.Snapshot())
}

func TestMessageStore_Snapshot_Is_A_Copy(t *testing.T) {
	req := require.New(t)
	store := NewMessageStore(domain.NewPair("u1", "u2"), &recorder{})
	store.Append(message(t, "u1", "u2", "a", t0))

	snapshot := store.Snapshot()
	snapshot[0].Body = "changed"

	req.Equal("a", store.Snapshot()[0].Body)
	req.Equal(1, store.Len())
}

func TestMessageStore_Observer_Sees_Append_Racing_Replace(t *testing.T) {
	req := require.New(t)
	publisher := newGatedPublisher()
	store := NewMessageStore(domain.NewPair("u1", "u2"), publisher)
	m1 := message(t, "u1", "u2", "m1", t0)
	m2 := message(t, "u2", "u1", "m2", t0.Add(time.Minute))

	// Given a resync stalled while publishing
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		store.Replace([]domain.Message{m1})
	}()
	<-publisher.reached

	// When a push is appended meanwhile
	go func() {
		defer wg.Done()
		store.Append(m2)
	}()
	time.Sleep(20 * time.Millisecond)
	close(publisher.gate)
	wg.Wait()

	// Then folding the events rebuilds exactly the store
	var thread []domain.Message
	for _, e := range publisher.Events() {
		switch evt := e.(type) {
		case event.HistoryReplaced:
			thread = append([]domain.Message(nil), evt.Messages...)
		case event.MessageAppended:
			thread = append(thread, evt.Message)
		}
	}
	req.Equal(store.Snapshot(), thread)
	req.Len(thread, 2)
}
