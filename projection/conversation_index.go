// Package projection builds the local views of the chat from observed messages.
// Handles ordering, deduplication, and merges of concurrent inputs.
// Does not render anything: observers receive copies through the Publisher.
package projection

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// ConversationIndex is the deduplicated, recency-sorted set of conversations of
// the signed-in user. Exactly one record exists per unordered participant pair.
// All read-modify-write sequences are serialized by mu. Events are published
// and records written through before mu is released, so observers and the
// cache see changes in the order the index applied them.
type ConversationIndex struct {
	mu            sync.Mutex
	log           *slog.Logger
	owner         string
	byPair        map[domain.Pair]*domain.Conversation
	ordered       []*domain.Conversation
	profiles      map[string]domain.Profile
	gateway       contract.ConversationGateway
	directory     contract.ProfileDirectory
	cache         contract.ConversationCache
	publisher     contract.Publisher
	lookupTimeout time.Duration
}

// NewConversationIndex builds an empty index for owner. cache may be nil.
func NewConversationIndex(log *slog.Logger, owner string,
	gateway contract.ConversationGateway, directory contract.ProfileDirectory,
	cache contract.ConversationCache, publisher contract.Publisher,
	lookupTimeout time.Duration) *ConversationIndex {
	return &ConversationIndex{
		log:           log,
		owner:         owner,
		byPair:        make(map[domain.Pair]*domain.Conversation),
		profiles:      make(map[string]domain.Profile),
		gateway:       gateway,
		directory:     directory,
		cache:         cache,
		publisher:     publisher,
		lookupTimeout: lookupTimeout,
	}
}

// Upsert records message on the conversation of its pair, creating it on first
// contact. Sender and recipient order does not matter.
func (i *ConversationIndex) Upsert(message domain.Message) (domain.Conversation, error) {
	if err := message.Validate(); err != nil {
		return domain.Conversation{}, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	conversation, changed := i.upsertLocked(message)
	if changed {
		i.commitLocked(event.ConversationsChanged{Conversations: i.snapshotLocked()}, conversation)
	}
	return conversation, nil
}

func (i *ConversationIndex) upsertLocked(message domain.Message) (domain.Conversation, bool) {
	pair := message.Pair()
	if current, ok := i.byPair[pair]; ok {
		if !current.Touch(message) {
			return *current, false
		}
		i.sortLocked()
		return *current, true
	}
	created := domain.NewConversation(i.owner, message)
	if profile, ok := i.profiles[created.PeerID]; ok {
		created.Describe(profile)
	}
	i.insertLocked(&created)
	return created, true
}

// Bind stores the backend-issued identity of the conversation holding message.
// The record is created when the pair is still unknown.
func (i *ConversationIndex) Bind(message domain.Message, conversation domain.Conversation) error {
	if err := message.Validate(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	current, changed := i.upsertLocked(message.WithConversation(conversation.ID))
	record := i.byPair[current.Participants]
	if conversation.ID != "" && record.ID != conversation.ID {
		record.ID = conversation.ID
		changed = true
	}
	if record.Merge(domain.Conversation{DisplayName: conversation.DisplayName, DisplayImage: conversation.DisplayImage}) {
		changed = true
	}
	if changed {
		i.sortLocked()
		i.commitLocked(event.ConversationsChanged{Conversations: i.snapshotLocked()}, *record)
		return nil
	}
	i.persistLocked(*record)
	return nil
}

// Merge folds a whole conversation record into the index: identity by pair,
// known id kept, metadata newer-wins.
func (i *ConversationIndex) Merge(conversation domain.Conversation) domain.Conversation {
	i.mu.Lock()
	defer i.mu.Unlock()
	merged, changed := i.mergeLocked(conversation)
	if changed {
		i.sortLocked()
		i.commitLocked(event.ConversationsChanged{Conversations: i.snapshotLocked()}, merged)
	}
	return merged
}

func (i *ConversationIndex) mergeLocked(conversation domain.Conversation) (domain.Conversation, bool) {
	if current, ok := i.byPair[conversation.Participants]; ok {
		changed := current.Merge(conversation)
		return *current, changed
	}
	inserted := conversation
	if profile, ok := i.profiles[inserted.PeerID]; ok && inserted.DisplayName == "" {
		inserted.Describe(profile)
	}
	i.byPair[inserted.Participants] = &inserted
	i.ordered = append(i.ordered, &inserted)
	return inserted, true
}

// Remember registers a peer profile; conversations with that peer get its display fields.
func (i *ConversationIndex) Remember(profile domain.Profile) {
	if profile.ID == "" {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.profiles[profile.ID] = profile
	var touched []domain.Conversation
	for _, c := range i.ordered {
		if c.Describe(profile) {
			touched = append(touched, *c)
		}
	}
	if len(touched) > 0 {
		i.commitLocked(event.ConversationsChanged{Conversations: i.snapshotLocked()}, touched...)
	}
}

type hydrated struct {
	conversation domain.Conversation
	profile      domain.Profile
	ok           bool
}

// LoadAll fetches every conversation of currentUserID and resolves each peer
// profile concurrently. Nothing is merged before all lookups settled; a lookup
// that fails or exceeds lookupTimeout leaves its conversation out of the load.
// A failed fetch publishes ConversationsUnavailable and returns the current list.
func (i *ConversationIndex) LoadAll(ctx context.Context, currentUserID string) ([]domain.Conversation, error) {
	i.mu.Lock()
	i.owner = currentUserID
	i.mu.Unlock()

	raws, err := i.gateway.ListConversations(ctx, currentUserID)
	if err != nil {
		i.log.Warn("Conversation list unavailable", "user_id", currentUserID, "error", err)
		i.publisher.Publish(event.ConversationsUnavailable{Err: err})
		return i.Snapshot(), fmt.Errorf("%w: %v", errors.ErrFetchConversations, err)
	}

	results := i.hydrate(ctx, currentUserID, raws)
	resolved := lo.Filter(results, func(h hydrated, _ int) bool { return h.ok })
	skipped := len(raws) - len(resolved)

	if skipped > 0 {
		i.log.Info(fmt.Sprintf("%d conversation(s) skipped, peer unresolved", skipped))
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	var merged []domain.Conversation
	for _, h := range resolved {
		i.profiles[h.profile.ID] = h.profile
		if conversation, changed := i.mergeLocked(h.conversation); changed {
			merged = append(merged, conversation)
		}
	}
	i.sortLocked()
	snapshot := i.snapshotLocked()
	i.commitLocked(event.ConversationsLoaded{Conversations: snapshot, Skipped: skipped}, merged...)
	return snapshot, nil
}

func (i *ConversationIndex) hydrate(ctx context.Context, owner string, raws []domain.ConversationDTO) []hydrated {
	results := make([]hydrated, len(raws))
	var wg sync.WaitGroup
	for idx, raw := range raws {
		conversation, err := raw.ToConversation(owner)
		if err != nil {
			i.log.Warn("Invalid conversation record", "id", raw.ID, "error", err)
			continue
		}
		wg.Add(1)
		go func(idx int, conversation domain.Conversation) {
			defer wg.Done()
			lookupCtx, cancel := context.WithTimeout(ctx, i.lookupTimeout)
			defer cancel()
			profile, err := i.directory.GetProfile(lookupCtx, conversation.PeerID)
			if err != nil {
				i.log.Debug("Peer lookup failed", "peer_id", conversation.PeerID, "error", err)
				return
			}
			if profile.ID == "" {
				profile.ID = conversation.PeerID
			}
			conversation.Describe(profile)
			results[idx] = hydrated{conversation: conversation, profile: profile, ok: true}
		}(idx, conversation)
	}
	wg.Wait()
	return results
}

// Restore hydrates the index from the local cache.
func (i *ConversationIndex) Restore() error {
	if i.cache == nil {
		return nil
	}
	i.mu.Lock()
	owner := i.owner
	i.mu.Unlock()

	cached, err := i.cache.List(owner)
	if err != nil {
		return fmt.Errorf("restore conversations: %w", err)
	}

	i.log.Debug(fmt.Sprintf("%d conversation(s) restored from cache", len(cached)))

	i.mu.Lock()
	defer i.mu.Unlock()
	for _, c := range cached {
		i.mergeLocked(c)
	}
	i.sortLocked()
	i.publisher.Publish(event.ConversationsChanged{Conversations: i.snapshotLocked()})
	return nil
}

// Snapshot returns a copy of the sorted conversations.
func (i *ConversationIndex) Snapshot() []domain.Conversation {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.snapshotLocked()
}

func (i *ConversationIndex) Get(pair domain.Pair) (domain.Conversation, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	c, ok := i.byPair[pair]
	if !ok {
		return domain.Conversation{}, false
	}
	return *c, true
}

func (i *ConversationIndex) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ordered)
}

func (i *ConversationIndex) insertLocked(c *domain.Conversation) {
	i.byPair[c.Participants] = c
	i.ordered = append(i.ordered, c)
	i.sortLocked()
}

func (i *ConversationIndex) sortLocked() {
	sort.SliceStable(i.ordered, func(a, b int) bool {
		return domain.Newer(*i.ordered[a], *i.ordered[b])
	})
}

func (i *ConversationIndex) snapshotLocked() []domain.Conversation {
	return lo.Map(i.ordered, func(c *domain.Conversation, _ int) domain.Conversation {
		return *c
	})
}

// commitLocked publishes e then writes records through to the cache.
func (i *ConversationIndex) commitLocked(e event.DomainEvent, records ...domain.Conversation) {
	i.publisher.Publish(e)
	for _, c := range records {
		i.persistLocked(c)
	}
}

func (i *ConversationIndex) persistLocked(c domain.Conversation) {
	if i.cache == nil {
		return
	}
	if err := i.cache.Save(i.owner, c); err != nil {
		i.log.Warn("Conversation not cached", "pair", c.Participants.Key(), "error", err)
	}
}
