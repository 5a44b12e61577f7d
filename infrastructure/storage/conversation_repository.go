package storage

import (
	"chat-sync/domain"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const conversationPrefix = "conv:"

// ConversationRepository is the local cache of conversation records, one per
// owner and participant pair. It is a read-through copy: the backend stays authoritative.
type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) *ConversationRepository {
	return &ConversationRepository{db: db, log: log}
}

// Save upserts the record under "conv:{owner}:{a}|{b}", so a pair never has
// two records whatever the order of its participants.
func (r *ConversationRepository) Save(owner string, conversation domain.Conversation) error {
	value, err := encodeConversation(conversation)
	if err != nil {
		return err
	}
	bytes, err := proto.Marshal(value)
	if err != nil {
		return err
	}
	key := conversationKey(owner, conversation.Participants)
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// List returns every cached record of owner, in key order.
func (r *ConversationRepository) List(owner string) ([]domain.Conversation, error) {
	var raws [][]byte
	prefix := []byte(ownerPrefix(owner))
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			raws = append(raws, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	conversations := make([]domain.Conversation, 0, len(raws))
	for _, raw := range raws {
		conversation, err := DecodeRecord(raw)
		if err != nil {
			r.log.Warn("Corrupted cached conversation skipped", "owner", owner, "error", err)
			continue
		}
		conversations = append(conversations, conversation)
	}
	return conversations, nil
}

// Owners lists the users having at least one cached conversation.
func (r *ConversationRepository) Owners() ([]string, error) {
	var owners []string
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		prefix := []byte(conversationPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), conversationPrefix)
			escaped, _, found := strings.Cut(rest, ":")
			if !found {
				continue
			}
			owner, err := url.QueryUnescape(escaped)
			if err != nil {
				r.log.Warn("Unreadable cache key skipped", "key", string(it.Item().Key()))
				continue
			}
			owners = append(owners, owner)
		}
		return nil
	})
	return lo.Uniq(owners), err
}

// Every id segment is query-escaped, so ids holding ':' or '|' cannot collide.
func ownerPrefix(owner string) string {
	return conversationPrefix + url.QueryEscape(owner) + ":"
}

func conversationKey(owner string, pair domain.Pair) string {
	return ownerPrefix(owner) + url.QueryEscape(pair.A) + "|" + url.QueryEscape(pair.B)
}

func encodeConversation(c domain.Conversation) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":              c.ID,
		"a":               c.Participants.A,
		"b":               c.Participants.B,
		"peerId":          c.PeerID,
		"displayName":     c.DisplayName,
		"displayImage":    c.DisplayImage,
		"lastMessage":     c.LastMessageBody,
		"lastMessageTime": "",
	}
	if !c.LastMessageAt.IsZero() {
		fields["lastMessageTime"] = domain.FormatTime(c.LastMessageAt)
	}
	return structpb.NewStruct(fields)
}

// DecodeRecord turns a stored value back into a conversation.
func DecodeRecord(raw []byte) (domain.Conversation, error) {
	var value structpb.Struct
	if err := proto.Unmarshal(raw, &value); err != nil {
		return domain.Conversation{}, err
	}
	return decodeConversation(&value)
}

func decodeConversation(value *structpb.Struct) (domain.Conversation, error) {
	fields := value.GetFields()
	text := func(key string) string {
		return fields[key].GetStringValue()
	}
	a, b := text("a"), text("b")
	if a == "" || b == "" || a == b {
		return domain.Conversation{}, fmt.Errorf("invalid participants %q/%q", a, b)
	}
	conversation := domain.Conversation{
		ID:              text("id"),
		Participants:    domain.NewPair(a, b),
		PeerID:          text("peerId"),
		DisplayName:     text("displayName"),
		DisplayImage:    text("displayImage"),
		LastMessageBody: text("lastMessage"),
	}
	if raw := text("lastMessageTime"); raw != "" {
		at, err := domain.ParseTime(raw)
		if err != nil {
			return domain.Conversation{}, err
		}
		conversation.LastMessageAt = at
	}
	return conversation, nil
}
