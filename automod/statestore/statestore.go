// Package statestore is the durable home of all moderation state: per-user
// trust, the per-chat flood-guard slot, and the spam-name recall table. One
// mutex guards the in-memory snapshot; every mutation is short and does no
// I/O. Persistence is an explicit Save of the whole document.
package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahgroup/ahgroupbot/automod/antispam"
	"github.com/ahgroup/ahgroupbot/telegram"
)

// FloodSlot is the last admitted flood-game move for a chat: who spoke, and
// how many filler characters they used. Persisted as a two-element array for
// compatibility with the historical state document.
type FloodSlot struct {
	UserID telegram.UserID
	Count  uint32
}

func (s FloodSlot) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{int64(s.UserID), int64(s.Count)})
}

func (s *FloodSlot) UnmarshalJSON(b []byte) error {
	var pair [2]int64
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	s.UserID = telegram.UserID(pair[0])
	s.Count = uint32(pair[1])
	return nil
}

type document struct {
	Chats     map[telegram.ChatID]FloodSlot           `json:"chats"`
	Users     map[telegram.UserID]antispam.TrustState `json:"users"`
	SpamNames antispam.NameRecallTable                `json:"spamNames,omitempty"`
}

// Store holds the snapshot and its backend. Safe for concurrent use; the
// main event loop and the background sweep share one instance.
type Store struct {
	logger  *slog.Logger
	backend SnapshotBackend

	mu   sync.Mutex
	data document

	// saveMu serializes saves so a slow backend write can never interleave
	// with another save of the same store.
	saveMu sync.Mutex
}

// Open loads the snapshot from the backend, starting empty when the backend
// holds nothing yet.
func Open(ctx context.Context, backend SnapshotBackend, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading state snapshot: %w", err)
	}
	doc := document{
		Chats:     make(map[telegram.ChatID]FloodSlot),
		Users:     make(map[telegram.UserID]antispam.TrustState),
		SpamNames: antispam.NewNameRecallTable(),
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parsing state snapshot: %w", err)
		}
		if doc.Chats == nil {
			doc.Chats = make(map[telegram.ChatID]FloodSlot)
		}
		if doc.Users == nil {
			doc.Users = make(map[telegram.UserID]antispam.TrustState)
		}
		if doc.SpamNames == nil {
			doc.SpamNames = antispam.NewNameRecallTable()
		}
	}
	return &Store{logger: logger, backend: backend, data: doc}, nil
}

// Save writes the whole snapshot through the backend. Serialization happens
// under the state lock; the backend write does not.
func (s *Store) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	raw, err := json.Marshal(&s.data)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("serializing state snapshot: %w", err)
	}
	if err := s.backend.Store(ctx, raw); err != nil {
		return fmt.Errorf("writing state snapshot: %w", err)
	}
	return nil
}

// GetUser returns the tracked state for a user, defaulting to a fresh
// zero-score suspect for users never seen before.
func (s *Store) GetUser(userID telegram.UserID) antispam.TrustState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.data.Users[userID]; ok {
		return st
	}
	return antispam.NewSuspect(0)
}

// MergeUser atomically combines delta into the user's state and returns the
// result, so a caller can observe threshold crossing in one round-trip.
func (s *Store) MergeUser(userID telegram.UserID, delta antispam.TrustState) antispam.TrustState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.data.Users[userID]
	if ok {
		st = st.Merge(delta)
	} else {
		st = delta
	}
	s.data.Users[userID] = st
	return st
}

// SetAuthentic marks the user permanently trusted.
func (s *Store) SetAuthentic(userID telegram.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Users[userID] = antispam.AuthenticState()
}

// RemoveUser drops the user's tracked state (on ban or leave).
func (s *Store) RemoveUser(userID telegram.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Users, userID)
}

// ForEachUser calls fn for every tracked user, on a copy taken under the
// lock, so fn may call back into the store.
func (s *Store) ForEachUser(fn func(userID telegram.UserID, st antispam.TrustState)) {
	s.mu.Lock()
	snapshot := make(map[telegram.UserID]antispam.TrustState, len(s.data.Users))
	for id, st := range s.data.Users {
		snapshot[id] = st
	}
	s.mu.Unlock()
	for id, st := range snapshot {
		fn(id, st)
	}
}

// Chats lists every chat with flood-guard history, i.e. every chat the bot
// has moderated.
func (s *Store) Chats() []telegram.ChatID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]telegram.ChatID, 0, len(s.data.Chats))
	for id := range s.data.Chats {
		out = append(out, id)
	}
	return out
}

// GetFlood returns the last admitted flood-game move for a chat.
func (s *Store) GetFlood(chatID telegram.ChatID) (FloodSlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.data.Chats[chatID]
	return slot, ok
}

// TryAdmitFlood runs the flood-game admission check and, on success,
// overwrites the chat's slot with the new move. A chat with no history admits
// anything. Rejections: the same user moving twice in a row, or a count above
// three that jumps by more than one over the last admitted count.
func (s *Store) TryAdmitFlood(chatID telegram.ChatID, userID telegram.UserID, count uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.data.Chats[chatID]; ok {
		if last.UserID == userID {
			return fmt.Errorf("flood rejected: same user as last admitted")
		}
		if count > 3 && count > last.Count+1 {
			return fmt.Errorf("flood rejected: count %d jumps past %d+1", count, last.Count)
		}
	}
	s.data.Chats[chatID] = FloodSlot{UserID: userID, Count: count}
	return nil
}

// RecordSpamName notes a banned account's display name.
func (s *Store) RecordSpamName(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.SpamNames.Record(name)
}

// RecallSpamName reports whether the name belongs to a previously banned
// account; a hit refreshes the entry.
func (s *Store) RecallSpamName(name string) bool {
	if name == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SpamNames.Recall(name)
}

// PruneSpamNames drops stale name entries and logs what went.
func (s *Store) PruneSpamNames(now time.Time) {
	s.mu.Lock()
	removed := s.data.SpamNames.Prune(now)
	s.mu.Unlock()
	for _, name := range removed {
		s.logger.Info("removed stale spam name", "name", name)
	}
}
