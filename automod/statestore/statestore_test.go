package statestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahgroup/ahgroupbot/automod/antispam"
	"github.com/ahgroup/ahgroupbot/telegram"
)

func storeFixture(t *testing.T) (*Store, *FileBackend) {
	t.Helper()
	backend := NewFileBackend(filepath.Join(t.TempDir(), "state.json"))
	store, err := Open(context.Background(), backend, nil)
	require.NoError(t, err)
	return store, backend
}

func TestFloodAdmission(t *testing.T) {
	assert := assert.New(t)
	store, _ := storeFixture(t)
	chat := telegram.ChatID(1)

	// a chat with no history admits anyone and any count
	assert.NoError(store.TryAdmitFlood(chat, 1, 10))
	assert.NoError(store.TryAdmitFlood(chat, 2, 5))
	assert.NoError(store.TryAdmitFlood(chat, 1, 6))
	assert.NoError(store.TryAdmitFlood(chat, 2, 1))
	assert.NoError(store.TryAdmitFlood(chat, 1, 3))
	assert.NoError(store.TryAdmitFlood(chat, 2, 3))

	// same user twice in a row
	assert.Error(store.TryAdmitFlood(chat, 2, 4))
	// count above three jumping past last+1
	assert.Error(store.TryAdmitFlood(chat, 1, 5))

	// rejections do not overwrite the slot
	slot, ok := store.GetFlood(chat)
	assert.True(ok)
	assert.Equal(telegram.UserID(2), slot.UserID)
	assert.Equal(uint32(3), slot.Count)

	// counts of three or less never trip the burst check
	assert.NoError(store.TryAdmitFlood(chat, 1, 3))
}

func TestMergeUserThresholdCrossing(t *testing.T) {
	assert := assert.New(t)
	store, _ := storeFixture(t)

	assert.True(store.MergeUser(1, antispam.NewSpam()).IsSpam())
	assert.True(store.MergeUser(1, antispam.AuthenticState()).IsAuthentic())

	assert.Equal(uint8(10), store.MergeUser(2, antispam.NewSuspect(10)).Score)
	assert.Equal(uint8(30), store.MergeUser(2, antispam.NewSuspect(20)).Score)
	crossed := store.MergeUser(2, antispam.NewSuspect(antispam.SpamThreshold-10))
	assert.True(crossed.IsSpam())
	// spam is sticky
	assert.True(store.MergeUser(2, antispam.NewSuspect(1)).IsSpam())
}

func TestUserLifecycle(t *testing.T) {
	assert := assert.New(t)
	store, _ := storeFixture(t)

	// unknown users default to a zero-score suspect
	assert.Equal(uint8(0), store.GetUser(99).Score)
	assert.False(store.GetUser(99).IsAuthentic())

	store.SetAuthentic(7)
	assert.True(store.GetUser(7).IsAuthentic())

	store.RemoveUser(7)
	assert.False(store.GetUser(7).IsAuthentic())
}

func TestSaveReloadRoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	store, backend := storeFixture(t)

	require.NoError(store.TryAdmitFlood(5, 50, 3))
	store.SetAuthentic(1)
	store.MergeUser(2, antispam.NewSpam())
	store.MergeUser(3, antispam.NewSuspect(20))
	store.RecordSpamName("快来赚钱")

	require.NoError(store.Save(ctx))
	require.NoError(store.Save(ctx)) // saves are idempotent

	reloaded, err := Open(ctx, backend, nil)
	require.NoError(err)

	assert.True(reloaded.GetUser(1).IsAuthentic())
	assert.True(reloaded.GetUser(2).IsSpam())
	assert.Equal(store.GetUser(3), reloaded.GetUser(3))
	assert.Equal(uint8(0), reloaded.GetUser(4).Score)

	slot, ok := reloaded.GetFlood(5)
	assert.True(ok)
	assert.Equal(FloodSlot{UserID: 50, Count: 3}, slot)

	assert.True(reloaded.RecallSpamName("快来赚钱"))
	assert.Equal([]telegram.ChatID{5}, reloaded.Chats())
}

func TestForEachUserSnapshot(t *testing.T) {
	assert := assert.New(t)
	store, _ := storeFixture(t)

	store.MergeUser(1, antispam.NewSuspect(10))
	store.MergeUser(2, antispam.NewSuspect(20))

	seen := map[telegram.UserID]uint8{}
	store.ForEachUser(func(id telegram.UserID, st antispam.TrustState) {
		// mutating mid-iteration must be safe
		store.RemoveUser(id)
		seen[id] = st.Score
	})
	assert.Equal(map[telegram.UserID]uint8{1: 10, 2: 20}, seen)
	assert.Equal(uint8(0), store.GetUser(1).Score)
}

func TestPruneSpamNames(t *testing.T) {
	assert := assert.New(t)
	store, _ := storeFixture(t)

	store.RecordSpamName("recent")
	store.PruneSpamNames(time.Now())
	assert.True(store.RecallSpamName("recent"))

	// far enough in the future that even repeat entries expire
	store.PruneSpamNames(time.Now().Add(91 * 24 * time.Hour))
	assert.False(store.RecallSpamName("recent"))
}
