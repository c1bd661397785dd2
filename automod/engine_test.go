package automod

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahgroup/ahgroupbot/automod/antispam"
	"github.com/ahgroup/ahgroupbot/automod/setstore"
	"github.com/ahgroup/ahgroupbot/automod/statestore"
	"github.com/ahgroup/ahgroupbot/telegram"
)

type fakeTitles struct {
	titles map[string]string
}

func (f *fakeTitles) StickerSetTitle(ctx context.Context, name string) (string, error) {
	if title, ok := f.titles[name]; ok {
		return title, nil
	}
	return "", fmt.Errorf("sticker set not found: %s", name)
}

func engineFixture(t *testing.T) *Engine {
	t.Helper()
	backend := statestore.NewFileBackend(filepath.Join(t.TempDir(), "state.json"))
	store, err := statestore.Open(context.Background(), backend, nil)
	require.NoError(t, err)

	sets := setstore.NewMemSetStore()
	sets.Add(setstore.AllowedStickers, "sticker-ah")

	return &Engine{
		Logger:   slog.Default(),
		Store:    store,
		Lexicons: antispam.DefaultLexicons(),
		Sets:     sets,
		Titles:   &fakeTitles{titles: map[string]string{"ok_pack": "好玩的贴纸", "spam_pack": "搬U专线"}},
	}
}

var groupChat = telegram.Chat{ID: -100, Type: "supergroup"}

func groupMessage(id telegram.MessageID, from telegram.UserID, text string) *telegram.Message {
	return &telegram.Message{
		ID:   id,
		From: &telegram.User{ID: from, FirstName: "member"},
		Chat: groupChat,
		Text: text,
	}
}

func messageUpdate(msg *telegram.Message) *telegram.Update {
	return &telegram.Update{ID: 1, Message: msg}
}

func joinUpdate(user telegram.User) *telegram.Update {
	return &telegram.Update{ID: 1, ChatMember: &telegram.ChatMemberUpdated{
		Chat:          groupChat,
		OldChatMember: telegram.ChatMember{Status: telegram.StatusLeft, User: user},
		NewChatMember: telegram.ChatMember{Status: telegram.StatusMember, User: user},
	}}
}

func TestFillerMessagesAccepted(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	act := eng.ProcessUpdate(ctx, messageUpdate(groupMessage(1, 10, "啊啊啊")))
	assert.Equal(ActionAccept, act.Kind)
	// surviving the flood game graduates the sender
	assert.True(eng.Store.GetUser(10).IsAuthentic())
}

func TestFloodControl(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	assert.Equal(ActionAccept, eng.ProcessUpdate(ctx, messageUpdate(groupMessage(1, 10, "啊啊啊啊啊"))).Kind)
	// same sender twice in a row
	assert.Equal(ActionDelete, eng.ProcessUpdate(ctx, messageUpdate(groupMessage(2, 10, "啊啊啊啊啊啊"))).Kind)
	// count jumps by more than one past the last admitted count
	assert.Equal(ActionDelete, eng.ProcessUpdate(ctx, messageUpdate(groupMessage(3, 11, "啊啊啊啊啊啊啊"))).Kind)
	// within last+1 is fine
	assert.Equal(ActionAccept, eng.ProcessUpdate(ctx, messageUpdate(groupMessage(4, 11, "啊啊啊啊啊啊"))).Kind)
}

func TestNonFillerTextDeleted(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	act := eng.ProcessUpdate(ctx, messageUpdate(groupMessage(1, 10, "hello everyone")))
	assert.Equal(ActionDelete, act.Kind)
	assert.Equal(telegram.ChatID(-100), act.Chat)
	assert.Equal(telegram.MessageID(1), act.Message)
}

func TestHighRiskTextBansImmediately(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	act := eng.ProcessUpdate(ctx, messageUpdate(groupMessage(1, 10, "专业代理开户")))
	assert.Equal(ActionDeleteAndBan, act.Kind)
	assert.Equal(telegram.UserID(10), act.User)
	assert.True(eng.Store.GetUser(10).IsSpam())
}

func TestPartialScoresAccumulate(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	// medium risk is half the threshold: first strike is only a delete
	act := eng.ProcessUpdate(ctx, messageUpdate(groupMessage(1, 10, "5k")))
	assert.Equal(ActionDelete, act.Kind)
	assert.False(eng.Store.GetUser(10).IsSpam())

	// the second strike crosses it
	act = eng.ProcessUpdate(ctx, messageUpdate(groupMessage(2, 10, "来兄弟")))
	assert.Equal(ActionDeleteAndBan, act.Kind)
	assert.True(eng.Store.GetUser(10).IsSpam())
}

func TestQuotedTextIsScored(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	msg := groupMessage(1, 10, "啊啊")
	msg.ReplyTo = &telegram.Message{ID: 99, Chat: groupChat, Text: "搬U专线日结"}
	act := eng.ProcessUpdate(ctx, messageUpdate(msg))
	assert.Equal(ActionDeleteAndBan, act.Kind)
}

func TestRepliesDeleted(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	msg := groupMessage(1, 10, "啊啊")
	msg.ReplyTo = &telegram.Message{ID: 99, Chat: groupChat, Text: "啊"}
	assert.Equal(ActionDelete, eng.ProcessUpdate(ctx, messageUpdate(msg)).Kind)
}

func TestEntityWhitelist(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	msg := groupMessage(1, 10, "啊啊啊")
	msg.Entities = []telegram.MessageEntity{{Type: "bold"}, {Type: "spoiler"}}
	assert.Equal(ActionAccept, eng.ProcessUpdate(ctx, messageUpdate(msg)).Kind)

	msg = groupMessage(2, 11, "啊啊啊啊")
	msg.Entities = []telegram.MessageEntity{{Type: "text_link"}}
	assert.Equal(ActionDelete, eng.ProcessUpdate(ctx, messageUpdate(msg)).Kind)
}

func TestAllowedStickerPlaysTheGame(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	// an allow-listed sticker counts as a single repetition
	msg := &telegram.Message{
		ID:      1,
		From:    &telegram.User{ID: 10, FirstName: "member"},
		Chat:    groupChat,
		Sticker: &telegram.Sticker{FileUniqueID: "sticker-ah", SetName: "ok_pack"},
	}
	assert.Equal(ActionAccept, eng.ProcessUpdate(ctx, messageUpdate(msg)).Kind)
	assert.True(eng.Store.GetUser(10).IsAuthentic())
}

func TestUnknownStickerDeleted(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	msg := &telegram.Message{
		ID:      1,
		From:    &telegram.User{ID: 10, FirstName: "member"},
		Chat:    groupChat,
		Sticker: &telegram.Sticker{FileUniqueID: "sticker-other", SetName: "ok_pack"},
	}
	assert.Equal(ActionDelete, eng.ProcessUpdate(ctx, messageUpdate(msg)).Kind)
}

func TestSpamStickerSetTitleBans(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	msg := &telegram.Message{
		ID:      1,
		From:    &telegram.User{ID: 10, FirstName: "member"},
		Chat:    groupChat,
		Sticker: &telegram.Sticker{FileUniqueID: "sticker-other", SetName: "spam_pack"},
	}
	assert.Equal(ActionDeleteAndBan, eng.ProcessUpdate(ctx, messageUpdate(msg)).Kind)
}

func TestEditedMessagesAlwaysDeleted(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	upd := &telegram.Update{ID: 1, EditedMessage: groupMessage(5, 10, "啊啊啊")}
	act := eng.ProcessUpdate(ctx, upd)
	assert.Equal(ActionDelete, act.Kind)
	assert.Equal(telegram.MessageID(5), act.Message)
}

func TestBotSendersDeleted(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	msg := groupMessage(1, 10, "啊啊")
	msg.From.IsBot = true
	assert.Equal(ActionDelete, eng.ProcessUpdate(ctx, messageUpdate(msg)).Kind)
}

func TestAnonymousSenderAccepted(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	msg := &telegram.Message{ID: 1, Chat: groupChat, Text: "whatever"}
	assert.Equal(ActionAccept, eng.ProcessUpdate(ctx, messageUpdate(msg)).Kind)
}

func TestServiceMessagesAccepted(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	msg := &telegram.Message{
		ID:           1,
		From:         &telegram.User{ID: 10, FirstName: "admin"},
		Chat:         groupChat,
		NewChatTitle: "new title",
	}
	assert.Equal(ActionAccept, eng.ProcessUpdate(ctx, messageUpdate(msg)).Kind)
}

func TestPrivateChatsIgnored(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	msg := groupMessage(1, 10, "专业代理开户")
	msg.Chat = telegram.Chat{ID: 55, Type: "private"}
	assert.Equal(ActionAccept, eng.ProcessUpdate(ctx, messageUpdate(msg)).Kind)
}

func TestMalformedUpdateFailsOpen(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	upd := &telegram.Update{ID: 1, Malformed: `{"whatever": true}`}
	assert.Equal(ActionAccept, eng.ProcessUpdate(ctx, upd).Kind)
}

func TestSpamNameJoinBanned(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	act := eng.ProcessUpdate(ctx, joinUpdate(telegram.User{ID: 20, FirstName: "立即来🔥赚麻了"}))
	assert.Equal(ActionBan, act.Kind)
	assert.Equal(telegram.UserID(20), act.User)
}

func TestDecoratedNameJoinAccepted(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	act := eng.ProcessUpdate(ctx, joinUpdate(telegram.User{ID: 20, FirstName: "啊啊|赚钱"}))
	assert.Equal(ActionAccept, act.Kind)
	// new members start tracked at zero
	assert.False(eng.Store.GetUser(20).IsAuthentic())
	assert.Equal(uint8(0), eng.Store.GetUser(20).Score)
}

func TestRecurringSpamIdentityBanned(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	// someone with this name was banned before
	eng.Store.RecordSpamName("harmless name")

	act := eng.ProcessUpdate(ctx, joinUpdate(telegram.User{ID: 20, FirstName: "harmless name"}))
	assert.Equal(ActionBan, act.Kind)
}

func TestUnvettedInviteJoinBanned(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	user := telegram.User{ID: 20, FirstName: "plain"}
	upd := joinUpdate(user)
	upd.ChatMember.ViaJoinRequest = true
	assert.Equal(ActionBan, eng.ProcessUpdate(ctx, upd).Kind)
}

func TestBannedMemberNameRecorded(t *testing.T) {
	assert := assert.New(t)
	eng := engineFixture(t)
	ctx := context.Background()

	user := telegram.User{ID: 20, FirstName: "spam name here"}
	eng.Store.MergeUser(20, antispam.NewSpam())

	upd := &telegram.Update{ID: 1, ChatMember: &telegram.ChatMemberUpdated{
		Chat:          groupChat,
		OldChatMember: telegram.ChatMember{Status: telegram.StatusMember, User: user},
		NewChatMember: telegram.ChatMember{Status: telegram.StatusKicked, User: user},
	}}
	assert.Equal(ActionAccept, eng.ProcessUpdate(ctx, upd).Kind)

	// state evicted, name remembered
	assert.Equal(uint8(0), eng.Store.GetUser(20).Score)
	assert.True(eng.Store.RecallSpamName("spam name here"))
}
