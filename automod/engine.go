package automod

import (
	"context"
	"log/slog"

	"github.com/ahgroup/ahgroupbot/automod/antispam"
	"github.com/ahgroup/ahgroupbot/automod/setstore"
	"github.com/ahgroup/ahgroupbot/automod/statestore"
	"github.com/ahgroup/ahgroupbot/telegram"
)

// fillerRune is the one character the chat game permits.
const fillerRune = '啊'

// StickerTitleSource resolves a sticker set name to its human-visible title,
// which participates in spam scoring like any other text signal.
type StickerTitleSource interface {
	StickerSetTitle(ctx context.Context, name string) (string, error)
}

// Engine classifies inbound updates into moderation actions. All persistent
// state lives in the Store; the engine itself carries only injected,
// immutable collaborators and is driven synchronously, one update at a time.
type Engine struct {
	Logger   *slog.Logger
	Store    *statestore.Store
	Lexicons *antispam.Lexicons
	Sets     setstore.SetStore
	// Titles is optional; without it sticker-set titles are skipped as a
	// spam signal.
	Titles StickerTitleSource
}

// ProcessUpdate decides what to do about one update. It never returns an
// error: undecidable input fails open to Accept, and panics from rule logic
// are recovered the same way (a skipped spam message costs one sweep cycle,
// a wrong deletion is forever).
func (eng *Engine) ProcessUpdate(ctx context.Context, upd *telegram.Update) (act Action) {
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("update processing panic", "err", r, "update", upd.ID)
			act = Accept()
		}
	}()
	defer func() {
		updatesProcessed.Inc()
		actionsDecided.WithLabelValues(string(act.Kind)).Inc()
	}()

	if upd.Malformed != "" {
		eng.Logger.Info("unsupported update", "update", upd.ID,
			"payload", telegram.TruncateForLog(upd.Malformed, 256))
		return Accept()
	}

	chat := upd.Chat()
	if chat == nil || !chat.IsGroup() {
		// moderation applies to group chats only
		return Accept()
	}

	switch {
	case upd.ChatMember != nil:
		return eng.processMemberChange(chat.ID, upd.ChatMember)
	case upd.EditedMessage != nil:
		// edits are never re-validated; editing is itself suspicious here
		return Delete(chat.ID, upd.EditedMessage.ID)
	case upd.Message != nil:
		return eng.processMessage(ctx, chat.ID, upd.Message)
	}
	return Accept()
}

func (eng *Engine) processMemberChange(chatID telegram.ChatID, cm *telegram.ChatMemberUpdated) Action {
	member := cm.NewChatMember.User
	name := member.DisplayName()
	logger := eng.Logger.With("chat", chatID, "user", member.ID, "name", name)

	switch {
	case cm.Joined():
		logger.Info("member joined")
		if eng.Lexicons.ClassifyDisplayName(name) {
			logger.Info("join rejected: spam display name")
			eng.Store.RecordSpamName(name)
			return Ban(chatID, member.ID)
		}
		if eng.Store.RecallSpamName(name) {
			logger.Info("join rejected: recurring spam identity")
			return Ban(chatID, member.ID)
		}
		if cm.UnvettedJoin() {
			logger.Info("join rejected: unvetted invite")
			return Ban(chatID, member.ID)
		}
		eng.Store.MergeUser(member.ID, antispam.NewSuspect(0))
	case cm.Left():
		if cm.Banned() {
			logger.Info("member banned, recording name")
			eng.Store.RecordSpamName(name)
		} else {
			logger.Info("member left")
		}
		eng.Store.RemoveUser(member.ID)
	}
	return Accept()
}

func (eng *Engine) processMessage(ctx context.Context, chatID telegram.ChatID, msg *telegram.Message) Action {
	if msg.IsService() {
		return Accept()
	}
	if msg.From == nil {
		// cannot act without an attributable sender
		return Accept()
	}
	if msg.From.IsBot {
		return Delete(chatID, msg.ID)
	}

	sender := msg.From
	logger := eng.Logger.With("chat", chatID, "msg", msg.ID, "user", sender.ID)

	if merged := eng.scoreMessage(ctx, logger, msg); merged.IsSpam() {
		logger.Info("confirmed spam", "name", sender.DisplayName(),
			"text", telegram.TruncateForLog(msg.Text, 128))
		eng.Store.RecordSpamName(sender.DisplayName())
		return DeleteAndBan(chatID, msg.ID, sender.ID)
	}

	if msg.ReplyTo != nil {
		// replies are disallowed by the chat game
		return Delete(chatID, msg.ID)
	}
	if hasNonDecorativeEntities(msg.Entities) {
		return Delete(chatID, msg.ID)
	}

	count, ok := eng.fillerCount(ctx, msg)
	if !ok {
		return Delete(chatID, msg.ID)
	}
	if err := eng.Store.TryAdmitFlood(chatID, sender.ID, count); err != nil {
		logger.Debug("flood admission rejected", "err", err)
		return Delete(chatID, msg.ID)
	}
	// surviving the flood game proves non-bot behavior
	eng.Store.SetAuthentic(sender.ID)
	return Accept()
}

// scoreMessage accumulates spam risk over every text signal the message
// carries and merges the sum into the sender's trust state. A message
// offering no classifiable signal at all (opaque media) gets the low-risk
// baseline: content the lexicons cannot see is mildly suspicious by default.
func (eng *Engine) scoreMessage(ctx context.Context, logger *slog.Logger, msg *telegram.Message) antispam.TrustState {
	delta := antispam.NewSuspect(0)
	scored := false
	if msg.Text != "" {
		delta = delta.Merge(eng.Lexicons.ClassifyText(msg.Text).TrustDelta())
		scored = true
	}
	if quote := msg.QuoteText(); quote != "" {
		delta = delta.Merge(eng.Lexicons.ClassifyText(quote).TrustDelta())
		scored = true
	}
	if msg.Sticker != nil {
		if allowed, _ := eng.Sets.InSet(ctx, setstore.AllowedStickers, msg.Sticker.FileUniqueID); allowed {
			// allow-listed stickers are benign by definition
			scored = true
		} else if title, ok := eng.stickerTitle(ctx, logger, msg.Sticker); ok {
			delta = delta.Merge(eng.Lexicons.ClassifyText(title).TrustDelta())
			scored = true
		}
	}
	if !scored {
		delta = delta.Merge(antispam.RiskLow.TrustDelta())
	}
	merged := eng.Store.MergeUser(msg.From.ID, delta)
	logger.Debug("scored message", "delta", delta.Score, "score", merged.Score,
		"authentic", merged.Authentic)
	return merged
}

// stickerTitle resolves a sticker's set title for scoring; lookup failures
// skip the signal rather than block the decision.
func (eng *Engine) stickerTitle(ctx context.Context, logger *slog.Logger, sticker *telegram.Sticker) (string, bool) {
	if sticker.SetName == "" || eng.Titles == nil {
		return "", false
	}
	title, err := eng.Titles.StickerSetTitle(ctx, sticker.SetName)
	if err != nil {
		logger.Warn("sticker set title lookup failed", "set", sticker.SetName, "err", err)
		return "", false
	}
	return title, true
}

// decorative formatting is tolerated; anything clickable or structural is not
var decorativeEntities = map[string]bool{
	"bold":          true,
	"italic":        true,
	"underline":     true,
	"code":          true,
	"strikethrough": true,
	"spoiler":       true,
}

func hasNonDecorativeEntities(entities []telegram.MessageEntity) bool {
	for _, e := range entities {
		if !decorativeEntities[e.Type] {
			return true
		}
	}
	return false
}

// fillerCount evaluates the flood-game move: text must consist solely of the
// filler character (the count is its length), or the message must be an
// allow-listed sticker, which counts as a single repetition.
func (eng *Engine) fillerCount(ctx context.Context, msg *telegram.Message) (uint32, bool) {
	if msg.Text != "" {
		var n uint32
		for _, r := range msg.Text {
			if r != fillerRune {
				return 0, false
			}
			n++
		}
		return n, true
	}
	if msg.Sticker != nil {
		allowed, err := eng.Sets.InSet(ctx, setstore.AllowedStickers, msg.Sticker.FileUniqueID)
		if err != nil {
			eng.Logger.Warn("sticker set lookup failed", "err", err)
			return 0, false
		}
		if allowed {
			return 1, true
		}
	}
	return 0, false
}
