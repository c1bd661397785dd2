package automod

import (
	"fmt"

	"github.com/ahgroup/ahgroupbot/telegram"
)

// ActionKind discriminates the moderation outcome for one update.
type ActionKind string

const (
	ActionAccept       ActionKind = "accept"
	ActionDelete       ActionKind = "delete"
	ActionBan          ActionKind = "ban"
	ActionDeleteAndBan ActionKind = "delete-and-ban"
)

// Action is the decision produced by the engine for one update. It is a pure
// value carrying only the identifiers the dispatcher needs.
type Action struct {
	Kind    ActionKind
	Chat    telegram.ChatID
	Message telegram.MessageID
	User    telegram.UserID
}

func Accept() Action {
	return Action{Kind: ActionAccept}
}

func Delete(chat telegram.ChatID, msg telegram.MessageID) Action {
	return Action{Kind: ActionDelete, Chat: chat, Message: msg}
}

func Ban(chat telegram.ChatID, user telegram.UserID) Action {
	return Action{Kind: ActionBan, Chat: chat, User: user}
}

func DeleteAndBan(chat telegram.ChatID, msg telegram.MessageID, user telegram.UserID) Action {
	return Action{Kind: ActionDeleteAndBan, Chat: chat, Message: msg, User: user}
}

func (a Action) String() string {
	switch a.Kind {
	case ActionAccept:
		return "accept"
	case ActionDelete:
		return fmt.Sprintf("delete(%d:%d)", a.Chat, a.Message)
	case ActionBan:
		return fmt.Sprintf("ban(%d:%d)", a.Chat, a.User)
	case ActionDeleteAndBan:
		return fmt.Sprintf("delete-and-ban(%d:%d:%d)", a.Chat, a.Message, a.User)
	}
	return string(a.Kind)
}
