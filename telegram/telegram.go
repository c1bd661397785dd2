// Package telegram is a minimal Telegram Bot API client: the update types the
// moderation engine consumes, and the handful of calls it needs to enforce
// decisions (deleteMessage, banChatMember, getChatMember, getStickerSet).
package telegram

import (
	"strings"
)

type ChatID int64
type UserID int64
type MessageID int64

// Update is one entry from getUpdates. At most one of Message, EditedMessage,
// or ChatMember is set; Malformed carries the raw payload when none of them
// could be decoded.
type Update struct {
	ID            int64              `json:"update_id"`
	Message       *Message           `json:"message,omitempty"`
	EditedMessage *Message           `json:"edited_message,omitempty"`
	ChatMember    *ChatMemberUpdated `json:"chat_member,omitempty"`

	// Malformed holds the raw update JSON when decoding failed.
	Malformed string `json:"-"`
}

// Chat returns the chat the update refers to, or nil for malformed updates.
func (u *Update) Chat() *Chat {
	switch {
	case u.Message != nil:
		return &u.Message.Chat
	case u.EditedMessage != nil:
		return &u.EditedMessage.Chat
	case u.ChatMember != nil:
		return &u.ChatMember.Chat
	}
	return nil
}

type Chat struct {
	ID   ChatID `json:"id"`
	Type string `json:"type"` // "private", "group", "supergroup", "channel"
}

// IsGroup reports whether the chat is group-scoped. Moderation only acts on
// group chats; private and channel traffic is passed through.
func (c *Chat) IsGroup() bool {
	return c.Type == "group" || c.Type == "supergroup"
}

type User struct {
	ID        UserID `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName is the full name as other members see it.
func (u *User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Message struct {
	ID       MessageID       `json:"message_id"`
	From     *User           `json:"from,omitempty"`
	Chat     Chat            `json:"chat"`
	Text     string          `json:"text,omitempty"`
	Entities []MessageEntity `json:"entities,omitempty"`
	Sticker  *Sticker        `json:"sticker,omitempty"`
	ReplyTo  *Message        `json:"reply_to_message,omitempty"`
	Quote    *TextQuote      `json:"quote,omitempty"`

	// Service-message payloads. Presence of one of these makes the message
	// administrative rather than ordinary content.
	NewChatTitle    string   `json:"new_chat_title,omitempty"`
	NewChatPhoto    []any    `json:"new_chat_photo,omitempty"`
	DeleteChatPhoto bool     `json:"delete_chat_photo,omitempty"`
	PinnedMessage   *Message `json:"pinned_message,omitempty"`
}

// IsService reports whether the message is one of the administrative service
// messages the group tolerates (title/photo change, pin).
func (m *Message) IsService() bool {
	return m.NewChatTitle != "" || len(m.NewChatPhoto) > 0 || m.DeleteChatPhoto || m.PinnedMessage != nil
}

type TextQuote struct {
	Text string `json:"text"`
}

// QuoteText returns quoted text from either an explicit quote or the replied-to
// message.
func (m *Message) QuoteText() string {
	if m.Quote != nil {
		return m.Quote.Text
	}
	if m.ReplyTo != nil {
		return m.ReplyTo.Text
	}
	return ""
}

type MessageEntity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

type Sticker struct {
	FileUniqueID string `json:"file_unique_id"`
	SetName      string `json:"set_name,omitempty"`
}

type StickerSet struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// IsIn reports whether the status means the user is currently in the chat.
func (s MemberStatus) IsIn() bool {
	switch s {
	case StatusCreator, StatusAdministrator, StatusMember, StatusRestricted:
		return true
	}
	return false
}

type ChatMember struct {
	Status MemberStatus `json:"status"`
	User   User         `json:"user"`
}

type ChatMemberUpdated struct {
	Chat                    Chat        `json:"chat"`
	From                    User        `json:"from"`
	Date                    int64       `json:"date"`
	OldChatMember           ChatMember  `json:"old_chat_member"`
	NewChatMember           ChatMember  `json:"new_chat_member"`
	InviteLink              *InviteLink `json:"invite_link,omitempty"`
	ViaJoinRequest          bool        `json:"via_join_request,omitempty"`
	ViaChatFolderInviteLink bool        `json:"via_chat_folder_invite_link,omitempty"`
}

type InviteLink struct {
	InviteLink         string `json:"invite_link"`
	CreatesJoinRequest bool   `json:"creates_join_request"`
	IsPrimary          bool   `json:"is_primary"`
}

// Joined reports a transition from outside the chat to inside it.
func (cm *ChatMemberUpdated) Joined() bool {
	return !cm.OldChatMember.Status.IsIn() && cm.NewChatMember.Status.IsIn()
}

// Left reports a transition from inside the chat to outside it.
func (cm *ChatMemberUpdated) Left() bool {
	return cm.OldChatMember.Status.IsIn() && !cm.NewChatMember.Status.IsIn()
}

// Banned reports whether the member ended up kicked (removed by a ban).
func (cm *ChatMemberUpdated) Banned() bool {
	return cm.NewChatMember.Status == StatusKicked
}

// UnvettedJoin reports whether the join came through an invite mechanism the
// admins did not hand out directly: a secondary invite link, a join request,
// or a chat folder link.
func (cm *ChatMemberUpdated) UnvettedJoin() bool {
	if !cm.Joined() {
		return false
	}
	if cm.ViaJoinRequest || cm.ViaChatFolderInviteLink {
		return true
	}
	return cm.InviteLink != nil && !cm.InviteLink.IsPrimary
}

// TruncateForLog bounds arbitrary payload text for log lines.
func TruncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.ToValidUTF8(s[:max], "") + "…"
}
