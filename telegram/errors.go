package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error is a Bot API error response. The Description strings are the only
// discriminator Telegram provides for most failure modes, so classification
// is substring-based, mirroring the documented error catalogue.
type Error struct {
	StatusCode  int
	Description string
	// RetryAfter is non-zero when the platform asked us to back off.
	RetryAfter time.Duration
	// MigrateTo is non-zero when the group was upgraded to a supergroup and
	// requests must be re-issued against the new chat ID.
	MigrateTo ChatID
}

func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram error %d: %s (retry after %s)", e.StatusCode, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram error %d: %s", e.StatusCode, e.Description)
}

// IsThrottled reports whether the platform rate-limited the request and
// RetryAfter holds the wait it asked for.
func (e *Error) IsThrottled() bool {
	return e.StatusCode == 429 || e.RetryAfter > 0
}

// IsGone reports whether the request target no longer exists, which for
// moderation purposes means the work is already done.
func (e *Error) IsGone() bool {
	if e.StatusCode != 400 {
		return false
	}
	desc := strings.ToLower(e.Description)
	return strings.Contains(desc, "message to delete not found") ||
		strings.Contains(desc, "message identifier is not valid") ||
		strings.Contains(desc, "message not found") ||
		strings.Contains(desc, "user not found")
}

// IsForbidden reports whether the bot lacks the rights to act (or was removed
// from the chat entirely). Nothing further can be done, so callers treat this
// as a no-op success.
func (e *Error) IsForbidden() bool {
	if e.StatusCode == 403 {
		return true
	}
	desc := strings.ToLower(e.Description)
	return strings.Contains(desc, "message can't be deleted") ||
		strings.Contains(desc, "not enough rights") ||
		strings.Contains(desc, "bot was kicked") ||
		strings.Contains(desc, "chat not found")
}

// AsError unwraps err to a platform *Error, if it is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
