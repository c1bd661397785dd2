package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"golang.org/x/time/rate"
)

// Client is the surface the moderation core needs from the platform.
type Client interface {
	DeleteMessage(ctx context.Context, chatID ChatID, messageID MessageID) error
	BanMember(ctx context.Context, chatID ChatID, userID UserID) error
	GetChatMember(ctx context.Context, chatID ChatID, userID UserID) (MemberStatus, error)
	GetStickerSet(ctx context.Context, name string) (*StickerSet, error)
}

// BotClient talks to api.telegram.org over HTTP. All requests pass through a
// client-side rate limiter so a burst of moderation work cannot exceed the
// platform's global request budget.
type BotClient struct {
	Host   string
	Logger *slog.Logger

	token   string
	httpc   *http.Client
	limiter *rate.Limiter
}

var _ Client = (*BotClient)(nil)

func NewBotClient(token string, requestsPerSecond float64, logger *slog.Logger) *BotClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &BotClient{
		Host:    "https://api.telegram.org",
		Logger:  logger,
		token:   token,
		httpc:   &http.Client{Timeout: 90 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter      int64 `json:"retry_after"`
		MigrateToChatID int64 `json:"migrate_to_chat_id"`
	} `json:"parameters"`
}

func (c *BotClient) invoke(ctx context.Context, method string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := fmt.Sprintf("%s/bot%s/%s", c.Host, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("User-Agent", "ahgroupbot/"+versioninfo.Short())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	var ar apiResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return fmt.Errorf("decoding %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !ar.OK {
		apiErr := &Error{
			StatusCode:  ar.ErrorCode,
			Description: ar.Description,
		}
		if ar.Parameters != nil {
			apiErr.RetryAfter = time.Duration(ar.Parameters.RetryAfter) * time.Second
			apiErr.MigrateTo = ChatID(ar.Parameters.MigrateToChatID)
		}
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
	}
	return nil
}

// GetUpdates long-polls for the update kinds the engine handles. Entries that
// fail to decode come back with Malformed set instead of being dropped.
func (c *BotClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]*Update, error) {
	params := url.Values{}
	if offset != 0 {
		params.Set("offset", strconv.FormatInt(offset, 10))
	}
	params.Set("timeout", strconv.FormatInt(int64(timeout/time.Second), 10))
	params.Set("allowed_updates", `["message","edited_message","chat_member"]`)

	var raw []json.RawMessage
	if err := c.invoke(ctx, "getUpdates", params, &raw); err != nil {
		return nil, err
	}

	updates := make([]*Update, 0, len(raw))
	for _, r := range raw {
		var upd Update
		if err := json.Unmarshal(r, &upd); err != nil || upd.ID == 0 {
			var probe struct {
				ID int64 `json:"update_id"`
			}
			_ = json.Unmarshal(r, &probe)
			updates = append(updates, &Update{ID: probe.ID, Malformed: string(r)})
			continue
		}
		updates = append(updates, &upd)
	}
	return updates, nil
}

func (c *BotClient) DeleteMessage(ctx context.Context, chatID ChatID, messageID MessageID) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(int64(chatID), 10))
	params.Set("message_id", strconv.FormatInt(int64(messageID), 10))
	return c.invoke(ctx, "deleteMessage", params, nil)
}

func (c *BotClient) BanMember(ctx context.Context, chatID ChatID, userID UserID) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(int64(chatID), 10))
	params.Set("user_id", strconv.FormatInt(int64(userID), 10))
	return c.invoke(ctx, "banChatMember", params, nil)
}

func (c *BotClient) GetChatMember(ctx context.Context, chatID ChatID, userID UserID) (MemberStatus, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(int64(chatID), 10))
	params.Set("user_id", strconv.FormatInt(int64(userID), 10))
	var member ChatMember
	if err := c.invoke(ctx, "getChatMember", params, &member); err != nil {
		return "", err
	}
	return member.Status, nil
}

func (c *BotClient) GetStickerSet(ctx context.Context, name string) (*StickerSet, error) {
	params := url.Values{}
	params.Set("name", name)
	var set StickerSet
	if err := c.invoke(ctx, "getStickerSet", params, &set); err != nil {
		return nil, err
	}
	return &set, nil
}
