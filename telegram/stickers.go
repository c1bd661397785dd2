package telegram

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// StickerTitleCache memoizes getStickerSet lookups. Sticker sets are
// referenced on every sticker message but their titles almost never change,
// so a small expiring LRU keeps the spam check from hammering the API.
type StickerTitleCache struct {
	client Client
	data   *expirable.LRU[string, string]
}

func NewStickerTitleCache(client Client, capacity int, ttl time.Duration) *StickerTitleCache {
	return &StickerTitleCache{
		client: client,
		data:   expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

// StickerSetTitle returns the human-visible title for a sticker set name.
func (c *StickerTitleCache) StickerSetTitle(ctx context.Context, name string) (string, error) {
	if v, ok := c.data.Get(name); ok {
		return v, nil
	}
	set, err := c.client.GetStickerSet(ctx, name)
	if err != nil {
		return "", err
	}
	c.data.Add(name, set.Title)
	return set.Title, nil
}
