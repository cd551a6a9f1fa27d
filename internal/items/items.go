// Package items maintains the persisted set of rewritten articles, keyed by source URL.
package items

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bryan-buckman/feedrewrite/internal/model"
	"github.com/bryan-buckman/feedrewrite/internal/storage"
)

// New builds an item with a fresh id.
func New(url, shortURL, title, rewrite string, now time.Time) model.Item {
	return model.Item{
		ID:        uuid.NewString(),
		URL:       url,
		ShortURL:  shortURL,
		Title:     title,
		Rewrite:   rewrite,
		Timestamp: now.UnixMilli(),
	}
}

// Upsert returns a new slice where item replaces the entry with the same URL,
// keeping its position, or is appended when no entry matches.
// The input slice is not modified.
func Upsert(list []model.Item, item model.Item) []model.Item {
	out := make([]model.Item, len(list), len(list)+1)
	copy(out, list)
	for i := range out {
		if out[i].URL == item.URL {
			out[i] = item
			return out
		}
	}
	return append(out, item)
}

// Recent returns up to n items ordered newest first. Items with equal
// timestamps keep their store order. n <= 0 returns every item.
func Recent(list []model.Item, n int) []model.Item {
	out := make([]model.Item, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Load reads the item store. A missing blob yields an empty, non-nil slice.
func Load(ctx context.Context, s storage.Store, key string) ([]model.Item, error) {
	var list []model.Item
	if _, err := storage.GetJSON(ctx, s, key, &list); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	if list == nil {
		list = []model.Item{}
	}
	return list, nil
}

// Save writes the whole item store as one JSON array.
func Save(ctx context.Context, s storage.Store, key string, list []model.Item) error {
	if list == nil {
		list = []model.Item{}
	}
	if err := storage.PutJSON(ctx, s, key, list); err != nil {
		return fmt.Errorf("save items: %w", err)
	}
	return nil
}
