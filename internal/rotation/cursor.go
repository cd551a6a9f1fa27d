package rotation

import (
	"context"
	"fmt"

	"github.com/bryan-buckman/feedrewrite/internal/model"
	"github.com/bryan-buckman/feedrewrite/internal/storage"
)

// LoadCursor reads the cursor blob, returning the zero cursor when absent.
// Negative offsets from a hand-edited blob are clamped to zero.
func LoadCursor(ctx context.Context, s storage.Store, key string) (model.Cursor, error) {
	var c model.Cursor
	if _, err := storage.GetJSON(ctx, s, key, &c); err != nil {
		return model.Cursor{}, fmt.Errorf("load cursor: %w", err)
	}
	c.FeedIndex = max(c.FeedIndex, 0)
	c.URLIndex = max(c.URLIndex, 0)
	return c, nil
}

// SaveCursor persists the cursor blob.
func SaveCursor(ctx context.Context, s storage.Store, key string, c model.Cursor) error {
	if err := storage.PutJSON(ctx, s, key, c); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// Advance moves both offsets forward by the number of sources selected this run.
func Advance(c model.Cursor, feedsSelected, feedLen, urlsSelected, urlLen int) model.Cursor {
	return model.Cursor{
		FeedIndex: AdvanceIndex(c.FeedIndex, feedsSelected, feedLen),
		URLIndex:  AdvanceIndex(c.URLIndex, urlsSelected, urlLen),
	}
}
