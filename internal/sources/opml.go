package sources

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bryan-buckman/feedrewrite/internal/opml"
	"github.com/bryan-buckman/feedrewrite/internal/storage"
)

// ImportOPML merges the feed URLs of an OPML document into the list stored
// under key. It returns how many URLs were new and the resulting list size.
func ImportOPML(ctx context.Context, s storage.Store, key string, r io.Reader) (added, total int, err error) {
	urls, err := opml.ParseURLs(r)
	if err != nil {
		return 0, 0, err
	}
	text, _, err := storage.GetText(ctx, s, key)
	if err != nil {
		return 0, 0, fmt.Errorf("load feed list: %w", err)
	}
	merged, added := Merge(Parse(text), urls)
	if added == 0 {
		return 0, len(merged), nil
	}
	if err := storage.PutText(ctx, s, key, Format(merged), storage.ContentTypeText); err != nil {
		return 0, 0, fmt.Errorf("save feed list: %w", err)
	}
	return added, len(merged), nil
}

// ExportOPML renders the list stored under key as OPML.
func ExportOPML(ctx context.Context, s storage.Store, key, title string) ([]byte, error) {
	text, _, err := storage.GetText(ctx, s, key)
	if err != nil {
		return nil, fmt.Errorf("load feed list: %w", err)
	}
	return opml.Export(title, Parse(text), time.Now())
}
