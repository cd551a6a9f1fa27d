// Package sources loads the newline-delimited source lists (feed URLs and
// direct article URLs) from the object store.
package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/bryan-buckman/feedrewrite/internal/storage"
)

// Parse splits raw text into trimmed lines, dropping blanks and "#" comments.
// Order is preserved. Empty input yields an empty, non-nil slice.
func Parse(raw string) []string {
	lines := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case '\n', '\r', '\v', '\f', '\u0085', '\u2028', '\u2029':
			return true
		}
		return false
	})
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Lists holds the two source lists read at the start of a run.
type Lists struct {
	Feeds []string
	URLs  []string
}

// Empty reports whether neither list has entries.
func (l Lists) Empty() bool {
	return len(l.Feeds) == 0 && len(l.URLs) == 0
}

// Load reads and parses both lists. A missing blob is an empty list.
func Load(ctx context.Context, s storage.Store, feedsKey, urlsKey string) (Lists, error) {
	feedsText, _, err := storage.GetText(ctx, s, feedsKey)
	if err != nil {
		return Lists{}, fmt.Errorf("load feed list: %w", err)
	}
	urlsText, _, err := storage.GetText(ctx, s, urlsKey)
	if err != nil {
		return Lists{}, fmt.Errorf("load url list: %w", err)
	}
	return Lists{Feeds: Parse(feedsText), URLs: Parse(urlsText)}, nil
}

// Merge appends entries from add that are not already in list, keeping order.
func Merge(list, add []string) ([]string, int) {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list)+len(add))
	for _, v := range list {
		seen[v] = struct{}{}
		out = append(out, v)
	}
	added := 0
	for _, v := range add {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		added++
	}
	return out, added
}

// Format renders a list back into the newline-delimited text form.
func Format(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return strings.Join(list, "\n") + "\n"
}
