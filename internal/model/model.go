// Package model defines shared data structures.
package model

import "time"

// Article is one entry parsed from a syndication feed or extracted from a page.
// It lives only for the duration of a run.
type Article struct {
	Title       string
	Link        string
	PublishDate *time.Time // nil when the feed omits it
	Summary     string
}

// Item is a persisted rewrite record, unique by URL.
type Item struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	ShortURL  string `json:"shortUrl"`
	Title     string `json:"title"`
	Rewrite   string `json:"rewrite"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Time returns the item timestamp as a time.Time.
func (i Item) Time() time.Time {
	return time.UnixMilli(i.Timestamp).UTC()
}

// Link returns the short URL when present, otherwise the source URL.
func (i Item) Link() string {
	if i.ShortURL != "" {
		return i.ShortURL
	}
	return i.URL
}

// Cursor holds the rotation offsets into the feed and URL source lists.
type Cursor struct {
	FeedIndex int `json:"feedIndex"`
	URLIndex  int `json:"urlIndex"`
}

// ChannelMeta describes the rendered feed channel.
type ChannelMeta struct {
	Title       string
	Link        string
	Description string
}

// RunSummary reports the outcome of one pipeline run.
type RunSummary struct {
	Selected      int       `json:"selected"`
	Succeeded     int       `json:"succeeded"`
	Skipped       int       `json:"skipped"`
	FeedsSelected int       `json:"feedsSelected"`
	URLsSelected  int       `json:"urlsSelected"`
	FeedsFailed   int       `json:"feedsFailed"`
	StoreSize     int       `json:"storeSize"`
	Cursor        Cursor    `json:"cursor"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
}
