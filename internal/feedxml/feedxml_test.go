package feedxml

import (
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/feedrewrite/internal/model"
)

var meta = model.ChannelMeta{
	Title:       "Rewritten News",
	Link:        "https://feeds.example.com/",
	Description: "Short takes",
}

func sampleItems() []model.Item {
	return []model.Item{
		{ID: "id-1", URL: "https://a.example/1", Title: "Older", Rewrite: "First blurb.", Timestamp: 1717243200000},
		{ID: "id-2", URL: "https://b.example/2", ShortURL: "https://sho.rt/b", Title: "Newer", Rewrite: "Second blurb.", Timestamp: 1717246800000},
	}
}

func TestBuildParsesAsRSS(t *testing.T) {
	now := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	out, err := Build(sampleItems(), meta, now, 0)
	require.NoError(t, err)

	feed, err := gofeed.NewParser().ParseString(string(out))
	require.NoError(t, err)
	assert.Equal(t, "rss", feed.FeedType)
	assert.Equal(t, "Rewritten News", feed.Title)
	require.Len(t, feed.Items, 2)

	assert.Equal(t, "Newer", feed.Items[0].Title)
	assert.Equal(t, "https://sho.rt/b", feed.Items[0].Link)
	assert.Equal(t, "id-2", feed.Items[0].GUID)
	assert.Equal(t, "https://a.example/1", feed.Items[1].Link)
	require.NotNil(t, feed.Items[1].PublishedParsed)
	assert.Equal(t, int64(1717243200), feed.Items[1].PublishedParsed.Unix())

	assert.Contains(t, string(out), "<lastBuildDate>Sat, 01 Jun 2024 14:00:00 +0000</lastBuildDate>")
	assert.Contains(t, string(out), `<guid isPermaLink="false">id-1</guid>`)
}

func TestBuildIsDeterministic(t *testing.T) {
	now := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	a, err := Build(sampleItems(), meta, now, 0)
	require.NoError(t, err)
	b, err := Build(sampleItems(), meta, now, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Build(sampleItems(), meta, now.Add(time.Hour), 0)
	require.NoError(t, err)
	diff := 0
	al, cl := strings.Split(string(a), "\n"), strings.Split(string(c), "\n")
	require.Equal(t, len(al), len(cl))
	for i := range al {
		if al[i] != cl[i] {
			diff++
			assert.Contains(t, al[i], "lastBuildDate")
		}
	}
	assert.Equal(t, 1, diff)
}

func TestBuildEscapesText(t *testing.T) {
	list := []model.Item{{
		ID:        "x",
		URL:       "https://a.example/?a=1&b=2",
		Title:     "Tom & Jerry <live>",
		Rewrite:   "Fish & chips > salad.",
		Timestamp: 1717243200000,
	}}
	out, err := Build(list, meta, time.Unix(0, 0), 0)
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "Tom &amp; Jerry &lt;live&gt;")
	assert.Contains(t, s, "Fish &amp; chips &gt; salad.")
	assert.Contains(t, s, "https://a.example/?a=1&amp;b=2")
	assert.NotContains(t, s, "<live>")
}

func TestBuildWindow(t *testing.T) {
	out, err := Build(sampleItems(), meta, time.Now(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), "<item>"))
	assert.Contains(t, string(out), "Newer")
}

func TestBuildEmpty(t *testing.T) {
	out, err := Build(nil, meta, time.Now(), 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "<?xml"))
	assert.NotContains(t, string(out), "<item>")
}
