// Package feedxml renders the item store as an RSS 2.0 document.
package feedxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/bryan-buckman/feedrewrite/internal/items"
	"github.com/bryan-buckman/feedrewrite/internal/model"
)

// DefaultWindow is the number of most recent items rendered.
const DefaultWindow = 100

type document struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel channel  `xml:"channel"`
}

type channel struct {
	Title         string  `xml:"title"`
	Link          string  `xml:"link"`
	Description   string  `xml:"description"`
	LastBuildDate string  `xml:"lastBuildDate"`
	Items         []entry `xml:"item"`
}

type entry struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        guid   `xml:"guid"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

type guid struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// Build renders the window most recent items (newest first) into RSS 2.0.
// A non-positive window uses DefaultWindow. The output depends only on the
// items, meta and now; now is used for lastBuildDate alone.
func Build(list []model.Item, meta model.ChannelMeta, now time.Time, window int) ([]byte, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	recent := items.Recent(list, window)

	doc := document{
		Version: "2.0",
		Channel: channel{
			Title:         meta.Title,
			Link:          meta.Link,
			Description:   meta.Description,
			LastBuildDate: now.UTC().Format(time.RFC1123Z),
			Items:         make([]entry, 0, len(recent)),
		},
	}
	for _, it := range recent {
		doc.Channel.Items = append(doc.Channel.Items, entry{
			Title:       it.Title,
			Link:        it.Link(),
			GUID:        guid{IsPermaLink: "false", Value: it.ID},
			Description: it.Rewrite,
			PubDate:     it.Time().Format(time.RFC1123Z),
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode feed: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
