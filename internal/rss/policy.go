package rss

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bryan-buckman/feedrewrite/internal/model"
)

// Policy decides which of a feed's articles enter the rewrite stage.
type Policy string

const (
	// PolicyFeedOrder takes articles in the order the feed lists them.
	PolicyFeedOrder Policy = "feed-order"
	// PolicyRecency ranks articles by freshness and title length first.
	PolicyRecency Policy = "recency"
)

// DefaultMaxPerFeed is the default per-feed cap.
const DefaultMaxPerFeed = 3

// recencyWindow is the age after which an article earns no freshness score.
const recencyWindow = 48 * time.Hour

// ParsePolicy validates a policy name. Empty means PolicyFeedOrder.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyFeedOrder, nil
	case PolicyFeedOrder, PolicyRecency:
		return p, nil
	default:
		return "", fmt.Errorf("unknown selection policy %q", s)
	}
}

// Select returns at most limit articles according to policy.
// A non-positive limit uses DefaultMaxPerFeed.
func Select(articles []model.Article, policy Policy, limit int, now time.Time) []model.Article {
	if limit <= 0 {
		limit = DefaultMaxPerFeed
	}
	out := make([]model.Article, len(articles))
	copy(out, articles)

	if policy == PolicyRecency {
		scores := make(map[int]float64, len(out))
		idx := make([]int, len(out))
		for i := range out {
			idx[i] = i
			scores[i] = score(out[i], now)
		}
		sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
		ranked := make([]model.Article, len(out))
		for i, j := range idx {
			ranked[i] = out[j]
		}
		out = ranked
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// score weights freshness (0..1) above title length (0..0.5).
func score(a model.Article, now time.Time) float64 {
	var s float64
	if a.PublishDate != nil {
		age := now.Sub(*a.PublishDate)
		if age < 0 {
			age = 0
		}
		if age < recencyWindow {
			s += 1 - float64(age)/float64(recencyWindow)
		}
	}
	titleLen := min(len([]rune(a.Title)), 100)
	s += 0.5 * float64(titleLen) / 100
	return s
}
