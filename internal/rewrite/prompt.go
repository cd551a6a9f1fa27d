package rewrite

import (
	"fmt"
	"strings"
)

// Prompt field limits, in runes.
const (
	TitleLimit = 200
	BodyLimit  = 1500
)

const systemPrompt = "You are a news editor who rewrites articles into short, original blurbs. " +
	"Write plain prose only: no headings, no markdown, no lists, no preamble and no commentary about the task."

// BuildPrompt renders the user prompt for one article.
func BuildPrompt(title, body string, minLen, maxLen int) string {
	title = Truncate(strings.TrimSpace(title), TitleLimit)
	body = Truncate(strings.TrimSpace(body), BodyLimit)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Rewrite the following article as one paragraph of %d to %d characters. ", minLen, maxLen)
	sb.WriteString("Keep the facts, use your own words and end on a complete sentence.\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", title)
	if body != "" {
		fmt.Fprintf(&sb, "\n%s\n", body)
	}
	return sb.String()
}
