package rewrite

import (
	"regexp"
	"strings"
	"unicode"
)

// Ellipsis is appended when a blurb has to be hard-truncated.
const Ellipsis = "…"

var (
	headingRe  = regexp.MustCompile(`(?m)^\s*#{1,6}\s*`)
	emphasisRe = regexp.MustCompile(`\*\*|__`)
	leadInRes  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:sure|certainly|of course|absolutely|okay)[,!.:]?\s+`),
		regexp.MustCompile(`(?i)^here(?:'s| is)\s+(?:a|an|the|your)?\s*(?:rewritten|rewrite|rewrite of|summary|short|concise|brief|blurb|version)[^:]*:\s*`),
		regexp.MustCompile(`(?i)^(?:rewritten(?: version| article| text)?|rewrite|summary|blurb|title)\s*:\s*`),
	}
	metaPhraseRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bas an ai(?: language model)?,?\s*`),
		regexp.MustCompile(`(?i)\s*\(?\d+\s+characters?\)?\.?\s*$`),
		regexp.MustCompile(`(?i)\s*(?:let me know if[^.!?]*[.!?]?|i hope this helps[.!]?)\s*$`),
	}
)

// Clean normalizes raw model output: markdown heading and bold markers are
// removed, conversational lead-ins and meta phrases are dropped, wrapping
// quotes are stripped and whitespace collapses to single spaces.
func Clean(text string) string {
	text = headingRe.ReplaceAllString(text, "")
	text = emphasisRe.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")

	for changed := true; changed; {
		changed = false
		for _, re := range leadInRes {
			if loc := re.FindStringIndex(text); loc != nil && loc[1] > 0 {
				text = strings.TrimSpace(text[loc[1]:])
				changed = true
			}
		}
	}
	for _, re := range metaPhraseRes {
		text = re.ReplaceAllString(text, "")
	}
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"“”")
	return strings.TrimSpace(text)
}

// Clamp bounds text to maxLen runes. Text no longer than maxLen is returned
// unchanged. Longer text is cut after the last sentence end (a terminator plus
// any closing quotes or brackets) that leaves between minLen and maxLen runes;
// without one it is cut at a word boundary (or hard) to maxLen-1 runes and
// Ellipsis is appended.
func Clamp(text string, minLen, maxLen int) string {
	r := []rune(text)
	if maxLen <= 0 || len(r) <= maxLen {
		return text
	}
	if minLen < 1 {
		minLen = 1
	}
	if minLen > maxLen {
		minLen = maxLen
	}

	for i := maxLen - 1; i >= minLen-1; i-- {
		if endsSentence(r, i) && unicode.IsSpace(r[i+1]) {
			return string(r[:i+1])
		}
	}

	limit := maxLen - len([]rune(Ellipsis))
	cut := limit
	for i := limit; i > minLen; i-- {
		if unicode.IsSpace(r[i]) {
			cut = i
			break
		}
	}
	head := strings.TrimRightFunc(string(r[:cut]), unicode.IsSpace)
	if trimmed := strings.TrimRight(head, ",;:-"); len([]rune(trimmed)) >= minLen {
		head = trimmed
	}
	return head + Ellipsis
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', '»', ')', ']':
		return true
	}
	return false
}

// endsSentence reports whether r[i] closes a sentence: a terminator,
// optionally followed by closing quotes or brackets.
func endsSentence(r []rune, i int) bool {
	for i >= 0 && isCloser(r[i]) {
		i--
	}
	return i >= 0 && isTerminator(r[i])
}

// Truncate shortens s to at most n runes without adding a marker.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
