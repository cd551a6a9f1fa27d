package rewrite

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

// filler returns n runes of punctuation-free words.
func filler(n int) string {
	if n <= 0 {
		return ""
	}
	s := strings.Repeat("word ", n/5+1)
	return s[:n]
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "  The   council\n\nvoted\t yes. ", "The council voted yes."},
		{"strips headings and bold", "## Big news\n**The council** voted __yes__.", "Big news The council voted yes."},
		{"drops lead-in", "Sure! Here is a rewritten version of the article: The council voted yes.", "The council voted yes."},
		{"drops label", "Rewrite: The council voted yes.", "The council voted yes."},
		{"drops trailing meta", "The council voted yes. (312 characters)", "The council voted yes."},
		{"drops sign-off", "The council voted yes. Let me know if you need changes.", "The council voted yes."},
		{"strips quotes", "\"The council voted yes.\"", "The council voted yes."},
		{"keeps hash mid-line", "Teams using C# met today.", "Teams using C# met today."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Clean(tc.in))
		})
	}
}

func TestClampLengths(t *testing.T) {
	for _, n := range []int{0, 50, 250, 400, 1000} {
		for _, withPunct := range []bool{false, true} {
			in := filler(n)
			if withPunct && n > 302 {
				in = filler(300) + ". " + filler(n-302)
			}
			out := Clamp(in, 200, 400)
			got := utf8.RuneCountInString(out)

			if utf8.RuneCountInString(in) <= 400 {
				assert.Equal(t, in, out, "n=%d punct=%v", n, withPunct)
				continue
			}
			assert.GreaterOrEqual(t, got, 200, "n=%d punct=%v", n, withPunct)
			assert.LessOrEqual(t, got, 400, "n=%d punct=%v", n, withPunct)
			if withPunct {
				assert.True(t, strings.HasSuffix(out, "."), "should cut at sentence end: %q", out)
				assert.Equal(t, 301, got)
			} else {
				assert.True(t, strings.HasSuffix(out, Ellipsis))
			}
		}
	}
}

func TestClampPrefersLastSentenceInWindow(t *testing.T) {
	in := filler(150) + ". " + filler(100) + "! " + filler(100) + "? " + filler(300)
	out := Clamp(in, 200, 400)
	assert.True(t, strings.HasSuffix(out, "?"))
	assert.Equal(t, 355, utf8.RuneCountInString(out))
}

func TestClampKeepsClosingQuotesAndBrackets(t *testing.T) {
	for _, end := range []string{".”", ".)", "!\"", "?’)"} {
		in := filler(300) + end + " " + filler(600)
		out := Clamp(in, 200, 400)
		assert.True(t, strings.HasSuffix(out, end), "should cut after %q: %q", end, out)
		assert.Equal(t, 300+utf8.RuneCountInString(end), utf8.RuneCountInString(out))
	}
}

func TestClampIgnoresTerminatorBeforeWindow(t *testing.T) {
	in := filler(100) + ". " + filler(600)
	out := Clamp(in, 200, 400)
	assert.True(t, strings.HasSuffix(out, Ellipsis))
	assert.LessOrEqual(t, utf8.RuneCountInString(out), 400)
	assert.GreaterOrEqual(t, utf8.RuneCountInString(out), 200)
}

func TestClampCountsRunes(t *testing.T) {
	in := strings.Repeat("é", 500)
	out := Clamp(in, 200, 400)
	assert.Equal(t, 400, utf8.RuneCountInString(out))
	assert.True(t, utf8.ValidString(out))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 4))
	assert.Equal(t, "", Truncate("hi", 0))
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("  Title  ", strings.Repeat("x", 3000), 200, 400)
	assert.Contains(t, p, "Title: Title\n")
	assert.Contains(t, p, "200 to 400 characters")
	assert.NotContains(t, p, strings.Repeat("x", BodyLimit+1))
	assert.Contains(t, p, strings.Repeat("x", BodyLimit))
}
