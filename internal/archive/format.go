package archive

import (
	"fmt"
	"strings"

	"github.com/Lhcfl/whatdidwesaybot/internal/store"
)

const (
	// DefaultLinkBase is the prefix of links to messages in private supergroups.
	DefaultLinkBase = "https://t.me/c"

	// summaryMaxChars bounds the excerpt shown for each search hit.
	summaryMaxChars = 30
)

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Formatter renders search hits as single-line HTML summaries.
type Formatter struct {
	LinkBase string
}

// Permalink returns the public link to rec. Global records and chats whose id
// does not map to a public number have none.
func (f Formatter) Permalink(rec store.Record) (string, bool) {
	if rec.Scope.IsGlobal() {
		return "", false
	}
	n := abs(rec.Scope.ChatID) - store.GroupLinkOffset
	if n <= 0 {
		return "", false
	}
	base := f.LinkBase
	if base == "" {
		base = DefaultLinkBase
	}
	return fmt.Sprintf("%s/%d/%d", strings.TrimRight(base, "/"), n, rec.OrdinalID), true
}

// FormatSummary renders hit as `<a href="link">excerpt</a> = score`.
func (f Formatter) FormatSummary(hit store.Hit) string {
	text := htmlEscaper.Replace(excerpt(hit.Record.Text, summaryMaxChars))
	if url, ok := f.Permalink(hit.Record); ok {
		return fmt.Sprintf(`<a href="%s">%s</a> = %.2f`, url, text, hit.Score)
	}
	return fmt.Sprintf("%s = %.2f", text, hit.Score)
}

// Excerpt returns the plain-text excerpt of rec used in summaries.
func (f Formatter) Excerpt(rec store.Record) string {
	return excerpt(rec.Text, summaryMaxChars)
}

// excerpt keeps the first limit characters of s on one line. It cuts on rune
// boundaries only.
func excerpt(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			s = s[:i]
			break
		}
		n++
	}
	return strings.ReplaceAll(s, "\n", " ")
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
