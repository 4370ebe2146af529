// Package segment turns message text into search tokens.
//
// Two granularities are produced from the same text. Index mode is
// over-inclusive (a "search" cut plus single characters of CJK words) so that
// any substring typed later has a token to match. Query mode is the plain cut
// of what the searcher typed. Using the same cut on both sides loses recall for
// scripts without whitespace between words.
package segment

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/go-ego/gse"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer wraps a gse segmenter loaded with the embedded dictionary.
// Safe for concurrent use once constructed.
type Tokenizer struct {
	seg gse.Segmenter
}

// New loads the embedded Chinese dictionary. Loading takes around a second,
// so build one Tokenizer per process and share it.
func New() (*Tokenizer, error) {
	t := &Tokenizer{}
	t.seg.SkipLog = true
	if err := t.seg.LoadDictEmbed(); err != nil {
		return nil, fmt.Errorf("load segmenter dictionary: %w", err)
	}
	slog.Debug("segmenter dictionary loaded")
	return t, nil
}

// SegmentForIndex returns the index-mode tokens of text. Each single
// character split out of a CJK word is emitted once per text, so long words
// do not inflate the term frequency of their characters.
func (t *Tokenizer) SegmentForIndex(text string) []string {
	var (
		out   []string
		chars = make(map[rune]struct{})
	)
	for _, tok := range t.cut(text, true) {
		runes := []rune(tok)
		if len(runes) == 1 {
			chars[runes[0]] = struct{}{}
		}
		out = append(out, tok)

		if len(runes) < 2 {
			continue
		}
		for _, r := range runes {
			if _, ok := chars[r]; ok || !isIdeographic(r) {
				continue
			}
			chars[r] = struct{}{}
			out = append(out, string(r))
		}
	}
	return out
}

// SegmentForQuery returns the query-mode tokens of text.
func (t *Tokenizer) SegmentForQuery(text string) []string {
	return t.cut(text, false)
}

// cut splits text into runs first. Runs of CJK characters go through the
// dictionary segmenter; any other run of letters and digits is one token, so
// accented Latin words reach the FTS tokenizer whole and can be folded there.
func (t *Tokenizer) cut(text string, search bool) []string {
	text = normalize(text)
	if text == "" {
		return nil
	}

	var out []string
	for _, r := range splitRuns(text) {
		if !r.cjk {
			out = append(out, r.text)
			continue
		}
		var words []string
		if search {
			words = t.seg.CutSearch(r.text, false)
		} else {
			words = t.seg.Cut(r.text, false)
		}
		for _, w := range words {
			w = strings.TrimSpace(w)
			if searchable(w) {
				out = append(out, w)
			}
		}
	}
	return out
}

type run struct {
	text string
	cjk  bool
}

// splitRuns groups text into maximal runs of CJK characters and of other
// word characters. Everything else separates runs and is dropped.
func splitRuns(text string) []run {
	var (
		runs  []run
		start = -1
		cjk   bool
	)
	flush := func(end int) {
		if start >= 0 {
			runs = append(runs, run{text: text[start:end], cjk: cjk})
			start = -1
		}
	}
	for i, r := range text {
		switch {
		case isIdeographic(r):
			if start >= 0 && !cjk {
				flush(i)
			}
			if start < 0 {
				start, cjk = i, true
			}
		case isWordChar(r):
			if start >= 0 && cjk {
				flush(i)
			}
			if start < 0 {
				start, cjk = i, false
			}
		default:
			flush(i)
		}
	}
	flush(len(text))
	return runs
}

// Join builds the whitespace-separated projection stored in the index.
func Join(tokens []string) string {
	return strings.Join(tokens, " ")
}

func normalize(text string) string {
	return strings.TrimSpace(norm.NFKC.String(text))
}

// searchable reports whether tok carries at least one letter or digit.
// Punctuation-only tokens produce no terms in the FTS tokenizer.
func searchable(tok string) bool {
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r)
}

func isIdeographic(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana)
}
