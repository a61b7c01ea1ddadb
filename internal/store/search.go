package store

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Hit is one search result: an entry id and its relevance, higher is better.
type Hit struct {
	EntryID int64   `json:"entry_id"`
	Score   float64 `json:"score"`
}

// SearchIndex maintains the full-text index over entry content. Which
// backend serves it is chosen at build time: SQLite FTS5 with the porter
// tokenizer under the sqlite_fts5 tag, a stemmed term table otherwise.
// Both tokenize the same way and require every query term to match.
type SearchIndex struct{}

// Tokenize lowercases text, strips diacritics and splits it into runs of
// letters and digits. Folding matches the unicode61 tokenizer, so both
// backends agree that "café" and "cafe" are one token.
func Tokenize(text string) []string {
	return strings.FieldsFunc(fold(strings.ToLower(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// fold removes combining marks. Transformers are stateful, so each call
// builds its own chain.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func uniq(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
