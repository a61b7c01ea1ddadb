package journal

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/dia/internal/models"
)

// CompletionLimit caps the candidates returned for one completion request.
const CompletionLimit = 10

// Candidate is one completion: Display is the bare name, Replacement is the
// sigil-prefixed text that replaces the word under the cursor.
type Candidate struct {
	Display     string `json:"display"`
	Replacement string `json:"replacement"`
}

// Completer suggests entity names for the word under a cursor.
type Completer interface {
	Complete(ctx context.Context, line string, pos int) (int, []Candidate, error)
}

var _ Completer = (*Service)(nil)

// WordAt returns the byte offset where the word ending at pos starts, and the
// word itself. Words are separated by whitespace or commas; pos is clamped to
// the line.
func WordAt(line string, pos int) (int, string) {
	pos = max(0, min(pos, len(line)))
	prefix := line[:pos]
	start := 0
	if i := strings.LastIndexFunc(prefix, isWordBreak); i >= 0 {
		_, size := utf8.DecodeRuneInString(prefix[i:])
		start = i + size
	}
	return start, prefix[start:]
}

func isWordBreak(r rune) bool {
	return unicode.IsSpace(r) || r == ','
}

// Complete returns the start offset of the word under the cursor and up to
// CompletionLimit known names matching it. Only sigil-prefixed words
// complete; anything else yields no candidates.
func (s *Service) Complete(ctx context.Context, line string, pos int) (int, []Candidate, error) {
	start, word := WordAt(line, pos)
	if word == "" {
		return start, nil, nil
	}
	ns, ok := models.NamespaceForSigil(word[0])
	if !ok {
		return start, nil, nil
	}
	names, err := s.EntitiesWithPrefix(ctx, ns, word[1:], CompletionLimit)
	if err != nil {
		return start, nil, err
	}
	out := make([]Candidate, 0, len(names))
	for _, name := range names {
		out = append(out, Candidate{Display: name, Replacement: ns.Sigil() + name})
	}
	return start, out, nil
}
