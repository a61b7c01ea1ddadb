// Package parser extracts sigil references (@person, %project, #tag) and
// optional YAML frontmatter from entry text.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/dia/internal/models"
)

// nameClass matches the word characters of a sigil name: letters, marks,
// decimal digits, connector punctuation, and hyphens.
const nameClass = `[\p{L}\p{M}\p{Nd}\p{Pc}-]`

var (
	sigilRe = regexp.MustCompile(`([@%#])(` + nameClass + `+)`)
	nameRe  = regexp.MustCompile(`^` + nameClass + `+$`)
)

// Ref is a single (namespace, name) reference found in text.
type Ref struct {
	Namespace models.Namespace
	Name      string
}

// Refs holds the references of one text, per namespace, in scan order.
// Repeated occurrences are kept.
type Refs struct {
	People   []string
	Projects []string
	Tags     []string
}

// All flattens r into people, then projects, then tags.
func (r Refs) All() []Ref {
	out := make([]Ref, 0, r.Len())
	for _, n := range r.People {
		out = append(out, Ref{Namespace: models.Person, Name: n})
	}
	for _, n := range r.Projects {
		out = append(out, Ref{Namespace: models.Project, Name: n})
	}
	for _, n := range r.Tags {
		out = append(out, Ref{Namespace: models.Tag, Name: n})
	}
	return out
}

// Len returns the total number of references.
func (r Refs) Len() int {
	return len(r.People) + len(r.Projects) + len(r.Tags)
}

// Extract scans text left to right and returns every sigil reference.
// Matching is case-sensitive and non-overlapping; a sigil not followed by
// a name character yields nothing.
func Extract(text string) Refs {
	var r Refs
	for _, m := range sigilRe.FindAllStringSubmatch(text, -1) {
		switch m[1] {
		case "@":
			r.People = append(r.People, m[2])
		case "%":
			r.Projects = append(r.Projects, m[2])
		case "#":
			r.Tags = append(r.Tags, m[2])
		}
	}
	return r
}

// ValidName reports whether name can be written as a sigil reference.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}

// SplitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Missing or invalid frontmatter leaves the whole input as body.
func SplitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}
