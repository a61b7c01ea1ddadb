// Package models defines the domain types for dia.
package models

import "time"

// DateLayout is the calendar-date format used for entry dates.
const DateLayout = "2006-01-02"

// Entry is one journal entry.
type Entry struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// Namespace is one of the three independent entity categories.
type Namespace string

const (
	Person  Namespace = "person"
	Project Namespace = "project"
	Tag     Namespace = "tag"
)

// Namespaces lists every namespace in extraction order.
var Namespaces = []Namespace{Person, Project, Tag}

// Sigil returns the marker that prefixes names of this namespace in entry text.
func (n Namespace) Sigil() string {
	switch n {
	case Person:
		return "@"
	case Project:
		return "%"
	case Tag:
		return "#"
	}
	return ""
}

// Valid reports whether n is a known namespace.
func (n Namespace) Valid() bool {
	return n.Sigil() != ""
}

// NamespaceForSigil maps a sigil character back to its namespace.
func NamespaceForSigil(s byte) (Namespace, bool) {
	switch s {
	case '@':
		return Person, true
	case '%':
		return Project, true
	case '#':
		return Tag, true
	}
	return "", false
}

// ParseNamespace accepts singular or plural names ("person", "people", "tags").
func ParseNamespace(s string) (Namespace, bool) {
	switch s {
	case "person", "people":
		return Person, true
	case "project", "projects":
		return Project, true
	case "tag", "tags":
		return Tag, true
	}
	return "", false
}

// Entity is a named person, project, or tag.
type Entity struct {
	ID        int64     `json:"id"`
	Namespace Namespace `json:"namespace"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityRef identifies an entity by namespace and id. Ids are only unique
// within a namespace, so a bare id is never enough.
type EntityRef struct {
	Namespace Namespace `json:"namespace"`
	ID        int64     `json:"id"`
}
