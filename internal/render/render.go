// Package render formats journal data for the terminal.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/starford/dia/internal/journal"
	"github.com/starford/dia/internal/models"
	"github.com/starford/dia/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
)

// contentWidth is where long entry text is cut in tables.
const contentWidth = 60

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// Entries writes one row per entry, newest first as given.
func Entries(w io.Writer, entries []journal.EntryDetail) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("no entries"))
		return err
	}
	t := newTable("ID", "DATE", "ENTRY", "REFERENCES")
	for _, e := range entries {
		t.Row(strconv.FormatInt(e.ID, 10), e.Date, truncate(oneLine(e.Content), contentWidth), refs(e))
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// Entry writes a single entry in full.
func Entry(w io.Writer, e journal.EntryDetail) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", headerStyle.UnsetPadding().Render(fmt.Sprintf("#%d", e.ID)), dimStyle.Render(e.Date))
	b.WriteString(strings.TrimRight(e.Content, "\n") + "\n")
	if r := refs(e); r != "" {
		b.WriteString(nameStyle.Render(r) + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Hits writes ranked search results.
func Hits(w io.Writer, hits []journal.SearchHit) error {
	if len(hits) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("no matches"))
		return err
	}
	t := newTable("ID", "DATE", "SCORE", "ENTRY")
	for _, h := range hits {
		t.Row(strconv.FormatInt(h.Entry.ID, 10), h.Entry.Date,
			strconv.FormatFloat(h.Score, 'f', 2, 64), truncate(oneLine(h.Entry.Content), contentWidth))
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// Names writes the known names of one namespace, one per line with sigil.
func Names(w io.Writer, ns models.Namespace, names []string) error {
	if len(names) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("no %s names yet", ns)))
		return err
	}
	var b strings.Builder
	for _, n := range names {
		b.WriteString(nameStyle.Render(ns.Sigil()+n) + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Stats writes row counts per namespace.
func Stats(w io.Writer, c store.Counts) error {
	t := newTable("", "ENTITIES", "LINKS")
	for _, ns := range models.Namespaces {
		t.Row(string(ns), strconv.Itoa(c.Entities[ns]), strconv.Itoa(c.Links[ns]))
	}
	_, err := fmt.Fprintf(w, "%s entries, %s indexed\n%s\n",
		okStyle.Render(strconv.Itoa(c.Entries)), okStyle.Render(strconv.Itoa(c.Indexed)), t.String())
	return err
}

// Logged confirms a committed entry.
func Logged(w io.Writer, e journal.EntryDetail) error {
	line := fmt.Sprintf("logged entry %d for %s", e.ID, e.Date)
	if r := refs(e); r != "" {
		line += " " + dimStyle.Render("("+r+")")
	}
	_, err := fmt.Fprintln(w, okStyle.Render("✓")+" "+line)
	return err
}

func refs(e journal.EntryDetail) string {
	var parts []string
	for _, ns := range models.Namespaces {
		for _, n := range e.Names(ns) {
			parts = append(parts, ns.Sigil()+n)
		}
	}
	return strings.Join(parts, " ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
