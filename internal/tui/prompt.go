// Package tui is the interactive entry prompt. It completes @person,
// %project and #tag names through a journal.Completer and knows nothing
// else about storage.
package tui

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/dia/internal/journal"
)

// ErrCancelled is returned by Prompt when the user quits without submitting.
var ErrCancelled = errors.New("tui: prompt cancelled")

// Model is the bubbletea model for a single-line entry prompt.
type Model struct {
	ctx        context.Context
	completer  journal.Completer
	input      textinput.Model
	candidates []journal.Candidate
	start      int // byte offset of the word the candidates replace
	selected   int
	err        error
	submitted  bool
	cancelled  bool
}

// New returns a focused prompt pre-filled with initial.
func New(ctx context.Context, c journal.Completer, initial string) Model {
	in := textinput.New()
	in.Placeholder = "Met @Alice about %Launch #urgent"
	in.Prompt = promptStyle.Render("› ")
	in.CharLimit = 0
	in.Width = 72
	in.SetValue(initial)
	in.CursorEnd()
	in.Focus()

	m := Model{ctx: ctx, completer: c, input: in}
	m.refresh()
	return m
}

// Value returns the current line.
func (m Model) Value() string {
	return m.input.Value()
}

// Candidates returns the completions offered for the word under the cursor.
func (m Model) Candidates() []journal.Candidate {
	return m.candidates
}

// Submitted reports whether the user pressed enter.
func (m Model) Submitted() bool {
	return m.submitted
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.cancelled = true
		return m, tea.Quit
	case tea.KeyEnter:
		m.submitted = true
		return m, tea.Quit
	case tea.KeyTab:
		m.accept()
		return m, nil
	case tea.KeyUp:
		if n := len(m.candidates); n > 0 {
			m.selected = (m.selected + n - 1) % n
		}
		return m, nil
	case tea.KeyDown:
		if n := len(m.candidates); n > 0 {
			m.selected = (m.selected + 1) % n
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refresh()
	return m, cmd
}

// cursor returns the input cursor as a byte offset into the line.
func (m Model) cursor() int {
	value := m.input.Value()
	runes := m.input.Position()
	off := 0
	for i := 0; i < runes && off < len(value); i++ {
		_, size := utf8.DecodeRuneInString(value[off:])
		off += size
	}
	return off
}

func (m *Model) refresh() {
	m.selected = 0
	m.start, m.candidates, m.err = m.completer.Complete(m.ctx, m.input.Value(), m.cursor())
}

// accept replaces the word under the cursor with the selected candidate and
// a trailing space.
func (m *Model) accept() {
	if len(m.candidates) == 0 {
		return
	}
	line, pos := m.input.Value(), m.cursor()
	repl := m.candidates[m.selected].Replacement + " "
	rest := strings.TrimLeft(line[pos:], " ")
	m.input.SetValue(line[:m.start] + repl + rest)
	m.input.SetCursor(utf8.RuneCountInString(line[:m.start] + repl))
	m.refresh()
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.input.View() + "\n")
	for i, c := range m.candidates {
		if i == m.selected {
			b.WriteString(selectedStyle.Render("  > "+c.Replacement) + "\n")
		} else {
			b.WriteString(dimStyle.Render("    "+c.Replacement) + "\n")
		}
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("  "+m.err.Error()) + "\n")
	}
	b.WriteString(dimStyle.Render("tab complete  ↑/↓ choose  enter save  esc quit"))
	return b.String()
}

// Prompt runs the prompt on the terminal and returns the submitted line.
func Prompt(ctx context.Context, c journal.Completer, initial string) (string, error) {
	final, err := tea.NewProgram(New(ctx, c, initial), tea.WithContext(ctx)).Run()
	if err != nil {
		return "", err
	}
	m := final.(Model)
	if !m.submitted {
		return "", ErrCancelled
	}
	return m.Value(), nil
}
