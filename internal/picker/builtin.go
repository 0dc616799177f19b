package picker

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
)

// Styles
var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	matchStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	countStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// defaultListHeight is used until the terminal reports its size.
const defaultListHeight = 15

// Builtin is a fuzzy-finding picker rendered in the terminal, used when
// fzf is not installed. It ignores Prompt.Binds.
type Builtin struct{}

// Pick runs the picker on the controlling terminal and returns the
// selected line.
func (b *Builtin) Pick(ctx context.Context, p Prompt) (string, error) {
	m := newPickerModel(p)
	prog := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInputTTY(),
		tea.WithOutput(os.Stderr),
	)
	final, err := prog.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("picker: %w", err)
	}
	pm, ok := final.(*pickerModel)
	if !ok || pm.aborted || pm.choice == "" {
		return "", ErrAborted
	}
	return strings.TrimSpace(pm.choice), nil
}

// pickerModel implements tea.Model
type pickerModel struct {
	header  string
	items   []string
	matches []fuzzy.Match
	input   textinput.Model
	cursor  int
	height  int

	choice  string
	aborted bool
}

func newPickerModel(p Prompt) *pickerModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "type to filter"
	ti.Focus()

	m := &pickerModel{
		header: p.Header,
		items:  p.Items,
		input:  ti,
		height: defaultListHeight,
	}
	m.filter()
	return m
}

func (m *pickerModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// header, prompt and counter take three lines
		m.height = max(1, msg.Height-3)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		case tea.KeyEnter:
			if len(m.matches) == 0 {
				return m, nil
			}
			m.choice = m.matches[m.cursor].Str
			return m, tea.Quit
		case tea.KeyUp, tea.KeyCtrlP:
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case tea.KeyDown, tea.KeyCtrlN:
			if m.cursor < len(m.matches)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.filter()
	}
	return m, cmd
}

// filter recomputes the matches for the current query. An empty query
// keeps every item in its original order.
func (m *pickerModel) filter() {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		m.matches = make([]fuzzy.Match, len(m.items))
		for i, item := range m.items {
			m.matches[i] = fuzzy.Match{Str: item, Index: i}
		}
	} else {
		m.matches = fuzzy.Find(query, m.items)
	}
	m.cursor = 0
}

func (m *pickerModel) View() string {
	var b strings.Builder
	if m.header != "" {
		b.WriteString(headerStyle.Render(m.header))
		b.WriteString("\n")
	}

	start := 0
	if m.cursor >= m.height {
		start = m.cursor - m.height + 1
	}
	end := min(len(m.matches), start+m.height)
	for i := start; i < end; i++ {
		line := highlight(m.matches[i])
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + m.matches[i].Str))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString(countStyle.Render(fmt.Sprintf("  %d/%d", len(m.matches), len(m.items))))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

// highlight renders the fuzzy-matched characters of a match.
func highlight(match fuzzy.Match) string {
	if len(match.MatchedIndexes) == 0 {
		return match.Str
	}
	matched := make(map[int]bool, len(match.MatchedIndexes))
	for _, idx := range match.MatchedIndexes {
		matched[idx] = true
	}
	var b strings.Builder
	for i, r := range match.Str {
		if matched[i] {
			b.WriteString(matchStyle.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
