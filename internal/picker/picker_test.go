package picker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeFzf(t *testing.T, script string) *Fzf {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "fzf")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"+script), 0o755))
	return &Fzf{Bin: bin, Stderr: &bytes.Buffer{}}
}

func TestFzf_ReturnsTrimmedSelection(t *testing.T) {
	// Select the last candidate after consuming all of stdin.
	f := fakeFzf(t, "tail -n 1\n")
	got, err := f.Pick(context.Background(), Prompt{Header: "pick", Items: []string{"/a", "/b", "/c"}})
	require.NoError(t, err)
	assert.Equal(t, "/c", got)
}

func TestFzf_LargeInputDoesNotDeadlock(t *testing.T) {
	items := make([]string, 200000)
	for i := range items {
		items[i] = fmt.Sprintf("/home/user/projects/repository-%06d", i)
	}
	f := fakeFzf(t, "tail -n 1\n")
	got, err := f.Pick(context.Background(), Prompt{Items: items})
	require.NoError(t, err)
	assert.Equal(t, items[len(items)-1], got)
}

func TestFzf_EarlyExitIgnoresBrokenPipe(t *testing.T) {
	items := make([]string, 200000)
	for i := range items {
		items[i] = fmt.Sprintf("/srv/%d", i)
	}
	f := fakeFzf(t, "echo /srv/0\nexit 0\n")
	got, err := f.Pick(context.Background(), Prompt{Items: items})
	require.NoError(t, err)
	assert.Equal(t, "/srv/0", got)
}

func TestFzf_PassesHeaderAndBinds(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	f := fakeFzf(t, "cat > /dev/null\nprintf '%s\\n' \"$@\" > "+argsFile+"\necho picked\n")
	_, err := f.Pick(context.Background(), Prompt{
		Header: "Press CTRL-X to delete a session.",
		Items:  []string{"x"},
		Binds:  []string{"ctrl-x:abort"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{"--header", "Press CTRL-X to delete a session.", "--bind", "ctrl-x:abort"}, args)
}

func TestFzf_AbortExitCodes(t *testing.T) {
	for _, code := range []int{1, 130} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			f := fakeFzf(t, fmt.Sprintf("cat > /dev/null\nexit %d\n", code))
			_, err := f.Pick(context.Background(), Prompt{Items: []string{"/a"}})
			assert.ErrorIs(t, err, ErrAborted)
		})
	}
}

func TestFzf_OtherFailureIsError(t *testing.T) {
	f := fakeFzf(t, "cat > /dev/null\nexit 2\n")
	_, err := f.Pick(context.Background(), Prompt{Items: []string{"/a"}})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAborted))
	assert.Contains(t, err.Error(), "fzf error")
}

func TestFzf_EmptySelectionIsAbort(t *testing.T) {
	f := fakeFzf(t, "cat > /dev/null\necho '  '\n")
	_, err := f.Pick(context.Background(), Prompt{Items: []string{"/a"}})
	assert.ErrorIs(t, err, ErrAborted)
}

func TestFzf_SpawnFailure(t *testing.T) {
	f := &Fzf{Bin: filepath.Join(t.TempDir(), "nope")}
	_, err := f.Pick(context.Background(), Prompt{Items: []string{"/a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to spawn fzf")
}

func TestNew_Modes(t *testing.T) {
	assert.IsType(t, &Builtin{}, New("builtin", "fzf"))
	assert.IsType(t, &Fzf{}, New("fzf", "fzf"))
	assert.IsType(t, &Builtin{}, New("auto", filepath.Join(t.TempDir(), "no-fzf-here")))
}

// --- built-in picker model ---

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func typeText(m *pickerModel, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestPickerModel_EnterSelectsFirstItem(t *testing.T) {
	m := newPickerModel(Prompt{Items: []string{"/c", "/b", "/a"}})
	_, cmd := m.Update(key(tea.KeyEnter))
	assert.NotNil(t, cmd)
	assert.Equal(t, "/c", m.choice)
	assert.False(t, m.aborted)
}

func TestPickerModel_Navigation(t *testing.T) {
	m := newPickerModel(Prompt{Items: []string{"/a", "/b", "/c"}})
	m.Update(key(tea.KeyDown))
	m.Update(key(tea.KeyDown))
	m.Update(key(tea.KeyDown)) // clamped at the last item
	assert.Equal(t, 2, m.cursor)
	m.Update(key(tea.KeyUp))
	m.Update(key(tea.KeyEnter))
	assert.Equal(t, "/b", m.choice)
}

func TestPickerModel_FuzzyFilter(t *testing.T) {
	m := newPickerModel(Prompt{Items: []string{"/src/alpha", "/src/beta", "/src/gamma"}})
	typeText(m, "bta")
	require.Len(t, m.matches, 1)
	assert.Equal(t, "/src/beta", m.matches[0].Str)

	m.Update(key(tea.KeyEnter))
	assert.Equal(t, "/src/beta", m.choice)
}

func TestPickerModel_EnterWithNoMatchesDoesNothing(t *testing.T) {
	m := newPickerModel(Prompt{Items: []string{"/a"}})
	typeText(m, "zzz")
	_, cmd := m.Update(key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Empty(t, m.choice)
}

func TestPickerModel_EscAborts(t *testing.T) {
	m := newPickerModel(Prompt{Items: []string{"/a"}})
	_, cmd := m.Update(key(tea.KeyEsc))
	assert.NotNil(t, cmd)
	assert.True(t, m.aborted)
}

func TestPickerModel_ViewShowsHeaderAndCount(t *testing.T) {
	m := newPickerModel(Prompt{Header: "Select a directory", Items: []string{"/a", "/b"}})
	view := m.View()
	assert.Contains(t, view, "Select a directory")
	assert.Contains(t, view, "2/2")
	assert.Contains(t, view, "/b")
}

func TestPickerModel_WindowSizeBoundsList(t *testing.T) {
	items := make([]string, 50)
	for i := range items {
		items[i] = fmt.Sprintf("/p/%02d", i)
	}
	m := newPickerModel(Prompt{Items: items})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 8})
	assert.Equal(t, 5, m.height)

	for i := 0; i < 10; i++ {
		m.Update(key(tea.KeyDown))
	}
	view := m.View()
	assert.Contains(t, view, "/p/10")
	assert.NotContains(t, view, "/p/04")
}
