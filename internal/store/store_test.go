package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timvw/sessionizer/internal/model"
)

func strPtr(s string) *string { return &s }

func sampleDocument() *model.Document {
	return &model.Document{
		Directories: []model.Root{
			{Name: "src", Path: "/home/u/src", MinDepth: 1, MaxDepth: 2, Grep: strPtr("api")},
			{Name: "work", Path: "/work", MinDepth: 0, MaxDepth: 1},
		},
		Sessions: []string{"/home/u/src/a", "/work/b"},
	}
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFor("/x/config.yaml"))
	assert.Equal(t, FormatYAML, FormatFor("/x/config.yml"))
	assert.Equal(t, FormatYAML, FormatFor("/x/config"))
	assert.Equal(t, FormatTOML, FormatFor("/x/config.TOML"))
}

func TestLoad_MissingDocument(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotInitialized))
	assert.Contains(t, err.Error(), "config init")
}

func TestSaveLoad_PreservesOrderAndOptionalFields(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, err := Open(filepath.Join(t.TempDir(), "nested", name))
			require.NoError(t, err)

			want := sampleDocument()
			require.NoError(t, s.Save(ctx, want))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want.Sessions, got.Sessions)
			require.Len(t, got.Directories, 2)
			require.NotNil(t, got.Directories[0].Grep)
			assert.Equal(t, "api", *got.Directories[0].Grep)
			assert.Nil(t, got.Directories[1].Grep)
			assert.Equal(t, uint(2), got.Directories[0].MaxDepth)

			info, err := os.Stat(s.Path())
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(fileMode), info.Mode().Perm())
		})
	}
}

func TestLoad_HumanEditedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `directories:
  - name: src
    path: /home/u/src
    mindepth: 1
    maxdepth: 1
sessions:
  - /home/u/src/a
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/home/u/src/a"}, doc.Sessions)
	assert.Equal(t, "src", doc.Directories[0].Name)
}

func TestLoad_MalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sessions: [unterminated"), 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse document")
}

func TestLoad_InvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sessions:\n  - /a\n  - /a\n"), 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate session")
}

func TestInit_RefusesOverwriteWithoutForce(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	require.NoError(t, s.Init(ctx, false))
	require.NoError(t, s.Save(ctx, sampleDocument()))

	err = s.Init(ctx, false)
	assert.ErrorIs(t, err, ErrExists)

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, doc.Sessions, 2, "existing document must be untouched")

	require.NoError(t, s.Init(ctx, true))
	doc, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Sessions)
	assert.Empty(t, doc.Directories)
}

func TestUpdate_SavesOnlyWhenChanged(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx, false))

	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, func(doc *model.Document) (bool, error) {
		doc.Sessions = append(doc.Sessions, "/not-saved")
		return false, nil
	}))
	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	require.NoError(t, s.Update(ctx, func(doc *model.Document) (bool, error) {
		doc.Sessions = append(doc.Sessions, "/saved")
		return true, nil
	}))
	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/saved"}, doc.Sessions)
}

func TestUpdate_ErrorSkipsSave(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx, false))

	boom := errors.New("tmux exploded")
	err = s.Update(ctx, func(doc *model.Document) (bool, error) {
		doc.Sessions = append(doc.Sessions, "/half-done")
		return true, boom
	})
	assert.ErrorIs(t, err, boom)

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Sessions)
}

func TestUpdate_SerializesConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx, false))

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Each goroutine opens its own lock file handle, like separate
			// processes would.
			errs <- s.Update(ctx, func(doc *model.Document) (bool, error) {
				doc.Sessions = append(doc.Sessions, "/s"+strings.Repeat("x", i))
				return true, nil
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, doc.Sessions, writers)
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleDocument()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "stray temp file %s", e.Name())
	}
}

func TestSave_RejectsInvalidDocument(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	err = s.Save(context.Background(), &model.Document{Sessions: []string{"/a", "/a"}})
	require.Error(t, err)
	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr))
}
