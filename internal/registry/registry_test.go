package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/timvw/sessionizer/internal/model"
)

func TestRegistry_PushMovesToEnd(t *testing.T) {
	doc := &model.Document{Sessions: []string{"/a", "/b", "/c"}}
	reg := New(doc)

	assert.True(t, reg.Push("/a"))
	assert.Equal(t, []string{"/b", "/c", "/a"}, doc.Sessions)

	assert.False(t, reg.Push("/a"), "already most recent")
	assert.Equal(t, []string{"/b", "/c", "/a"}, doc.Sessions)

	assert.True(t, reg.Push("/d"))
	assert.Equal(t, []string{"/b", "/c", "/a", "/d"}, doc.Sessions)
}

func TestRegistry_Remove(t *testing.T) {
	doc := &model.Document{Sessions: []string{"/a", "/b"}}
	reg := New(doc)

	assert.False(t, reg.Remove("/x"))
	assert.True(t, reg.Remove("/a"))
	assert.Equal(t, []string{"/b"}, doc.Sessions)
	assert.False(t, reg.Contains("/a"))
}

func TestRegistry_CurrentAndRecent(t *testing.T) {
	reg := New(&model.Document{})
	_, ok := reg.Current()
	assert.False(t, ok)
	assert.Empty(t, reg.Recent())

	reg = New(&model.Document{Sessions: []string{"/a", "/b", "/c"}})
	cur, ok := reg.Current()
	assert.True(t, ok)
	assert.Equal(t, "/c", cur)
	assert.Equal(t, []string{"/c", "/b", "/a"}, reg.Recent())
	assert.Equal(t, []string{"/a", "/b", "/c"}, reg.Entries(), "Recent must not reorder the registry")
}

func TestRegistry_Demote(t *testing.T) {
	doc := &model.Document{Sessions: []string{"/a", "/b", "/c"}}
	New(doc).demote()
	assert.Equal(t, []string{"/c", "/a", "/b"}, doc.Sessions)
}

func TestRegistry_ReplaceDropsDuplicates(t *testing.T) {
	doc := &model.Document{Sessions: []string{"/old"}}
	New(doc).replace([]string{"/x", "/y", "/x"})
	assert.Equal(t, []string{"/x", "/y"}, doc.Sessions)
}
