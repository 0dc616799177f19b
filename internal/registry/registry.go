// Package registry maintains the session history and keeps it in step with
// the live multiplexer sessions.
package registry

import (
	"slices"

	"github.com/timvw/sessionizer/internal/model"
)

// Registry is an ordered, duplicate-free view over a document's session
// history. The last entry is the most recently activated session.
type Registry struct {
	doc *model.Document
}

// New returns a registry backed by doc. Changes are written straight into
// doc.Sessions.
func New(doc *model.Document) *Registry {
	return &Registry{doc: doc}
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.doc.Sessions)
}

// Entries returns a copy of the entries, oldest first.
func (r *Registry) Entries() []string {
	return slices.Clone(r.doc.Sessions)
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id string) bool {
	return slices.Contains(r.doc.Sessions, id)
}

// Current returns the most recent entry.
func (r *Registry) Current() (string, bool) {
	if len(r.doc.Sessions) == 0 {
		return "", false
	}
	return r.doc.Sessions[len(r.doc.Sessions)-1], true
}

// Recent returns the entries most recent first.
func (r *Registry) Recent() []string {
	out := slices.Clone(r.doc.Sessions)
	slices.Reverse(out)
	return out
}

// Push makes id the most recent entry, moving it if already present. It
// reports whether the order changed.
func (r *Registry) Push(id string) bool {
	if cur, ok := r.Current(); ok && cur == id {
		return false
	}
	r.Remove(id)
	r.doc.Sessions = append(r.doc.Sessions, id)
	return true
}

// Remove deletes id and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	i := slices.Index(r.doc.Sessions, id)
	if i < 0 {
		return false
	}
	r.doc.Sessions = slices.Delete(r.doc.Sessions, i, i+1)
	return true
}

// demote moves the most recent entry to the front.
func (r *Registry) demote() {
	n := len(r.doc.Sessions)
	if n < 2 {
		return
	}
	last := r.doc.Sessions[n-1]
	copy(r.doc.Sessions[1:], r.doc.Sessions[:n-1])
	r.doc.Sessions[0] = last
}

// replace sets the entries to ids, dropping duplicates.
func (r *Registry) replace(ids []string) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	r.doc.Sessions = out
}
