package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Root is a tracked directory scan specification.
type Root struct {
	// Name identifies the root on the command line (e.g., "src").
	Name string `yaml:"name" toml:"name"`
	// Path is the absolute directory the scan starts from.
	Path string `yaml:"path" toml:"path"`
	// MinDepth is the shallowest depth kept (the root itself is depth 0).
	MinDepth uint `yaml:"mindepth" toml:"mindepth"`
	// MaxDepth is the deepest depth visited.
	MaxDepth uint `yaml:"maxdepth" toml:"maxdepth"`
	// Grep is a regular expression matched against the full path of each
	// candidate. Nil matches everything.
	Grep *string `yaml:"grep,omitempty" toml:"grep,omitempty"`
}

// Pattern returns the root's filter expression, defaulting to match-all.
func (r Root) Pattern() string {
	if r.Grep == nil || *r.Grep == "" {
		return ".*"
	}
	return *r.Grep
}

// String renders the root as a single human-readable line.
func (r Root) String() string {
	s := fmt.Sprintf("%s\t%s\t%d..%d", r.Name, r.Path, r.MinDepth, r.MaxDepth)
	if r.Grep != nil {
		s += "\t" + *r.Grep
	}
	return s
}

// Document is the persisted sessionizer state.
type Document struct {
	// Directories are the roots scanned by directory discovery.
	Directories []Root `yaml:"directories" toml:"directories"`
	// Sessions is the session history, oldest first. The last entry is the
	// most recently activated session.
	Sessions []string `yaml:"sessions" toml:"sessions"`
}

// Validate checks the invariants a loaded document must satisfy.
func (d *Document) Validate() error {
	seen := make(map[string]bool, len(d.Sessions))
	for _, s := range d.Sessions {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("empty session entry")
		}
		if seen[s] {
			return fmt.Errorf("duplicate session %q", s)
		}
		seen[s] = true
	}
	for _, r := range d.Directories {
		if r.Path == "" {
			return fmt.Errorf("directory %q has no path", r.Name)
		}
		if !filepath.IsAbs(r.Path) && !strings.HasPrefix(r.Path, "~") {
			return fmt.Errorf("directory %q: path %q is not absolute", r.Name, r.Path)
		}
		if r.MinDepth > r.MaxDepth {
			return fmt.Errorf("directory %q: mindepth %d exceeds maxdepth %d", r.Name, r.MinDepth, r.MaxDepth)
		}
	}
	return nil
}

// Direction selects which way the session history rotates.
type Direction int

const (
	// Next activates the oldest session and makes it the most recent.
	Next Direction = iota
	// Previous activates the session just behind the most recent one.
	Previous
)

func (d Direction) String() string {
	switch d {
	case Next:
		return "next"
	case Previous:
		return "previous"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}
