// Package discovery produces session candidates by scanning the tracked
// directory roots.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/timvw/sessionizer/internal/model"
	telem "github.com/timvw/sessionizer/internal/otel"
)

var tracer = otel.Tracer("sessionizer/discovery")

// Default depth bounds for a newly tracked root.
const (
	DefaultMinDepth uint = 1
	DefaultMaxDepth uint = 1
)

// ErrInvalidPattern is wrapped by every PatternError.
var ErrInvalidPattern = errors.New("invalid pattern")

// PatternError reports a root whose grep expression does not compile.
type PatternError struct {
	Root    string
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("directory %s: invalid pattern %q: %v", e.Root, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() []error {
	return []error{ErrInvalidPattern, e.Err}
}

func compile(r model.Root) (*regexp.Regexp, error) {
	re, err := regexp.Compile(r.Pattern())
	if err != nil {
		return nil, &PatternError{Root: r.Path, Pattern: r.Pattern(), Err: err}
	}
	return re, nil
}

// Evaluate walks every root and returns the sorted, de-duplicated absolute
// paths of directories within the root's depth bounds whose full path
// matches the root's pattern. The root itself is depth 0.
//
// Entries that cannot be read are logged and skipped. An invalid pattern
// fails the whole evaluation before anything is walked.
func Evaluate(ctx context.Context, roots []model.Root, metrics *telem.Metrics) ([]string, error) {
	ctx, span := tracer.Start(ctx, "discovery.evaluate")
	defer span.End()
	span.SetAttributes(attribute.Int("discovery.roots", len(roots)))

	patterns := make([]*regexp.Regexp, len(roots))
	for i, r := range roots {
		re, err := compile(r)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		patterns[i] = re
	}

	seen := make(map[string]bool)
	var walkErrors int
	for i, r := range roots {
		base, err := absPath(r.Path)
		if err != nil {
			slog.Debug("skipping root", "path", r.Path, "err", err)
			walkErrors++
			continue
		}
		// A trailing separator makes WalkDir follow a symlinked root. Links
		// below the root are not followed.
		err = filepath.WalkDir(withSeparator(base), func(path string, d fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path = filepath.Clean(path)
			if walkErr != nil {
				slog.Debug("skipping unreadable entry", "path", path, "err", walkErr)
				walkErrors++
				if d != nil && d.IsDir() && path != base {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				return nil
			}

			depth := depthOf(base, path)
			if depth >= r.MinDepth && patterns[i].MatchString(path) {
				seen[path] = true
			}
			if depth >= r.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		})
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	result := make([]string, 0, len(seen))
	for p := range seen {
		result = append(result, p)
	}
	sort.Strings(result)

	span.SetAttributes(
		attribute.Int("discovery.candidates", len(result)),
		attribute.Int("discovery.walk_errors", walkErrors),
	)
	metrics.RecordDiscovery(ctx, len(result), walkErrors)
	return result, nil
}

func withSeparator(dir string) string {
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return dir
	}
	return dir + string(filepath.Separator)
}

// depthOf returns the number of path elements between base and path.
func depthOf(base, path string) uint {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == "." {
		return 0
	}
	return uint(strings.Count(rel, string(filepath.Separator)) + 1)
}

// RootOptions carries the fields given explicitly when adding a root. Nil
// fields keep the existing root's value, or the default for a new root.
type RootOptions struct {
	Name     *string
	MinDepth *uint
	MaxDepth *uint
	Grep     *string
}

// AddRoot inserts or replaces the root for path. The returned slice has any
// previous root for the same path removed and the new root appended.
func AddRoot(roots []model.Root, path string, opts RootOptions) ([]model.Root, model.Root, error) {
	abs, err := absPath(path)
	if err != nil {
		return nil, model.Root{}, err
	}

	root := model.Root{
		Name:     filepath.Base(abs),
		Path:     abs,
		MinDepth: DefaultMinDepth,
		MaxDepth: DefaultMaxDepth,
	}
	for _, existing := range roots {
		if samePath(existing.Path, abs) {
			root = existing
			root.Path = abs
		}
	}
	if opts.Name != nil {
		root.Name = *opts.Name
	}
	if opts.MinDepth != nil {
		root.MinDepth = *opts.MinDepth
	}
	if opts.MaxDepth != nil {
		root.MaxDepth = *opts.MaxDepth
	}
	if opts.Grep != nil {
		g := *opts.Grep
		root.Grep = &g
	}

	if root.Name == "" {
		return nil, model.Root{}, fmt.Errorf("directory %s: name is empty", abs)
	}
	if root.MinDepth > root.MaxDepth {
		return nil, model.Root{}, fmt.Errorf("directory %s: mindepth %d exceeds maxdepth %d", abs, root.MinDepth, root.MaxDepth)
	}
	if _, err := compile(root); err != nil {
		return nil, model.Root{}, err
	}

	out := make([]model.Root, 0, len(roots)+1)
	for _, existing := range roots {
		if !samePath(existing.Path, abs) {
			out = append(out, existing)
		}
	}
	return append(out, root), root, nil
}

// RemoveRoot drops every root whose name or path equals key. It reports
// whether anything was removed.
func RemoveRoot(roots []model.Root, key string) ([]model.Root, bool) {
	keyPath, err := absPath(key)
	if err != nil {
		keyPath = ""
	}
	out := make([]model.Root, 0, len(roots))
	for _, r := range roots {
		if r.Name == key || (keyPath != "" && samePath(r.Path, keyPath)) {
			continue
		}
		out = append(out, r)
	}
	return out, len(out) != len(roots)
}

func samePath(a, b string) bool {
	pa, err := absPath(a)
	if err != nil {
		return false
	}
	return pa == filepath.Clean(b)
}

// absPath expands a leading "~" and returns the cleaned absolute path.
func absPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is empty")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", path, err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
