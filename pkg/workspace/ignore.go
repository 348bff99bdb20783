// Package workspace packs a working directory into the zip archive submitted
// with a new job.
package workspace

import (
	"errors"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIgnores are always excluded from a workspace archive.
var DefaultIgnores = []string{".git", ".pspace"}

// ErrInvalidPattern is returned when an ignore pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Ignore decides which workspace paths are left out of the archive.
//
// Paths are slash-separated and relative to the workspace root. A pattern
// without a slash matches any single path segment, so "data" excludes every
// directory named data and "*.ckpt" excludes checkpoints at any depth. A
// pattern with a slash is matched against the whole relative path with
// doublestar semantics. Excluding a directory excludes everything below it.
type Ignore struct {
	patterns []string
}

// NewIgnore compiles patterns plus DefaultIgnores.
func NewIgnore(patterns []string) (*Ignore, error) {
	ig := &Ignore{}
	for _, p := range append(append([]string(nil), DefaultIgnores...), patterns...) {
		p = normalizePattern(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p, Err: ErrInvalidPattern}
		}
		ig.patterns = append(ig.patterns, p)
	}
	return ig, nil
}

// Patterns returns the compiled patterns, defaults first.
func (ig *Ignore) Patterns() []string {
	return append([]string(nil), ig.patterns...)
}

// Match reports whether rel should be excluded.
func (ig *Ignore) Match(rel string) bool {
	rel = strings.Trim(path.Clean(strings.ReplaceAll(rel, "\\", "/")), "/")
	if rel == "" || rel == "." {
		return false
	}
	segments := strings.Split(rel, "/")

	for _, p := range ig.patterns {
		if strings.Contains(p, "/") {
			if matchPattern(p, rel) {
				return true
			}
			// A directory pattern also covers its descendants.
			for i := 1; i < len(segments); i++ {
				if matchPattern(p, strings.Join(segments[:i], "/")) {
					return true
				}
			}
			continue
		}
		for _, seg := range segments {
			if matchPattern(p, seg) {
				return true
			}
		}
	}
	return false
}

// normalizePattern converts Windows separators and strips leading "./" and
// trailing slashes.
func normalizePattern(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "./")
	return strings.TrimRight(p, "/")
}

func matchPattern(pattern, name string) bool {
	matched, err := doublestar.Match(pattern, name)
	if err != nil {
		return false
	}
	return matched
}
