package merge

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SourceSpec lists where merge sources come from.
// Resolution order is Paths, then Globs, then Lists, each in the order given.
type SourceSpec struct {
	Paths []string
	Globs []string
	Lists []string
}

// Empty reports whether no source was named at all.
func (s SourceSpec) Empty() bool {
	return len(s.Paths) == 0 && len(s.Globs) == 0 && len(s.Lists) == 0
}

// SkippedSource is a resolved path that will not be merged.
type SkippedSource struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Resolved is the outcome of source resolution.
type Resolved struct {
	Paths   []string
	Skipped []SkippedSource
}

// ResolveSources expands spec into an ordered, duplicate-free path list.
// Paths equal to any of exclude (compared as cleaned absolute paths) are
// moved to Skipped; the caller passes the target and output there when
// skip-self is on.
func ResolveSources(spec SourceSpec, exclude ...string) (Resolved, error) {
	var raw []string
	raw = append(raw, spec.Paths...)

	for _, pattern := range spec.Globs {
		matches, err := expandGlob(pattern)
		if err != nil {
			return Resolved{}, fmt.Errorf("glob %q: %w", pattern, err)
		}
		raw = append(raw, matches...)
	}

	for _, list := range spec.Lists {
		paths, err := readSourceList(list)
		if err != nil {
			return Resolved{}, err
		}
		raw = append(raw, paths...)
	}

	excluded := make(map[string]bool, len(exclude))
	for _, p := range exclude {
		if p == "" {
			continue
		}
		excluded[absPath(p)] = true
	}

	var out Resolved
	seen := make(map[string]bool, len(raw))
	for _, p := range raw {
		key := absPath(p)
		if seen[key] {
			out.Skipped = append(out.Skipped, SkippedSource{Path: p, Reason: "duplicate"})
			continue
		}
		seen[key] = true
		if excluded[key] {
			out.Skipped = append(out.Skipped, SkippedSource{Path: p, Reason: "self"})
			continue
		}
		out.Paths = append(out.Paths, p)
	}
	return out, nil
}

// expandGlob matches pattern with ** support. Matches are sorted so the
// merge order does not depend on directory iteration order.
func expandGlob(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// readSourceList reads one path per line. Blank lines and lines starting
// with '#' are ignored; relative paths resolve against the list's directory.
func readSourceList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source list: %w", err)
	}
	defer f.Close()

	base := filepath.Dir(path)
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("source list %s: %w", path, err)
	}
	return out, nil
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}
