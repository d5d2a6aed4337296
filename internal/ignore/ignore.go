// Package ignore selects the files a bulk ingest uploads. Exclusions come
// from gitignore-style files in the ingest root plus built-in defaults.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultFiles are the ignore files read from the ingest root.
var DefaultFiles = []string{".gitignore", ".vectordignore"}

// DefaultExcludes always apply, before any ignore file rule.
var DefaultExcludes = []string{".git/", "node_modules/", "vendor/", "__pycache__/", ".DS_Store"}

// rule is one compiled ignore line.
type rule struct {
	glob   string
	negate bool
}

// Matcher decides whether a root-relative path is excluded. The last rule
// that matches wins, so a later "!keep.md" re-includes a file.
type Matcher struct {
	rules []rule
}

// NewMatcher compiles gitignore-style lines. Blank lines and comments are skipped.
func NewMatcher(lines ...string) *Matcher {
	m := &Matcher{}
	for _, line := range lines {
		if r, ok := parseLine(line); ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

// Load builds a Matcher from DefaultExcludes and the given ignore files
// under root. Missing files are skipped.
func Load(root string, files ...string) (*Matcher, error) {
	if len(files) == 0 {
		files = DefaultFiles
	}
	lines := append([]string(nil), DefaultExcludes...)
	for _, name := range files {
		fileLines, err := readLines(filepath.Join(root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		lines = append(lines, fileLines...)
	}
	return NewMatcher(lines...), nil
}

// Excluded reports whether rel, a slash-separated path relative to the
// root, is ignored.
func (m *Matcher) Excluded(rel string) bool {
	rel = strings.TrimPrefix(path.Clean(filepath.ToSlash(rel)), "./")
	excluded := false
	for _, r := range m.rules {
		if matches(r.glob, rel) {
			excluded = !r.negate
		}
	}
	return excluded
}

// Patterns returns the compiled globs in rule order. Negated rules keep
// their leading "!".
func (m *Matcher) Patterns() []string {
	out := make([]string, 0, len(m.rules))
	for _, r := range m.rules {
		if r.negate {
			out = append(out, "!"+r.glob)
			continue
		}
		out = append(out, r.glob)
	}
	return out
}

// Select returns the regular files under root matching the doublestar
// pattern that m does not exclude, as sorted root-relative paths.
func Select(root, pattern string, m *Matcher) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	fsys := os.DirFS(root)
	var files []string
	err := doublestar.GlobWalk(fsys, pattern, func(p string, d fs.DirEntry) error {
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if m != nil && m.Excluded(p) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("matching %s: %w", pattern, err)
	}
	sort.Strings(files)
	return files, nil
}

// matches reports whether glob matches rel or one of its parent directories.
func matches(glob, rel string) bool {
	if ok, _ := doublestar.Match(glob, rel); ok {
		return true
	}
	ok, _ := doublestar.Match(glob+"/**", rel)
	return ok
}

func readLines(p string) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// parseLine compiles one gitignore line into a doublestar glob.
func parseLine(line string) (rule, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	var r rule
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	line = strings.TrimPrefix(line, `\`)

	dirOnly := strings.HasSuffix(line, "/")
	line = strings.TrimSuffix(line, "/")
	// A slash anywhere but the end anchors the pattern to the root.
	anchored := strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return rule{}, false
	}

	if !anchored && !strings.HasPrefix(line, "**/") {
		line = "**/" + line
	}
	if dirOnly {
		line += "/**"
	}
	r.glob = line
	return r, true
}
