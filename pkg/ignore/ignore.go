// Package ignore filters sweep candidates with gitignore-style patterns
// read from an ignore file at the sweep root.
package ignore

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultFileName is the ignore file looked up at each sweep root.
const DefaultFileName = ".crxprepignore"

// Matcher answers whether a root-relative path is excluded.
type Matcher struct {
	matcher gitignore.Matcher
	count   int
}

// NewMatcher builds a matcher for root with layered patterns:
// 1. extra patterns supplied by the caller (configuration)
// 2. <root>/<fileName>
// 3. ~/.crxprep/<fileName> (user overrides)
//
// An empty fileName disables both file layers. Missing files are not errors.
func NewMatcher(root, fileName string, extra ...string) (*Matcher, error) {
	var patterns []gitignore.Pattern
	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, gitignore.ParsePattern(p, nil))
		}
	}

	if fileName != "" {
		rootPatterns, err := readIgnoreFile(osfs.New(root), fileName)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, rootPatterns...)

		if homeDir, err := os.UserHomeDir(); err == nil {
			userPatterns, err := readIgnoreFile(osfs.New(filepath.Join(homeDir, ".crxprep")), fileName)
			if err == nil {
				patterns = append(patterns, userPatterns...)
			}
		}
	}

	return &Matcher{matcher: gitignore.NewMatcher(patterns), count: len(patterns)}, nil
}

// readIgnoreFile parses one ignore file from fs. A missing file yields no patterns.
func readIgnoreFile(fs billy.Filesystem, name string) ([]gitignore.Pattern, error) {
	f, err := fs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, scanner.Err()
}

// Len reports how many patterns the matcher holds.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return m.count
}

// IsIgnored checks a slash-separated path relative to the sweep root.
func (m *Matcher) IsIgnored(relPath string) bool {
	return m.match(relPath, false)
}

// IsIgnoredDir is IsIgnored for directories, so traversal can prune them.
func (m *Matcher) IsIgnoredDir(relPath string) bool {
	return m.match(relPath, true)
}

func (m *Matcher) match(relPath string, isDir bool) bool {
	if m == nil || m.count == 0 {
		return false
	}
	parts := splitPath(filepath.ToSlash(relPath))
	if len(parts) == 0 {
		return false
	}
	return m.matcher.Match(parts, isDir)
}

// splitPath converts a slash-separated path into components for go-git matching
func splitPath(path string) []string {
	if path == "" || path == "." {
		return []string{}
	}

	path = strings.TrimPrefix(path, "/")
	parts := strings.Split(path, "/")

	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}

	return result
}
