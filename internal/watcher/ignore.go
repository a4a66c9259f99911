package watcher

import "path/filepath"

// DefaultIgnorePatterns covers the dependency/VCS/log noise every watched
// tree accumulates (spec.md §4.3 Ignore policy).
var DefaultIgnorePatterns = []string{
	"node_modules",
	".git",
	".hg",
	".svn",
	"*.log",
}

// matchesIgnore reports whether any path segment or the basename itself
// matches a configured pattern. Patterns without glob metacharacters are
// treated as plain directory/file name matches; others use
// filepath.Match against the basename.
func matchesIgnore(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pat := range patterns {
		if hasMeta(pat) {
			if ok, _ := filepath.Match(pat, base); ok {
				return true
			}
			continue
		}
		for _, seg := range splitPath(path) {
			if seg == pat {
				return true
			}
		}
	}
	return false
}

func hasMeta(pat string) bool {
	for _, r := range pat {
		switch r {
		case '*', '?', '[':
			return true
		}
	}
	return false
}

func splitPath(path string) []string {
	var segs []string
	for {
		dir, file := filepath.Split(path)
		if file != "" {
			segs = append(segs, file)
		}
		dir = filepath.Clean(dir)
		if dir == path || dir == "." || dir == string(filepath.Separator) {
			break
		}
		path = dir
	}
	return segs
}
