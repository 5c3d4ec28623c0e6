package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// PythonCacheDirs are directories that never hold project sources.
var PythonCacheDirs = []string{"__pycache__", "node_modules", "venv", ".venv", "site-packages"}

// ScanOptions configures the directory scanning behavior
type ScanOptions struct {
	// Pattern is a regex matched against the filename without extension
	Pattern string
	// Extensions restricts matches to these extensions (case-insensitive, dot optional)
	Extensions []string
	// Names restricts matches to these exact base names
	Names []string
	// Recursive enables recursive directory scanning
	Recursive bool
	// ExcludeDirs is a list of directory names to skip
	ExcludeDirs []string
	// MaxDepth limits recursion depth (0 = unlimited, 1 = current dir only)
	MaxDepth int
	// Relative returns slash-separated paths relative to the scanned
	// directory instead of absolute paths
	Relative bool
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	// Files contains the matched paths, sorted
	Files []string
	// Errors contains non-fatal errors encountered during scanning
	Errors []error
}

type matcher struct {
	pattern *regexp.Regexp
	exts    map[string]bool
	names   map[string]bool
}

func newMatcher(opts ScanOptions) (*matcher, error) {
	m := &matcher{exts: make(map[string]bool), names: make(map[string]bool)}
	if opts.Pattern != "" {
		re, err := regexp.Compile(opts.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		m.pattern = re
	}
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m.exts[strings.ToLower(ext)] = true
	}
	for _, n := range opts.Names {
		m.names[n] = true
	}
	return m, nil
}

func (m *matcher) match(filename string) bool {
	ext := filepath.Ext(filename)
	if len(m.exts) > 0 && !m.exts[strings.ToLower(ext)] {
		return false
	}
	if len(m.names) > 0 && !m.names[filename] {
		return false
	}
	if m.pattern != nil && !m.pattern.MatchString(strings.TrimSuffix(filename, ext)) {
		return false
	}
	return true
}

// ScanDirectory scans dir for files matching opts.
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	m, err := newMatcher(opts)
	if err != nil {
		return nil, err
	}
	exclude := make(map[string]bool, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		exclude[d] = true
	}

	result := &ScanResult{Files: []string{}, Errors: []error{}}
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}
		if path == dir {
			return nil
		}

		if d.IsDir() {
			if exclude[d.Name()] || strings.HasPrefix(d.Name(), ".") || !opts.Recursive {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				rel, _ := filepath.Rel(dir, path)
				if strings.Count(rel, string(filepath.Separator))+1 >= opts.MaxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !m.match(d.Name()) {
			return nil
		}
		out, err := resolve(dir, path, opts.Relative)
		if err != nil {
			result.Errors = append(result.Errors, err)
			return nil
		}
		result.Files = append(result.Files, out)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Strings(result.Files)
	return result, nil
}

func resolve(dir, path string, relative bool) (string, error) {
	if relative {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return "", fmt.Errorf("failed to relativize %s: %w", path, err)
		}
		return filepath.ToSlash(rel), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	return abs, nil
}
