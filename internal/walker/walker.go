package walker

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileInfo holds metadata about a discovered source file.
type FileInfo struct {
	Path    string
	RelPath string
	Size    int64
	ModTime time.Time
}

// DefaultMaxFileSize is the largest file considered when Options leaves it unset.
const DefaultMaxFileSize = 1 << 20

// IgnoreFile is the per-repository ignore list, created on first walk.
const IgnoreFile = ".nexusignore"

// defaultIgnores are used when no ignore file exists.
var defaultIgnores = []string{
	".git",
	".svn",
	".hg",
	".nexus",
	"node_modules",
	"vendor",
	"target",
	"__pycache__",
	".idea",
	".vscode",
	"dist",
	"build",
	"*.lock",
}

// Options control which files Walk emits.
type Options struct {
	// Extensions (without dot) to emit. Nil emits nothing.
	Extensions map[string]bool
	// Excludes are extra patterns applied on top of the ignore file.
	Excludes []string
	// MaxFileSize skips larger files. Zero means DefaultMaxFileSize.
	MaxFileSize int64
}

// Walk traverses the directory tree rooted at root and sends discovered
// source files on the returned channel. Directories and files matching the
// ignore patterns are skipped. Empty files are emitted.
func Walk(root string, opts Options) (<-chan FileInfo, <-chan error) {
	files := make(chan FileInfo, 64)
	errs := make(chan error, 1)

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	go func() {
		defer close(files)
		defer close(errs)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			errs <- err
			return
		}

		ignores := append(loadIgnorePatterns(absRoot), opts.Excludes...)

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip errors, keep walking
			}

			rel, _ := filepath.Rel(absRoot, path)
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if path == absRoot {
					return nil
				}
				if matchesIgnore(d.Name(), rel, ignores) {
					return filepath.SkipDir
				}
				return nil
			}

			// Skip symlinks.
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}

			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			if !opts.Extensions[ext] || d.Name() == IgnoreFile {
				return nil
			}
			if matchesIgnore(d.Name(), rel, ignores) {
				return nil
			}

			info, err := d.Info()
			if err != nil || info.Size() > maxSize {
				return nil
			}

			files <- FileInfo{
				Path:    path,
				RelPath: rel,
				Size:    info.Size(),
				ModTime: info.ModTime(),
			}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}

// loadIgnorePatterns reads the ignore file from the project root.
// If the file doesn't exist, it creates one with the default patterns.
func loadIgnorePatterns(root string) []string {
	ignorePath := filepath.Join(root, IgnoreFile)

	f, err := os.Open(ignorePath)
	if err != nil {
		createDefaultIgnoreFile(ignorePath)
		return defaultIgnores
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if len(patterns) == 0 {
		return defaultIgnores
	}
	return patterns
}

func createDefaultIgnoreFile(path string) {
	var b strings.Builder
	b.WriteString("# Paths to exclude from indexing.\n")
	b.WriteString("# One pattern per line. Supports exact names and globs.\n\n")
	for _, p := range defaultIgnores {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	// Best-effort write; if it fails the defaults are still used in memory.
	os.WriteFile(path, []byte(b.String()), 0o644)
}

// matchesIgnore checks if a name or relative path matches any ignore pattern.
func matchesIgnore(name, relPath string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.TrimSuffix(p, "/")
		if name == p {
			return true
		}
		// Path prefix match (e.g. "third_party/vendor").
		if strings.Contains(p, "/") && (relPath == p || strings.HasPrefix(relPath, p+"/")) {
			return true
		}
		if matched, _ := filepath.Match(p, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(p, name); matched {
			return true
		}
	}
	return false
}
