package fs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Walker expands doublestar patterns (e.g. "exports/**/*.json") into the
// regular files they match.
type Walker struct {
	excludes []string
}

func NewWalker(excludes []string) *Walker {
	return &Walker{excludes: excludes}
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// Glob resolves relative patterns against root. Results are deduplicated and
// sorted by path so imports run in a stable order.
func (w *Walker) Glob(root string, patterns []string) ([]FileInfo, error) {
	seen := make(map[string]bool)
	var files []FileInfo

	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(root, pattern)
		}

		base, rel := doublestar.SplitPattern(filepath.ToSlash(pattern))
		matches, err := doublestar.Glob(os.DirFS(filepath.FromSlash(base)), rel)
		if err != nil {
			return nil, err
		}

		for _, m := range matches {
			if w.shouldExclude(m) {
				continue
			}
			path := filepath.Join(filepath.FromSlash(base), filepath.FromSlash(m))
			if seen[path] {
				continue
			}

			info, err := os.Stat(path)
			if err != nil {
				return nil, err
			}
			if !info.Mode().IsRegular() {
				continue
			}

			seen[path] = true
			files = append(files, FileInfo{
				Path:    path,
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// ReadFile reads a matched file, refusing anything that is not a regular file.
func ReadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrInvalid}
	}
	return os.ReadFile(path)
}
