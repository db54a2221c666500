package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, p)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestWalker_Glob(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"a.json",
		"notes.txt",
		"exports/2024/b.json",
		"exports/2025/c.json",
		"exports/tmp/skip.json",
	)

	tests := []struct {
		name     string
		patterns []string
		excludes []string
		want     []string
	}{
		{
			name:     "single level",
			patterns: []string{"*.json"},
			want:     []string{"a.json"},
		},
		{
			name:     "recursive",
			patterns: []string{"**/*.json"},
			want:     []string{"a.json", "exports/2024/b.json", "exports/2025/c.json", "exports/tmp/skip.json"},
		},
		{
			name:     "recursive with exclude",
			patterns: []string{"exports/**/*.json"},
			excludes: []string{"tmp/**"},
			want:     []string{"exports/2024/b.json", "exports/2025/c.json"},
		},
		{
			name:     "overlapping patterns are deduplicated",
			patterns: []string{"a.json", "*.json"},
			want:     []string{"a.json"},
		},
		{
			name:     "no match",
			patterns: []string{"*.yaml"},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := NewWalker(tt.excludes).Glob(root, tt.patterns)
			if err != nil {
				t.Fatalf("glob failed: %v", err)
			}
			if len(files) != len(tt.want) {
				t.Fatalf("expected %d files, got %d: %+v", len(tt.want), len(files), files)
			}
			for i, w := range tt.want {
				if files[i].Path != filepath.Join(root, filepath.FromSlash(w)) {
					t.Errorf("position %d: expected %s, got %s", i, w, files[i].Path)
				}
			}
		})
	}
}

func TestWalker_AbsolutePattern(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "x.json")

	files, err := NewWalker(nil).Glob("/somewhere/else", []string{filepath.Join(root, "*.json")})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("expected 1 file, got %d", len(files))
	}
}

func TestReadFile_RejectsDirectory(t *testing.T) {
	if _, err := ReadFile(t.TempDir()); err == nil {
		t.Error("expected error reading a directory")
	}
}
