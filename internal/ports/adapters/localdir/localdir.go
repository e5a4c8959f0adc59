package localdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Library lists video files directly inside one directory.
type Library struct {
	dir  string
	exts map[string]struct{}
}

func New(dir string, extensions []string) *Library {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			exts[e] = struct{}{}
		}
	}
	return &Library{dir: dir, exts: exts}
}

// List returns matching files sorted by name. Subdirectories are not walked.
func (l *Library) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read videos dir: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !l.matches(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(l.dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func (l *Library) matches(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}
	_, ok := l.exts[ext]
	return ok
}
