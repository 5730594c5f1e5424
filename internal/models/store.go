// Package models lists and resolves model files in the local models
// directory.
package models

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound means no local model matches a name.
var ErrNotFound = errors.New("model not found")

// Kind tells files and repository directories apart.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// Entry is one selectable model. Name is the slash-separated path relative
// to the models directory.
type Entry struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Kind       Kind   `json:"kind"`
	Size       int64  `json:"size"`
	ModifiedAt int64  `json:"modified_at"`
}

// Store manages locally available model files.
type Store struct {
	dir string
}

// NewStore creates a new Store for the given directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the models directory.
func (s *Store) Dir() string {
	return s.dir
}

func isModelFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".gguf") || strings.HasSuffix(lower, ".bin")
}

// List walks the models directory and returns every .gguf and .bin file
// plus every directory, sorted by name. A missing directory yields an
// empty list. Hidden entries (such as .git) are skipped.
func (s *Store) List() ([]Entry, error) {
	entries := []Entry{}

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return nil
		}
		if path == s.dir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}

		switch {
		case d.IsDir():
			entries = append(entries, Entry{
				Name:       filepath.ToSlash(rel),
				Path:       path,
				Kind:       KindDir,
				ModifiedAt: info.ModTime().Unix(),
			})
		case isModelFile(d.Name()):
			entries = append(entries, Entry{
				Name:       filepath.ToSlash(rel),
				Path:       path,
				Kind:       KindFile,
				Size:       info.Size(),
				ModifiedAt: info.ModTime().Unix(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan models dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Resolve maps a name to a loadable file path. It accepts an absolute
// path, a name as returned by List (with or without the .gguf extension),
// or a unique-enough substring of a file name. A directory resolves to the
// first .gguf file inside it.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrNotFound)
	}

	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err == nil {
			return s.fileFor(name)
		}
	}

	candidate := filepath.Join(s.dir, filepath.FromSlash(name))
	if !strings.HasPrefix(filepath.Clean(candidate), filepath.Clean(s.dir)) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if _, err := os.Stat(candidate); err == nil {
		return s.fileFor(candidate)
	}
	if _, err := os.Stat(candidate + ".gguf"); err == nil {
		return candidate + ".gguf", nil
	}

	entries, err := s.List()
	if err != nil {
		return "", err
	}
	lower := strings.ToLower(name)
	for _, e := range entries {
		if e.Kind != KindFile {
			continue
		}
		base := strings.TrimSuffix(filepath.Base(e.Path), filepath.Ext(e.Path))
		if strings.EqualFold(base, name) || strings.Contains(strings.ToLower(base), lower) {
			return e.Path, nil
		}
	}

	return "", fmt.Errorf("%w: %q in %s", ErrNotFound, name, s.dir)
}

func (s *Store) fileFor(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return path, nil
	}

	var found string
	filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || found != "" {
			return nil
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") && p != path {
			return fs.SkipDir
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".gguf") {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if found == "" {
		return "", fmt.Errorf("%w: no .gguf file in %s", ErrNotFound, path)
	}
	return found, nil
}
