// Package chats persists prompt/response pairs as JSON files.
package chats

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means the named chat file does not exist.
	ErrNotFound = errors.New("chat not found")
	// ErrParse means the chat file is not a valid record.
	ErrParse = errors.New("malformed chat file")
)

const (
	filePrefix = "chat_"
	fileExt    = ".json"
	timeLayout = "20060102_150405"
)

// Record is one saved exchange.
type Record struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// Turn is one entry of a chat history as the chat views show it.
type Turn struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// Info describes a saved chat file.
type Info struct {
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
	Size    int64     `json:"size"`
}

// Store reads and writes chat files in a single directory. Records are
// never updated or deleted.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a Store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) newName() string {
	t := s.now()
	return fmt.Sprintf("%s%s_%06d_%s%s",
		filePrefix,
		t.Format(timeLayout),
		t.Nanosecond()/1000,
		uuid.New().String()[:8],
		fileExt)
}

// Save writes prompt and response to a new file and returns its name.
func (s *Store) Save(prompt, response string) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create outputs dir: %w", err)
	}

	data, err := json.Marshal(Record{Prompt: prompt, Response: response})
	if err != nil {
		return "", fmt.Errorf("marshal chat: %w", err)
	}

	name := s.newName()
	tmp, err := os.CreateTemp(s.dir, ".chat-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write chat: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("write chat: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename chat file: %w", err)
	}
	return name, nil
}

func (s *Store) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return filepath.Join(s.dir, name), nil
}

type rawRecord struct {
	Prompt   *string `json:"prompt"`
	Response *string `json:"response"`
}

func (s *Store) read(name string) (rawRecord, error) {
	path, err := s.path(name)
	if err != nil {
		return rawRecord{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rawRecord{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return rawRecord{}, fmt.Errorf("read chat: %w", err)
	}
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return rawRecord{}, fmt.Errorf("%w: %s: %v", ErrParse, name, err)
	}
	return raw, nil
}

// Load reads the named chat file. Names must not contain path separators.
// A file that is not an object carrying both fields is ErrParse.
func (s *Store) Load(name string) (Record, error) {
	raw, err := s.read(name)
	if err != nil {
		return Record{}, err
	}
	if raw.Prompt == nil || raw.Response == nil {
		return Record{}, fmt.Errorf("%w: %s: not a chat record", ErrParse, name)
	}
	return Record{Prompt: *raw.Prompt, Response: *raw.Response}, nil
}

// History returns the chat as a history of one turn. A file missing either
// field yields an empty history.
func (s *Store) History(name string) ([]Turn, error) {
	raw, err := s.read(name)
	if err != nil {
		return nil, err
	}
	if raw.Prompt == nil || raw.Response == nil {
		return []Turn{}, nil
	}
	return []Turn{{Prompt: *raw.Prompt, Response: *raw.Response}}, nil
}

// List returns the names of all chat files, oldest first. A missing
// directory yields an empty list.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read outputs dir: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Infos is List with file details.
func (s *Store) Infos() ([]Info, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		fi, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		created, ok := ParseCreated(name)
		if !ok {
			created = fi.ModTime()
		}
		infos = append(infos, Info{Name: name, Created: created, Size: fi.Size()})
	}
	return infos, nil
}

// ParseCreated extracts the creation time encoded in a chat file name.
// Both the current and the older second-resolution names are accepted.
func ParseCreated(name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, filePrefix)
	if !ok || len(rest) < len(timeLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(timeLayout, rest[:len(timeLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Match is a chat whose prompt or response contains a search term.
type Match struct {
	Name   string `json:"name"`
	Record Record `json:"record"`
}

// Grep returns chats containing query, case-insensitively, newest first.
// Unreadable files are skipped.
func (s *Store) Grep(query string, limit int) ([]Match, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	matches := []Match{}
	for i := len(names) - 1; i >= 0; i-- {
		rec, err := s.Load(names[i])
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(rec.Prompt), q) || strings.Contains(strings.ToLower(rec.Response), q) {
			matches = append(matches, Match{Name: names[i], Record: rec})
			if limit > 0 && len(matches) >= limit {
				break
			}
		}
	}
	return matches, nil
}
