package recall

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/ggufdeck/internal/chats"
)

const collectionName = "chats"

// Index is a chromem-go collection of chats with hybrid search.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	entries    map[string]Entry
	mu         sync.RWMutex
	persistDir string // empty for in-memory
	log        *logrus.Logger
}

// Open opens or creates a persistent index in dir.
func Open(dir string, embed EmbedFunc, logger *logrus.Logger) (*Index, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("create persistent DB: %w", err)
	}
	idx, err := newIndex(db, embed, logger)
	if err != nil {
		return nil, err
	}
	idx.persistDir = dir

	if err := idx.loadEntries(); err != nil && !os.IsNotExist(err) {
		idx.log.WithError(err).Warn("recall entry index unreadable, starting empty")
	}
	return idx, nil
}

// OpenInMemory creates an index that is not persisted.
func OpenInMemory(embed EmbedFunc, logger *logrus.Logger) (*Index, error) {
	return newIndex(chromem.NewDB(), embed, logger)
}

func newIndex(db *chromem.DB, embed EmbedFunc, logger *logrus.Logger) (*Index, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	col, err := db.GetOrCreateCollection(collectionName, nil, chromem.EmbeddingFunc(embed))
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}
	return &Index{
		db:         db,
		collection: col,
		entries:    make(map[string]Entry),
		log:        logger,
	}, nil
}

// Add embeds and stores one chat. Adding an ID twice is a no-op.
func (x *Index) Add(ctx context.Context, e Entry) error {
	if x.Has(e.ID) {
		return nil
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	doc := chromem.Document{
		ID:      e.ID,
		Content: e.Content(),
		Metadata: map[string]string{
			"prompt":    e.Prompt,
			"response":  e.Response,
			"timestamp": e.Timestamp.Format(time.RFC3339),
		},
	}
	if err := x.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	x.mu.Lock()
	x.entries[e.ID] = e
	x.mu.Unlock()

	x.saveEntries()
	return nil
}

// Has reports whether the chat id is indexed.
func (x *Index) Has(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.entries[id]
	return ok
}

// Count returns the number of indexed chats.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Search ranks chats by 70% semantic similarity and 30% keyword overlap.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	count := x.collection.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}
	if limit > count {
		limit = count
	}

	results, err := x.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	queryWords := extractWords(query)
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		kw := keywordScore(queryWords, r.Content)
		out = append(out, SearchResult{
			Entry:         x.entryFromResult(r),
			SemanticScore: r.Similarity,
			KeywordScore:  kw,
			CombinedScore: 0.7*r.Similarity + 0.3*kw,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CombinedScore > out[j].CombinedScore
	})
	return out, nil
}

// Sync indexes every chat in store that is not indexed yet and returns how
// many were added. Unreadable chat files are logged and skipped.
func (x *Index) Sync(ctx context.Context, store *chats.Store) (int, error) {
	names, err := store.List()
	if err != nil {
		return 0, err
	}
	added := 0
	for _, name := range names {
		if x.Has(name) {
			continue
		}
		rec, err := store.Load(name)
		if err != nil {
			x.log.WithError(err).WithField("chat", name).Warn("skipping chat")
			continue
		}
		ts, ok := chats.ParseCreated(name)
		if !ok {
			ts = time.Now()
		}
		if err := x.Add(ctx, Entry{ID: name, Prompt: rec.Prompt, Response: rec.Response, Timestamp: ts}); err != nil {
			return added, err
		}
		added++
	}
	if added > 0 {
		x.log.WithField("added", added).Info("recall index synced")
	}
	return added, nil
}

// Close releases the index. The chromem DB needs no explicit close.
func (x *Index) Close() error {
	return nil
}

func (x *Index) entryFromResult(r chromem.Result) Entry {
	x.mu.RLock()
	e, ok := x.entries[r.ID]
	x.mu.RUnlock()
	if ok {
		return e
	}

	ts, _ := time.Parse(time.RFC3339, r.Metadata["timestamp"])
	return Entry{
		ID:        r.ID,
		Prompt:    r.Metadata["prompt"],
		Response:  r.Metadata["response"],
		Timestamp: ts,
	}
}

func (x *Index) entriesPath() string {
	if x.persistDir == "" {
		return ""
	}
	return filepath.Join(x.persistDir, "entries.json")
}

func (x *Index) saveEntries() {
	path := x.entriesPath()
	if path == "" {
		return
	}
	x.mu.RLock()
	data, err := json.Marshal(x.entries)
	x.mu.RUnlock()
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		x.log.WithError(err).Warn("could not persist recall entries")
	}
}

func (x *Index) loadEntries() error {
	path := x.entriesPath()
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return json.Unmarshal(data, &x.entries)
}

// extractWords returns lowercased words of at least three bytes.
func extractWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, w := range fields {
		if len(w) >= 3 {
			words = append(words, w)
		}
	}
	return words
}

// keywordScore is the fraction of query words found in content.
func keywordScore(queryWords []string, content string) float32 {
	if len(queryWords) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	matches := 0
	for _, w := range queryWords {
		if strings.Contains(lower, w) {
			matches++
		}
	}
	return float32(matches) / float32(len(queryWords))
}
