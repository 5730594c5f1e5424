package recall

import (
	"context"
	"hash/fnv"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ThatCatDev/ggufdeck/internal/chats"
	"github.com/ThatCatDev/ggufdeck/internal/logutil"
)

// mockEmbedFunc derives a deterministic 64-dimensional unit vector from an
// FNV hash of the text.
func mockEmbedFunc(ctx context.Context, text string) ([]float32, error) {
	const dims = 64
	vec := make([]float32, dims)
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	for i := range vec {
		bits := seed ^ (uint64(i) * 0x9E3779B97F4A7C15)
		vec[i] = float32(bits%1000) / 1000.0
	}

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

func newMemIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := OpenInMemory(mockEmbedFunc, logutil.Discard())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestEntryContent(t *testing.T) {
	e := Entry{Prompt: "hello", Response: "world"}
	if got, want := e.Content(), "User: hello\nAssistant: world"; got != want {
		t.Errorf("Content() = %q, want %q", got, want)
	}
}

func TestAddAndSearch(t *testing.T) {
	idx := newMemIndex(t)
	ctx := context.Background()

	entries := []Entry{
		{ID: "a", Prompt: "how do I compile Go code", Response: "use go build ./..."},
		{ID: "b", Prompt: "what is the capital of France", Response: "Paris is the capital of France"},
		{ID: "c", Prompt: "explain goroutines in Go", Response: "goroutines are lightweight threads"},
	}
	for _, e := range entries {
		if err := idx.Add(ctx, e); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if got := idx.Count(); got != 3 {
		t.Fatalf("Count() = %d, want 3", got)
	}

	results, err := idx.Search(ctx, "Go programming", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 || len(results) > 3 {
		t.Fatalf("Search returned %d results, want 1..3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].CombinedScore > results[i-1].CombinedScore {
			t.Errorf("results not sorted by combined score at %d", i)
		}
	}
}

func TestAddDuplicateID(t *testing.T) {
	idx := newMemIndex(t)
	ctx := context.Background()

	e := Entry{ID: "chat_1.json", Prompt: "p", Response: "r"}
	if err := idx.Add(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, e); err != nil {
		t.Fatalf("second Add: %v", err)
	}
	if idx.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", idx.Count())
	}
}

func TestKeywordScoring(t *testing.T) {
	idx := newMemIndex(t)
	ctx := context.Background()

	idx.Add(ctx, Entry{ID: "k", Prompt: "kubernetes deployment yaml", Response: "use kubectl apply"})
	idx.Add(ctx, Entry{ID: "h", Prompt: "hello world program", Response: "print hello world"})

	results, err := idx.Search(ctx, "kubernetes deployment", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Entry.ID == "k" && r.KeywordScore != 1.0 {
			t.Errorf("keyword score for matching entry = %f, want 1.0", r.KeywordScore)
		}
		if r.Entry.ID == "h" && r.KeywordScore != 0 {
			t.Errorf("keyword score for unrelated entry = %f, want 0", r.KeywordScore)
		}
	}
}

func TestKeywordScore(t *testing.T) {
	words := []string{"kubernetes", "deployment"}
	if s := keywordScore(words, "kubernetes deployment yaml file"); s != 1.0 {
		t.Errorf("keywordScore = %f, want 1.0", s)
	}
	if s := keywordScore(words, "kubernetes cluster setup"); s != 0.5 {
		t.Errorf("keywordScore = %f, want 0.5", s)
	}
	if s := keywordScore(nil, "anything"); s != 0 {
		t.Errorf("keywordScore with nil words = %f, want 0", s)
	}
}

func TestExtractWords(t *testing.T) {
	words := extractWords("Go is a great language for backend")
	found := map[string]bool{}
	for _, w := range words {
		if len(w) < 3 {
			t.Errorf("extractWords returned short word %q", w)
		}
		found[w] = true
	}
	if !found["great"] || !found["language"] || !found["backend"] {
		t.Errorf("extractWords missing expected words, got %v", words)
	}
}

func TestSearchEmpty(t *testing.T) {
	results, err := newMemIndex(t).Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Search on empty index failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Search on empty index returned %d results", len(results))
	}
}

func TestSyncFromChats(t *testing.T) {
	store := chats.NewStore(t.TempDir())
	if _, err := store.Save("first prompt", "first answer"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save("second prompt", "second answer"); err != nil {
		t.Fatal(err)
	}

	idx := newMemIndex(t)
	ctx := context.Background()

	added, err := idx.Sync(ctx, store)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if added != 2 {
		t.Fatalf("Sync added %d, want 2", added)
	}

	added, err = idx.Sync(ctx, store)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if added != 0 {
		t.Fatalf("second Sync added %d, want 0", added)
	}
}

func TestPersistentIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recall")
	ctx := context.Background()

	idx, err := Open(dir, mockEmbedFunc, logutil.Discard())
	if err != nil {
		t.Fatal(err)
	}
	e := Entry{ID: "chat_x.json", Prompt: "persistent test", Response: "survives restart", Timestamp: time.Now()}
	if err := idx.Add(ctx, e); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	idx.Close()

	idx2, err := Open(dir, mockEmbedFunc, logutil.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer idx2.Close()

	if idx2.Count() != 1 {
		t.Fatalf("Count() after reopen = %d, want 1", idx2.Count())
	}
	if !idx2.Has("chat_x.json") {
		t.Error("reopened index lost entry")
	}

	results, err := idx2.Search(ctx, "persistent", 1)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(results) != 1 || results[0].Entry.Prompt != "persistent test" {
		t.Errorf("unexpected results after reopen: %+v", results)
	}
}
