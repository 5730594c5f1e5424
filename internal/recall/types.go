// Package recall keeps a semantic index over saved chats so past exchanges
// can be found by meaning as well as by keyword.
package recall

import (
	"context"
	"time"
)

// EmbedFunc turns text into a unit-length vector.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Entry is one indexed chat. ID is the chat file name.
type Entry struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// Content returns the text that is embedded and keyword-matched.
func (e *Entry) Content() string {
	return "User: " + e.Prompt + "\nAssistant: " + e.Response
}

// SearchResult is an entry with its hybrid search scores.
type SearchResult struct {
	Entry         Entry   `json:"entry"`
	SemanticScore float32 `json:"semantic_score"`
	KeywordScore  float32 `json:"keyword_score"`
	CombinedScore float32 `json:"combined_score"`
}
