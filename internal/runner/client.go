package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

// Client is an HTTP client for communicating with a llama-server subprocess.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// BaseURL returns the llama-server address this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Complete sends a non-streaming completion request.
func (c *Client) Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	req.Stream = false
	var result api.CompletionResponse
	if err := c.postJSON(ctx, "/v1/completions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Tokenize returns the number of tokens llama-server produces for text.
func (c *Client) Tokenize(ctx context.Context, text string) (int, error) {
	var result api.TokenizeResponse
	if err := c.postJSON(ctx, "/tokenize", api.TokenizeRequest{Content: text}, &result); err != nil {
		return 0, err
	}
	return len(result.Tokens), nil
}

// Embed returns the unit-normalized embedding of text. The server must have
// been started with Options.Embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var result api.EmbeddingResponse
	req := api.EmbeddingRequest{Input: text, Model: "embedding"}
	if err := c.postJSON(ctx, "/v1/embeddings", req, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	vec := result.Data[0].Embedding
	normalizeVector(vec)
	return vec, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("llama-server returned %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// normalizeVector normalizes a vector to unit length in-place.
func normalizeVector(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] /= norm
	}
}
