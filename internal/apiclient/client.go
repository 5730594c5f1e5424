// Package apiclient is a typed HTTP client for a running ggufdeck server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ThatCatDev/ggufdeck/internal/visual"
	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

// Error is a non-2xx answer from the server.
type Error struct {
	Status  int
	Type    string
	Message string
}

func (e *Error) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to the ggufdeck HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the given server URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// --- Models ---

func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListModels(ctx context.Context) ([]api.LocalModel, error) {
	var out api.ModelListResponse
	if err := c.getJSON(ctx, "/api/models", &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

func (c *Client) CurrentModel(ctx context.Context) (*api.CurrentModelResponse, error) {
	var out api.CurrentModelResponse
	if err := c.getJSON(ctx, "/api/models/current", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LoadModel(ctx context.Context, req api.LoadRequest) (*api.CurrentModelResponse, error) {
	var out api.CurrentModelResponse
	if err := c.postJSON(ctx, "/api/models/load", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UnloadModel(ctx context.Context) (*api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.postJSON(ctx, "/api/models/unload", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Generation and chats ---

func (c *Client) Generate(ctx context.Context, req api.GenerateRequest) (*api.GenerateResponse, error) {
	var out api.GenerateResponse
	if err := c.postJSON(ctx, "/api/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListChats(ctx context.Context) ([]api.ChatInfo, error) {
	var out api.ChatListResponse
	if err := c.getJSON(ctx, "/api/chats", &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

func (c *Client) GetChat(ctx context.Context, name string) (*api.ChatResponse, error) {
	var out api.ChatResponse
	if err := c.getJSON(ctx, "/api/chats/"+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchChats(ctx context.Context, query string, limit int) (*api.ChatSearchResponse, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var out api.ChatSearchResponse
	if err := c.getJSON(ctx, "/api/chats/search?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Hub ---

func (c *Client) HubSearch(ctx context.Context, query string) ([]api.HubModel, error) {
	var out api.HubSearchResponse
	if err := c.getJSON(ctx, "/api/hub/search?"+url.Values{"q": {query}}.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

func (c *Client) HubDownload(ctx context.Context, modelID string) (*api.HubDownloadResponse, error) {
	var out api.HubDownloadResponse
	if err := c.postJSON(ctx, "/api/hub/download", api.HubDownloadRequest{Model: modelID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Visualization and experiments ---

func (c *Client) Visualization(ctx context.Context) (*visual.Payload, error) {
	var out visual.Payload
	if err := c.getJSON(ctx, "/api/visualization", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Graph(ctx context.Context) (*visual.Graph, error) {
	var out visual.Graph
	if err := c.getJSON(ctx, "/api/visualization/graph", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Experiment(ctx context.Context, kind, prompt string) (*api.ExperimentResponse, error) {
	var out api.ExperimentResponse
	if err := c.postJSON(ctx, "/api/experiments/"+url.PathEscape(kind), api.ExperimentRequest{Prompt: prompt}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- helpers ---

func (c *Client) postJSON(ctx context.Context, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq, result)
}

func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(httpReq, result)
}

func (c *Client) do(httpReq *http.Request, result any) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		apiErr := &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		var envelope api.ErrorResponse
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error.Message != "" {
			apiErr.Type = envelope.Error.Type
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
