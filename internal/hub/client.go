// Package hub talks to the remote model catalog (the HuggingFace hub or a
// compatible mirror).
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultEndpoint = "https://huggingface.co"
	userAgent       = "ggufdeck/1.0"
)

var (
	// ErrDownload is matched by every *DownloadError.
	ErrDownload = errors.New("download failed")
	// ErrInvalidModelID means the id is not of the form owner/name.
	ErrInvalidModelID = errors.New("invalid model id")
)

// DownloadError reports a failed catalog call or fetch subprocess.
// Output holds the subprocess output when there is one.
type DownloadError struct {
	ModelID string
	Op      string
	Output  string
	Err     error
}

func (e *DownloadError) Error() string {
	msg := e.Op
	if e.ModelID != "" {
		msg += " " + e.ModelID
	}
	msg += ": " + e.Err.Error()
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *DownloadError) Unwrap() error { return e.Err }

func (e *DownloadError) Is(target error) bool { return target == ErrDownload }

// Model is one catalog search result.
type Model struct {
	ID          string    `json:"id"`
	ModelID     string    `json:"modelId,omitempty"`
	Author      string    `json:"author,omitempty"`
	Downloads   int64     `json:"downloads"`
	Likes       int64     `json:"likes"`
	Pipeline    string    `json:"pipeline_tag,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	LastUpdated time.Time `json:"lastModified,omitempty"`
}

// Name returns the model id, falling back to the legacy modelId field.
func (m Model) Name() string {
	if m.ID != "" {
		return m.ID
	}
	return m.ModelID
}

// File is one file in a model repository.
type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type sibling struct {
	Filename string `json:"rfilename"`
	Size     int64  `json:"size"`
	LFS      *struct {
		Size int64 `json:"size"`
	} `json:"lfs,omitempty"`
}

type modelInfo struct {
	ID       string    `json:"id"`
	Siblings []sibling `json:"siblings"`
}

// Client is a catalog client.
type Client struct {
	endpoint   string
	token      string
	gitBinary  string
	httpClient *http.Client
	cmd        Commander
	log        *logrus.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint points the client at a hub mirror.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = strings.TrimSuffix(endpoint, "/") }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCommander replaces the subprocess runner used by Download.
func WithCommander(cmd Commander) Option {
	return func(c *Client) { c.cmd = cmd }
}

// WithGitBinary sets the git executable used by Download.
func WithGitBinary(git string) Option {
	return func(c *Client) { c.gitBinary = git }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a Client for DefaultEndpoint unless overridden.
func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		gitBinary:  "git",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cmd:        ExecCommander{},
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the catalog base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) getJSON(ctx context.Context, op, modelID, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &DownloadError{ModelID: modelID, Op: op, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DownloadError{ModelID: modelID, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &DownloadError{
			ModelID: modelID,
			Op:      op,
			Output:  string(body),
			Err:     fmt.Errorf("hub returned %d", resp.StatusCode),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &DownloadError{ModelID: modelID, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// SearchModels queries the catalog. Filtering is done by the server and the
// results are returned in server order.
func (c *Client) SearchModels(ctx context.Context, query string, limit int) ([]Model, error) {
	q := url.Values{}
	q.Set("search", query)
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var models []Model
	if err := c.getJSON(ctx, "search", "", c.endpoint+"/api/models?"+q.Encode(), &models); err != nil {
		return nil, err
	}
	return models, nil
}

// Search returns the ids of the models matching query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]string, error) {
	models, err := c.SearchModels(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.Name())
	}
	return ids, nil
}

// Files lists the GGUF files of a model repository.
func (c *Client) Files(ctx context.Context, modelID string) ([]File, error) {
	if err := ValidateModelID(modelID); err != nil {
		return nil, err
	}
	var info modelInfo
	if err := c.getJSON(ctx, "files", modelID, c.endpoint+"/api/models/"+modelID+"?blobs=true", &info); err != nil {
		return nil, err
	}

	files := []File{}
	for _, s := range info.Siblings {
		if !strings.HasSuffix(strings.ToLower(s.Filename), ".gguf") {
			continue
		}
		size := s.Size
		if s.LFS != nil && s.LFS.Size > 0 {
			size = s.LFS.Size
		}
		files = append(files, File{Name: s.Filename, Size: size})
	}
	return files, nil
}

// ValidateModelID checks that id has the form owner/name.
func ValidateModelID(id string) error {
	owner, name, ok := strings.Cut(id, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q, expected owner/name", ErrInvalidModelID, id)
	}
	for _, part := range []string{owner, name} {
		if part == "." || part == ".." || strings.ContainsAny(part, `\ `) {
			return fmt.Errorf("%w: %q", ErrInvalidModelID, id)
		}
	}
	return nil
}
