// Package api holds the JSON types of the ggufdeck HTTP API and of the
// llama-server endpoints it calls.
package api

import "time"

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// StatusResponse acknowledges an action that returns nothing else.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Loaded  bool   `json:"loaded"`
	Loading bool   `json:"loading,omitempty"`
}

// --- Models ---

// LocalModel is one entry of the models directory.
type LocalModel struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Size       int64  `json:"size"`
	ModifiedAt int64  `json:"modified_at"`
}

// ModelListResponse is returned by GET /api/models.
type ModelListResponse struct {
	Models []LocalModel `json:"models"`
}

// LoadRequest is the body of POST /api/models/load. Zero values take the
// configured defaults; GPULayers is a pointer because 0 is meaningful.
type LoadRequest struct {
	Model         string `json:"model"`
	ContextLength int    `json:"context_length,omitempty"`
	GPULayers     *int   `json:"gpu_layers,omitempty"`
	Threads       int    `json:"threads,omitempty"`
}

// ModelHandle describes the loaded model.
type ModelHandle struct {
	Path          string    `json:"path"`
	Name          string    `json:"name"`
	ContextLength int       `json:"context_length"`
	GPULayers     int       `json:"gpu_layers"`
	Threads       int       `json:"threads"`
	Device        string    `json:"device"`
	LoadedAt      time.Time `json:"loaded_at"`
}

// CurrentModelResponse is returned by GET /api/models/current and by a
// successful load.
type CurrentModelResponse struct {
	Loaded bool         `json:"loaded"`
	Model  *ModelHandle `json:"model,omitempty"`
}

// --- Generation ---

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Prompt    string   `json:"prompt"`
	MaxTokens int      `json:"max_tokens,omitempty"`
	Stop      []string `json:"stop,omitempty"`
	// NoSave skips writing the exchange to the outputs directory.
	NoSave bool `json:"no_save,omitempty"`
}

// GenerateResponse carries the completion and, when saved, the chat file.
type GenerateResponse struct {
	Response string `json:"response"`
	Chat     string `json:"chat,omitempty"`
}

// --- Chats ---

// ChatInfo is one saved chat file.
type ChatInfo struct {
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
	Size    int64     `json:"size"`
}

// ChatListResponse is returned by GET /api/chats.
type ChatListResponse struct {
	Chats []ChatInfo `json:"chats"`
}

// ChatTurn is one prompt/response pair.
type ChatTurn struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// ChatResponse is returned by GET /api/chats/:name.
type ChatResponse struct {
	Name     string     `json:"name"`
	Prompt   string     `json:"prompt"`
	Response string     `json:"response"`
	History  []ChatTurn `json:"history"`
}

// ChatHit is one chat search result. Score is 0 for keyword matches.
type ChatHit struct {
	Name     string  `json:"name"`
	Prompt   string  `json:"prompt"`
	Response string  `json:"response"`
	Score    float32 `json:"score,omitempty"`
}

// ChatSearchResponse is returned by GET /api/chats/search. Mode is
// "semantic" when the recall index answered, "keyword" otherwise.
type ChatSearchResponse struct {
	Mode    string    `json:"mode"`
	Results []ChatHit `json:"results"`
}

// --- Hub ---

// HubModel is one catalog search result.
type HubModel struct {
	ID        string `json:"id"`
	Downloads int64  `json:"downloads"`
	Likes     int64  `json:"likes"`
}

// HubSearchResponse is returned by GET /api/hub/search.
type HubSearchResponse struct {
	Models []HubModel `json:"models"`
}

// HubFile is one GGUF file of a repository.
type HubFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// HubFilesResponse is returned by GET /api/hub/files.
type HubFilesResponse struct {
	Model string    `json:"model"`
	Files []HubFile `json:"files"`
}

// HubDownloadRequest is the body of POST /api/hub/download and
// POST /api/hub/pull. File is required by pull only.
type HubDownloadRequest struct {
	Model string `json:"model"`
	File  string `json:"file,omitempty"`
}

// HubDownloadResponse reports where the download landed.
type HubDownloadResponse struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

// --- Visualization and experiments ---

// TextVisualizationRequest is the body of POST /api/visualization/text.
type TextVisualizationRequest struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// ExperimentRequest is the body of POST /api/experiments/:kind.
type ExperimentRequest struct {
	Prompt string `json:"prompt"`
}

// ExperimentResponse is the shaped model answer.
type ExperimentResponse struct {
	Kind     string `json:"kind"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}
