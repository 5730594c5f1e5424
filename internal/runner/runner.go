package runner

import (
	"context"

	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

// Runner is the interface for model inference backends.
// ProcessRunner manages llama-server as a subprocess; tests substitute fakes.
type Runner interface {
	// Load starts the runner with the given model.
	Load(ctx context.Context, modelPath string, opts Options) error

	// Health returns nil if the runner is ready to serve requests.
	Health(ctx context.Context) error

	// Complete performs a blocking, non-streaming text completion.
	Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error)

	// ModelName returns the name of the loaded model.
	ModelName() string

	// Close shuts down the runner and releases resources.
	Close() error
}

// Factory builds a fresh, unloaded Runner.
type Factory func() Runner
