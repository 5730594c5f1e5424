// Package runnertest provides an in-memory Runner for tests.
package runnertest

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/ThatCatDev/ggufdeck/internal/runner"
	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

// Fake answers completions without a subprocess. The zero value echoes
// nothing; set Reply or Fn to control the answer.
type Fake struct {
	mu sync.Mutex

	// Reply is returned as the completion text when Fn is nil.
	Reply string
	// Fn computes the completion. It may block.
	Fn func(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error)
	// LoadErr is returned by Load.
	LoadErr error
	// LoadGate, when set, holds Load until it is closed or ctx is done.
	LoadGate chan struct{}

	loaded   bool
	closed   bool
	path     string
	opts     runner.Options
	requests []api.CompletionRequest
}

// Factory returns a runner.Factory that always hands out f.
func (f *Fake) Factory() runner.Factory {
	return func() runner.Runner { return f }
}

func (f *Fake) Load(ctx context.Context, modelPath string, opts runner.Options) error {
	f.mu.Lock()
	gate := f.LoadGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoadErr != nil {
		return f.LoadErr
	}
	f.loaded = true
	f.closed = false
	f.path = modelPath
	f.opts = opts
	return nil
}

func (f *Fake) Health(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return runner.ErrNotStarted
	}
	return nil
}

func (f *Fake) Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, *req)
	fn := f.Fn
	reply := f.Reply
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &api.CompletionResponse{
		Object:  "text_completion",
		Choices: []api.CompletionChoice{{Text: reply, FinishReason: "stop"}},
	}, nil
}

func (f *Fake) ModelName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filepath.Base(f.path)
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = false
	f.closed = true
	return nil
}

// Closed reports whether Close was called after the last Load.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Options returns the options passed to the last Load.
func (f *Fake) Options() runner.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts
}

// Requests returns every completion request received.
func (f *Fake) Requests() []api.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.CompletionRequest(nil), f.requests...)
}
