// Package session owns the single loaded model of a ggufdeck process.
//
// A Session replaces process-wide model state: the server or CLI command
// creates one and passes it to every operation that needs the model.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/ThatCatDev/ggufdeck/internal/accel"
	"github.com/ThatCatDev/ggufdeck/internal/runner"
	"github.com/ThatCatDev/ggufdeck/internal/visual"
	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

var (
	// ErrNotFound means the model path does not exist.
	ErrNotFound = errors.New("model not found")
	// ErrNotLoaded means the operation needs a loaded model.
	ErrNotLoaded = errors.New("no model loaded")
	// ErrAlreadyLoaded means Load was called while a model is live.
	// Unload must be called first.
	ErrAlreadyLoaded = errors.New("a model is already loaded")
	// ErrBusy means another generation is in flight on this session.
	ErrBusy = errors.New("generation already in progress")
	// ErrLoading means another Load is still starting its runner.
	ErrLoading = errors.New("a model is still loading")
)

// DefaultMaxTokens is used when GenerateOptions.MaxTokens is zero.
const DefaultMaxTokens = 256

// LoadConfig describes the model to load.
type LoadConfig struct {
	Path          string
	ContextLength int
	GPULayers     int
	Threads       int
}

// GenerateOptions bound a single completion.
type GenerateOptions struct {
	MaxTokens int
	Stop      []string
}

// Handle describes the loaded model.
type Handle struct {
	Path          string       `json:"path"`
	Name          string       `json:"name"`
	ContextLength int          `json:"context_length"`
	GPULayers     int          `json:"gpu_layers"`
	Threads       int          `json:"threads"`
	Device        accel.Device `json:"device"`
	LoadedAt      time.Time    `json:"loaded_at"`
}

// Options configure a Session.
type Options struct {
	// Factory creates the runner for each Load. Defaults to llama-server
	// subprocesses.
	Factory runner.Factory
	// Detect reports the accelerator available for offloading.
	Detect        func(ctx context.Context) accel.Device
	BinDir        string
	HealthTimeout time.Duration
	Logger        *logrus.Logger
}

// Session holds at most one loaded model.
//
// Unload takes the lock exclusively and Generate takes it shared, so Unload
// waits for an in-flight generation to return. A second concurrent Generate
// fails fast with ErrBusy. Load only holds the lock to reserve and to commit;
// the runner starts unlocked so readers stay responsive meanwhile.
type Session struct {
	mu      sync.RWMutex
	gen     *semaphore.Weighted
	handle  *Handle
	run     runner.Runner
	layout  *visual.Layout
	loading bool

	opts Options
	log  *logrus.Logger
}

// New creates an empty Session.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Factory == nil {
		opts.Factory = runner.ProcessFactory(opts.Logger)
	}
	if opts.Detect == nil {
		opts.Detect = func(ctx context.Context) accel.Device {
			return accel.Detect(ctx, "auto")
		}
	}
	return &Session{
		gen:  semaphore.NewWeighted(1),
		opts: opts,
		log:  opts.Logger,
	}
}

// Load starts the model at cfg.Path. GPU layers are dropped to zero when no
// accelerator is present. While the runner starts, Loaded reports false and
// a concurrent Load fails with ErrLoading.
func (s *Session) Load(ctx context.Context, cfg LoadConfig) (Handle, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Handle{}, fmt.Errorf("%w: %s", ErrNotFound, cfg.Path)
		}
		return Handle{}, fmt.Errorf("stat model: %w", err)
	}

	if err := s.reserve(); err != nil {
		return Handle{}, err
	}
	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			s.loading = false
			s.mu.Unlock()
		}
	}()

	dev := s.opts.Detect(ctx)
	layers := accel.ClampGPULayers(dev, cfg.GPULayers)
	if layers != cfg.GPULayers {
		s.log.WithField("requested", cfg.GPULayers).Info("no accelerator detected, running all layers on CPU")
	}

	r := s.opts.Factory()
	err := r.Load(ctx, cfg.Path, runner.Options{
		CtxSize:       cfg.ContextLength,
		GPULayers:     layers,
		Threads:       cfg.Threads,
		BinDir:        s.opts.BinDir,
		HealthTimeout: s.opts.HealthTimeout,
	})
	if err != nil {
		r.Close()
		return Handle{}, fmt.Errorf("load %s: %w", filepath.Base(cfg.Path), err)
	}

	layout, err := visual.Inspect(cfg.Path)
	if err != nil {
		s.log.WithError(err).Warn("could not read model layout, visualizations will use placeholders")
	}

	h := &Handle{
		Path:          cfg.Path,
		Name:          filepath.Base(cfg.Path),
		ContextLength: cfg.ContextLength,
		GPULayers:     layers,
		Threads:       cfg.Threads,
		Device:        dev,
		LoadedAt:      time.Now(),
	}

	s.mu.Lock()
	s.run = r
	s.handle = h
	s.layout = layout
	s.loading = false
	committed = true
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"model":  h.Name,
		"device": dev.String(),
		"ctx":    cfg.ContextLength,
	}).Info("session ready")
	return *h, nil
}

// reserve claims the session for one Load.
func (s *Session) reserve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.run != nil:
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, s.handle.Name)
	case s.loading:
		return ErrLoading
	}
	s.loading = true
	return nil
}

// Unload stops the loaded model. It returns ErrNotLoaded when there is
// nothing to unload; callers may treat that as informational.
func (s *Session) Unload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return ErrNotLoaded
	}

	name := s.handle.Name
	err := s.run.Close()
	s.run = nil
	s.handle = nil
	s.layout = nil
	if err != nil {
		return fmt.Errorf("unload %s: %w", name, err)
	}
	s.log.WithField("model", name).Info("model unloaded")
	return nil
}

// Generate runs one completion and returns the first choice's text,
// trimmed. It blocks until the runner answers or ctx is done.
func (s *Session) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if !s.gen.TryAcquire(1) {
		return "", ErrBusy
	}
	defer s.gen.Release(1)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.run == nil {
		return "", ErrNotLoaded
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	resp, err := s.run.Complete(ctx, &api.CompletionRequest{
		Prompt:    prompt,
		MaxTokens: maxTokens,
		Stop:      opts.Stop,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("generate: runner returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Text), nil
}

// Handle returns a copy of the loaded model's handle.
func (s *Session) Handle() (Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.handle == nil {
		return Handle{}, false
	}
	return *s.handle, true
}

// Loading reports whether a Load is starting its runner.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Loaded reports whether a model is loaded.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run != nil
}
