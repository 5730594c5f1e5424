package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

// ErrNotStarted is returned by calls made before Load succeeded or after Close.
var ErrNotStarted = errors.New("llama-server not started")

// ProcessRunner serves a model through a llama-server child. A crash is
// logged and Health fails until the runner is closed and loaded again.
type ProcessRunner struct {
	mu        sync.Mutex
	srv       *llamaServer
	client    *Client
	modelPath string
	modelName string
	opts      Options
	logger    *logrus.Logger
}

// NewProcessRunner creates a new ProcessRunner.
func NewProcessRunner(logger *logrus.Logger) *ProcessRunner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ProcessRunner{logger: logger}
}

// ProcessFactory returns a Factory producing ProcessRunners that share logger.
func ProcessFactory(logger *logrus.Logger) Factory {
	return func() Runner { return NewProcessRunner(logger) }
}

func (r *ProcessRunner) Load(ctx context.Context, modelPath string, opts Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	srv, err := startServer(ctx, modelPath, opts, r.logger)
	if err != nil {
		return err
	}
	r.srv = srv
	r.client = NewClient(srv.baseURL)
	r.modelPath = modelPath
	r.modelName = filepath.Base(modelPath)
	r.opts = opts
	r.opts.Port = srv.port

	go r.watch(srv, r.modelName)

	r.logger.WithFields(logrus.Fields{
		"model": r.modelName,
		"port":  srv.port,
	}).Info("model loaded")
	return nil
}

// buildArgs renders the llama-server command line. A negative GPULayers
// offloads every layer.
func buildArgs(modelPath string, opts Options, port int) []string {
	layers := opts.GPULayers
	if layers < 0 {
		layers = 999
	}
	args := []string{
		"--model", modelPath,
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(port),
		"--ctx-size", strconv.Itoa(opts.CtxSize),
		"--n-gpu-layers", strconv.Itoa(layers),
	}
	if opts.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(opts.Threads))
	}
	if opts.Embedding {
		args = append(args, "--embeddings")
	}
	return args
}

func (r *ProcessRunner) watch(srv *llamaServer, model string) {
	<-srv.done
	if srv.stopping.Load() {
		return
	}
	r.logger.WithField("model", model).
		Errorf("%s crashed (exit code %d)", srv.label, srv.exitCode())
}

func (r *ProcessRunner) Health(ctx context.Context) error {
	r.mu.Lock()
	srv := r.srv
	r.mu.Unlock()
	if srv == nil {
		return ErrNotStarted
	}
	select {
	case <-srv.done:
		return fmt.Errorf("%s exited (code %d)", srv.label, srv.exitCode())
	default:
	}
	return srv.ping(ctx)
}

func (r *ProcessRunner) Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	r.mu.Lock()
	client := r.client
	r.mu.Unlock()
	if client == nil {
		return nil, ErrNotStarted
	}
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	return resp, nil
}

// Client returns the HTTP client of the running server, or nil.
func (r *ProcessRunner) Client() *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client
}

func (r *ProcessRunner) ModelName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modelName
}

func (r *ProcessRunner) Close() error {
	r.mu.Lock()
	srv := r.srv
	r.srv = nil
	r.client = nil
	r.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.stop()
}
