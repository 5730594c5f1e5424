package runner

import "time"

// Options configures how a runner loads and serves a model.
type Options struct {
	// Port for the llama-server subprocess to listen on.
	// 0 means auto-allocate a free port.
	Port int

	// GPULayers is the number of layers to offload to GPU (-1 = all).
	GPULayers int

	// CtxSize is the context window size in tokens.
	CtxSize int

	// BinDir is the directory containing llama-server binaries.
	BinDir string

	// Threads is the number of CPU threads to use (0 = llama-server default).
	Threads int

	// Embedding starts llama-server in embedding mode.
	Embedding bool

	// Quiet suppresses subprocess stdout/stderr output.
	Quiet bool

	// HealthTimeout is how long to wait for the subprocess to become healthy.
	// 0 means use the default (120s).
	HealthTimeout time.Duration
}

// DefaultOptions returns Options with sensible defaults.
// Port defaults to 0 (auto-allocate) so an inference and an embedding
// server can run side by side.
func DefaultOptions() Options {
	return Options{
		Port:      0,
		GPULayers: 0,
		CtxSize:   512,
		Threads:   4,
	}
}
