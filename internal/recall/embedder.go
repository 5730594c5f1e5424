package recall

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/ggufdeck/internal/runner"
)

// Embedder runs a second llama-server in embedding mode.
type Embedder struct {
	run *runner.ProcessRunner
}

// StartEmbedder loads modelPath with --embeddings. The embedding model runs
// on CPU with a small context.
func StartEmbedder(ctx context.Context, modelPath string, opts runner.Options, logger *logrus.Logger) (*Embedder, error) {
	opts.Embedding = true
	opts.Quiet = true
	if opts.CtxSize == 0 {
		opts.CtxSize = 512
	}

	r := runner.NewProcessRunner(logger)
	if err := r.Load(ctx, modelPath, opts); err != nil {
		r.Close()
		return nil, fmt.Errorf("start embedding server: %w", err)
	}
	return &Embedder{run: r}, nil
}

// EmbedFunc returns the function the index embeds with.
func (e *Embedder) EmbedFunc() EmbedFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		c := e.run.Client()
		if c == nil {
			return nil, runner.ErrNotStarted
		}
		return c.Embed(ctx, text)
	}
}

// Close stops the embedding server.
func (e *Embedder) Close() error {
	return e.run.Close()
}
