package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/ggufdeck/internal/chats"
	"github.com/ThatCatDev/ggufdeck/internal/config"
	"github.com/ThatCatDev/ggufdeck/internal/models"
	"github.com/ThatCatDev/ggufdeck/internal/recall"
	"github.com/ThatCatDev/ggufdeck/internal/runner"
	"github.com/ThatCatDev/ggufdeck/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ggufdeck web panel and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Port = port
		}
		if dir, _ := cmd.Flags().GetString("models-dir"); dir != "" {
			cfg.ModelsDir = dir
		}
		if dir, _ := cmd.Flags().GetString("outputs-dir"); dir != "" {
			cfg.OutputsDir = dir
		}
		if model, _ := cmd.Flags().GetString("recall-model"); model != "" {
			cfg.Recall.EmbeddingModel = model
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.EnsureDirs(cfg); err != nil {
			return err
		}

		log := newLogger(cfg)
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		chatStore := chats.NewStore(cfg.OutputsDir)
		modelStore := models.NewStore(cfg.ModelsDir)

		var index *recall.Index
		if cfg.Recall.Enabled() {
			idx, embedder, err := openRecall(ctx, cfg, modelStore, chatStore, log)
			if err != nil {
				log.WithError(err).Warn("recall disabled, chat search falls back to keyword matching")
			} else {
				defer embedder.Close()
				index = idx
			}
		}

		srv := server.New(cfg, server.Deps{
			Session: newLocalSession(cfg, log),
			Models:  modelStore,
			Chats:   chatStore,
			Recall:  index,
			Logger:  log,
			Version: version,
		})
		return srv.Start(ctx)
	},
}

// openRecall starts the embedding server, opens the persistent index and
// indexes chats saved while recall was off.
func openRecall(ctx context.Context, cfg *config.Config, ms *models.Store, cs *chats.Store, log *logrus.Logger) (*recall.Index, *recall.Embedder, error) {
	path, err := ms.Resolve(cfg.Recall.EmbeddingModel)
	if err != nil {
		return nil, nil, err
	}

	opts := runner.DefaultOptions()
	opts.Port = cfg.Recall.Port
	opts.BinDir = cfg.BinDir
	opts.HealthTimeout = cfg.HealthTimeout()
	embedder, err := recall.StartEmbedder(ctx, path, opts, log)
	if err != nil {
		return nil, nil, err
	}

	index, err := recall.Open(cfg.Recall.Dir, embedder.EmbedFunc(), log)
	if err != nil {
		embedder.Close()
		return nil, nil, err
	}

	n, err := index.Sync(ctx, cs)
	if err != nil {
		log.WithError(err).Warn("recall sync incomplete")
	}
	log.WithFields(logrus.Fields{"indexed": n, "total": index.Count()}).Info("recall index ready")
	return index, embedder, nil
}

func init() {
	serveCmd.Flags().String("host", "", "bind address (default from config)")
	serveCmd.Flags().Int("port", 0, "listen port (default from config)")
	serveCmd.Flags().String("models-dir", "", "models directory")
	serveCmd.Flags().String("outputs-dir", "", "directory chat sessions are saved to")
	serveCmd.Flags().String("recall-model", "", "embedding model enabling semantic chat search")
	rootCmd.AddCommand(serveCmd)
}
