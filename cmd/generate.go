package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/ggufdeck/internal/chats"
	"github.com/ThatCatDev/ggufdeck/internal/config"
	"github.com/ThatCatDev/ggufdeck/internal/models"
	"github.com/ThatCatDev/ggufdeck/internal/session"
)

var generateCmd = &cobra.Command{
	Use:   "generate <model> <prompt>",
	Short: "Load a model, answer one prompt and save the exchange",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sess, err := loadLocal(ctx, cmd, cfg, log, args[0])
		if err != nil {
			return err
		}
		defer sess.Unload()

		prompt := strings.Join(args[1:], " ")
		maxTokens, _ := cmd.Flags().GetInt("max-tokens")
		if maxTokens <= 0 {
			maxTokens = cfg.Model.MaxTokens
		}
		text, err := sess.Generate(ctx, prompt, session.GenerateOptions{MaxTokens: maxTokens})
		if err != nil {
			return err
		}
		fmt.Println(text)

		if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave {
			name, err := chats.NewStore(cfg.OutputsDir).Save(prompt, text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), color.HiBlackString("saved %s", name))
		}
		return nil
	},
}

// addLoadFlags registers the per-load overrides shared by every command
// that starts a local model.
func addLoadFlags(c *cobra.Command) {
	c.Flags().Int("ctx", 0, "context length (default from config)")
	c.Flags().Int("gpu-layers", -2, "layers to offload, -1 for all (default from config)")
	c.Flags().Int("threads", 0, "CPU threads (default from config)")
}

// loadLocal resolves name in the models directory and loads it into a new
// in-process session.
func loadLocal(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log *logrus.Logger, name string) (*session.Session, error) {
	path, err := models.NewStore(cfg.ModelsDir).Resolve(name)
	if err != nil {
		return nil, err
	}

	lc := session.LoadConfig{
		Path:          path,
		ContextLength: cfg.Model.ContextLength,
		GPULayers:     cfg.Model.GPULayers,
		Threads:       cfg.Model.Threads,
	}
	if v, _ := cmd.Flags().GetInt("ctx"); v > 0 {
		lc.ContextLength = v
	}
	if v, _ := cmd.Flags().GetInt("gpu-layers"); v >= -1 {
		lc.GPULayers = v
	}
	if v, _ := cmd.Flags().GetInt("threads"); v > 0 {
		lc.Threads = v
	}

	sess := newLocalSession(cfg, log)
	h, err := sess.Load(ctx, lc)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"model": h.Name, "device": h.Device.String()}).Debug("model loaded")
	return sess, nil
}

func init() {
	addLoadFlags(generateCmd)
	generateCmd.Flags().Int("max-tokens", 0, "maximum tokens to generate (default from config)")
	generateCmd.Flags().Bool("no-save", false, "do not write the exchange to the outputs directory")
	rootCmd.AddCommand(generateCmd)
}
