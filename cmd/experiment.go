package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/ggufdeck/internal/experiment"
	"github.com/ThatCatDev/ggufdeck/internal/session"
)

var experimentCmd = &cobra.Command{
	Use:   "experiment <kind> <model> <prompt>",
	Short: "Run a prompt experiment against a local model",
	Long:  "Kinds: self-reference, mirror, code, consciousness. Generated code is printed, never run.",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := experiment.Kind(args[0])
		if experiment.Describe(kind) == "" {
			return fmt.Errorf("%w: %q", experiment.ErrUnknownKind, args[0])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sess, err := loadLocal(ctx, cmd, cfg, log, args[1])
		if err != nil {
			return err
		}
		defer sess.Unload()

		gen := experiment.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
			return sess.Generate(ctx, prompt, session.GenerateOptions{MaxTokens: cfg.Model.MaxTokens})
		})
		res, err := experiment.Run(ctx, gen, kind, strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		fmt.Println(color.HiBlackString("[%s] %s", res.Kind, experiment.Describe(res.Kind)))
		fmt.Println(res.Response)
		return nil
	},
}

func init() {
	addLoadFlags(experimentCmd)
	rootCmd.AddCommand(experimentCmd)
}
