package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/ggufdeck/internal/accel"
	"github.com/ThatCatDev/ggufdeck/internal/config"
	"github.com/ThatCatDev/ggufdeck/internal/logutil"
	"github.com/ThatCatDev/ggufdeck/internal/session"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "ggufdeck",
	Short: "Control panel for local GGUF models",
	Long: "ggufdeck loads GGUF models through llama-server, chats with them, keeps every\n" +
		"exchange under the outputs directory and fetches new models from the hub.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig reads the config file and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	return logutil.New(cfg.LogLevel)
}

// newLocalSession builds an in-process session honoring the configured
// accelerator mode.
func newLocalSession(cfg *config.Config, log *logrus.Logger) *session.Session {
	mode := cfg.Model.Accelerator
	return session.New(session.Options{
		BinDir:        cfg.BinDir,
		HealthTimeout: cfg.HealthTimeout(),
		Logger:        log,
		Detect: func(ctx context.Context) accel.Device {
			return accel.Detect(ctx, mode)
		},
	})
}

func exitError(msg string, args ...any) {
	fmt.Fprintln(os.Stderr, color.RedString("Error: "+msg, args...))
	os.Exit(1)
}
