package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/ggufdeck/internal/config"
	"github.com/ThatCatDev/ggufdeck/internal/hub"
)

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Search and download models from the hub",
}

func newHubClient(cfg *config.Config) *hub.Client {
	return hub.NewClient(
		hub.WithEndpoint(cfg.Hub.Endpoint),
		hub.WithToken(cfg.Hub.Token),
		hub.WithGitBinary(cfg.Hub.GitBinary),
		hub.WithLogger(newLogger(cfg)),
	)
}

func hubContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

var hubSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search the hub for models",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := hubContext()
		defer stop()

		limit, _ := cmd.Flags().GetInt("limit")
		found, err := newHubClient(cfg).SearchModels(ctx, strings.Join(args, " "), limit)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Println("No models found.")
			return nil
		}
		table := newTable(os.Stdout, "MODEL", "DOWNLOADS", "LIKES", "UPDATED")
		for _, m := range found {
			table.Append([]string{
				m.Name(),
				strconv.FormatInt(m.Downloads, 10),
				strconv.FormatInt(m.Likes, 10),
				formatTime(m.LastUpdated),
			})
		}
		table.Render()
		return nil
	},
}

var hubFilesCmd = &cobra.Command{
	Use:   "files <owner/name>",
	Short: "List the GGUF files of a model repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := hubContext()
		defer stop()

		files, err := newHubClient(cfg).Files(ctx, args[0])
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No GGUF files in this repository.")
			return nil
		}
		table := newTable(os.Stdout, "FILE", "SIZE")
		for _, f := range files {
			table.Append([]string{f.Name, formatSize(f.Size)})
		}
		table.Render()
		return nil
	},
}

var hubDownloadCmd = &cobra.Command{
	Use:   "download <owner/name>",
	Short: "Clone a whole model repository into the models directory (needs git-lfs)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := config.EnsureDirs(cfg); err != nil {
			return err
		}
		ctx, stop := hubContext()
		defer stop()

		path, err := newHubClient(cfg).Download(ctx, args[0], cfg.ModelsDir)
		if err != nil {
			return err
		}
		color.Green("Model downloaded: %s", path)
		return nil
	},
}

var hubPullCmd = &cobra.Command{
	Use:   "pull <owner/name> <file.gguf>",
	Short: "Download a single GGUF file, resuming a partial download",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := config.EnsureDirs(cfg); err != nil {
			return err
		}
		ctx, stop := hubContext()
		defer stop()

		lastPct := -1
		progress := func(done, total int64) {
			if total <= 0 {
				return
			}
			pct := int(done * 100 / total)
			if pct != lastPct {
				lastPct = pct
				fmt.Fprintf(os.Stderr, "\r%3d%%  %s / %s", pct, formatSize(done), formatSize(total))
			}
		}
		path, err := newHubClient(cfg).FetchFile(ctx, args[0], args[1], cfg.ModelsDir, progress)
		if lastPct >= 0 {
			fmt.Fprintln(os.Stderr)
		}
		if err != nil {
			return err
		}
		color.Green("Model downloaded: %s", path)
		return nil
	},
}

var hubCardCmd = &cobra.Command{
	Use:   "card <owner/name>",
	Short: "Show a model's hub page summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := hubContext()
		defer stop()

		card, err := newHubClient(cfg).Card(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(color.CyanString(card.Title))
		fmt.Println(card.URL)
		if card.Description != "" {
			fmt.Printf("\n%s\n", card.Description)
		}
		if len(card.Tags) > 0 {
			fmt.Printf("\ntags: %s\n", strings.Join(card.Tags, ", "))
		}
		return nil
	},
}

func init() {
	hubSearchCmd.Flags().Int("limit", 50, "maximum results")
	hubCmd.AddCommand(hubSearchCmd, hubFilesCmd, hubDownloadCmd, hubPullCmd, hubCardCmd)
	rootCmd.AddCommand(hubCmd)
}
