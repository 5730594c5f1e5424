package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/ggufdeck/internal/chats"
	"github.com/ThatCatDev/ggufdeck/internal/experiment"
	"github.com/ThatCatDev/ggufdeck/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat <model>",
	Short: "Chat with a local model in the terminal",
	Long: "Loads the model and reads prompts from stdin. Every exchange is saved to the\n" +
		"outputs directory. Lines starting with / are commands: /exp <kind> <prompt>\n" +
		"runs an experiment, /quit exits.",
	Args: cobra.ExactArgs(1),
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

		h, _ := sess.Handle()
		color.Green("Loaded %s on %s. /quit to exit.", h.Name, h.Device)

		store := chats.NewStore(cfg.OutputsDir)
		opts := session.GenerateOptions{MaxTokens: cfg.Model.MaxTokens}
		gen := experiment.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
			return sess.Generate(ctx, prompt, opts)
		})

		prompt := color.New(color.FgBlue, color.Bold)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for {
			prompt.Print(">>> ")
			if !scanner.Scan() {
				fmt.Println()
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var text string
			switch {
			case line == "/quit" || line == "/exit":
				return nil
			case strings.HasPrefix(line, "/exp "):
				kind, p, _ := strings.Cut(strings.TrimPrefix(line, "/exp "), " ")
				res, err := experiment.Run(ctx, gen, experiment.Kind(kind), p)
				if err != nil {
					reportChatError(err)
					continue
				}
				line, text = p, res.Response
			case strings.HasPrefix(line, "/"):
				color.Yellow("unknown command %s", line)
				continue
			default:
				text, err = gen.Generate(ctx, line)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					reportChatError(err)
					continue
				}
			}

			fmt.Println(text)
			if _, err := store.Save(line, text); err != nil {
				reportChatError(err)
			}
		}
	},
}

func reportChatError(err error) {
	if errors.Is(err, experiment.ErrUnknownKind) {
		kinds := make([]string, 0)
		for _, k := range experiment.Kinds() {
			kinds = append(kinds, string(k))
		}
		color.Red("%v (known: %s)", err, strings.Join(kinds, ", "))
		return
	}
	color.Red("%v", err)
}

func init() {
	addLoadFlags(chatCmd)
	rootCmd.AddCommand(chatCmd)
}
