package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/ggufdeck/internal/chats"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Browse saved chat sessions",
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved chats, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		infos, err := chats.NewStore(cfg.OutputsDir).Infos()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No saved chats.")
			return nil
		}
		table := newTable(os.Stdout, "NAME", "CREATED", "SIZE")
		for _, i := range infos {
			table.Append([]string{i.Name, formatTime(i.Created), formatSize(i.Size)})
		}
		table.Render()
		return nil
	},
}

var chatsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a saved chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		turns, err := chats.NewStore(cfg.OutputsDir).History(args[0])
		if err != nil {
			return err
		}
		if len(turns) == 0 {
			color.Yellow("%s has no complete exchange", args[0])
			return nil
		}
		for _, t := range turns {
			printTurn(t.Prompt, t.Response)
		}
		return nil
	},
}

var chatsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find saved chats containing a phrase, newest first",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		matches, err := chats.NewStore(cfg.OutputsDir).Grep(strings.Join(args, " "), limit)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, m := range matches {
			fmt.Println(color.CyanString(m.Name))
			printTurn(m.Record.Prompt, m.Record.Response)
		}
		return nil
	},
}

func printTurn(prompt, response string) {
	fmt.Printf("%s %s\n", color.BlueString("User:"), prompt)
	fmt.Printf("%s %s\n\n", color.MagentaString("Model:"), response)
}

func init() {
	chatsSearchCmd.Flags().Int("limit", 10, "maximum results")
	chatsCmd.AddCommand(chatsListCmd, chatsShowCmd, chatsSearchCmd)
	rootCmd.AddCommand(chatsCmd)
}
