package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ThatCatDev/ggufdeck/internal/models"
)

var modelsCmd = &cobra.Command{
	Use:     "models",
	Aliases: []string{"list", "ls"},
	Short:   "List models in the models directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		entries, err := models.NewStore(cfg.ModelsDir).List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("No models in %s. Try `ggufdeck hub search <term>`.\n", cfg.ModelsDir)
			return nil
		}

		table := newTable(os.Stdout, "NAME", "KIND", "SIZE", "MODIFIED")
		for _, e := range entries {
			size := "-"
			if e.Kind == models.KindFile {
				size = formatSize(e.Size)
			}
			table.Append([]string{e.Name, string(e.Kind), size, formatTime(time.Unix(e.ModifiedAt, 0))})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
