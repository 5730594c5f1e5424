package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/ggufdeck/internal/models"
	"github.com/ThatCatDev/ggufdeck/internal/visual"
)

var visualizeCmd = &cobra.Command{
	Use:   "visualize <model>",
	Short: "Summarize a model's block layout from its GGUF header",
	Long: "Reads the GGUF header without loading the model and prints one row per\n" +
		"transformer block. The weight column is the block's share of all block\n" +
		"parameters, not a measure of anything the model learned.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, err := models.NewStore(cfg.ModelsDir).Resolve(args[0])
		if err != nil {
			return err
		}

		layout, err := visual.Inspect(path)
		if err != nil {
			color.Yellow("could not read layout: %v", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("graph"); asJSON {
			graph := visual.PlaceholderGraph()
			if layout != nil {
				graph = visual.BuildGraph(layout)
			}
			data, err := json.MarshalIndent(graph, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(highlight("json", string(data)))
			return nil
		}
		if layout == nil {
			return nil
		}

		name := layout.Name
		if name == "" {
			name = args[0]
		}
		fmt.Printf("%s  %s, %d blocks, embedding %d, %d heads, %s parameters\n\n",
			color.CyanString(name), layout.Architecture, layout.BlockCount,
			layout.EmbeddingLength, layout.HeadCount, formatCount(layout.TotalParameters()))

		weights := layout.LayerWeights()
		table := newTable(os.Stdout, "BLOCK", "TENSORS", "PARAMETERS", "WEIGHT", "LINK")
		for i, b := range layout.Blocks {
			link := "-"
			if w, err := visual.LinkWeight(layout, i); err == nil {
				link = strconv.FormatFloat(w, 'f', 4, 64)
			}
			table.Append([]string{
				strconv.Itoa(b.Index),
				strconv.Itoa(b.Tensors),
				formatCount(b.Parameters),
				strconv.FormatFloat(weights[i], 'f', 4, 64),
				link,
			})
		}
		table.Render()
		return nil
	},
}

func formatCount(n uint64) string {
	switch {
	case n >= 1e9:
		return fmt.Sprintf("%.2fB", float64(n)/1e9)
	case n >= 1e6:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		return strconv.FormatUint(n, 10)
	}
}

func init() {
	visualizeCmd.Flags().Bool("graph", false, "print the 3D graph payload as JSON")
	rootCmd.AddCommand(visualizeCmd)
}
