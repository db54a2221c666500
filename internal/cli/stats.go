package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"dialogue/config"
	"dialogue/internal/usecase"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := usecase.NewStatsUseCase(a.store).Stats(ctx)
	if err != nil {
		return err
	}

	if statsJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Conversations:  %d (%d rated)\n", stats.Conversations, stats.Rated)
	fmt.Printf("Embedding:      %s, %d dims\n", orNone(stats.Model), stats.Dimension)
	if stats.Conversations > 0 {
		fmt.Printf("Avg score:      %.3f\n", stats.AvgScore)
		fmt.Printf("Oldest:         %s\n", stats.Oldest.Local().Format("2006-01-02 15:04"))
		fmt.Printf("Newest:         %s\n", stats.Newest.Local().Format("2006-01-02 15:04"))
	}
	if a.cfg.Store.Backend != "memory" {
		fmt.Printf("Store:          %s (%s)\n", config.StorePath(GetRootDir(), a.cfg), a.cfg.Store.Backend)
	}
	return nil
}
