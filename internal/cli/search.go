package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dialogue/internal/domain"
)

var (
	searchText  string
	searchTopK  int
	searchJSON  bool
	searchNoMMR bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find conversations similar to a query",
	Long: `Rank stored conversations by cosine similarity to the query.

Examples:
  dialogue search -q "portal gun malfunction"
  dialogue search -q "family dinner" --top-k 10 --json`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.Flags().BoolVar(&searchNoMMR, "no-mmr", false, "disable MMR reranking")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.searcher(searchNoMMR).Search(ctx, searchText, searchTopK)
	if err != nil {
		if errors.Is(err, domain.ErrEncoding) {
			return fmt.Errorf("search failed, embedding backend unavailable: %w", err)
		}
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}

	fmt.Printf("Found %d results for: %s\n\n", len(results), searchText)
	for i, r := range results {
		c := r.Conversation
		fmt.Printf("--- [%d] #%d %s & %s (score: %.3f) ---\n", i+1, c.ID,
			displayName(c.CharacterAName, c.CharacterAID), displayName(c.CharacterBName, c.CharacterBID), r.Score)
		fmt.Println(truncate(c.Dialogue, 500))
		fmt.Println()
	}
	return nil
}
