package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dialogue/internal/usecase"
)

var (
	reembedForce bool
	reembedCheck bool
)

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Re-encode stored dialogue with the configured embedding model",
	Long: `Stored vectors are only comparable with queries embedded by the same model.
After changing embedding.provider, model or dimension, run reembed to rewrite
every stored embedding. Saves are refused until this has run.

Examples:
  dialogue reembed --check
  dialogue reembed
  dialogue reembed --force`,
	Args: cobra.NoArgs,
	RunE: runReembed,
}

func init() {
	rootCmd.AddCommand(reembedCmd)
	reembedCmd.Flags().BoolVar(&reembedForce, "force", false, "re-embed even if the model is unchanged")
	reembedCmd.Flags().BoolVar(&reembedCheck, "check", false, "only report whether re-embedding is needed")
}

func runReembed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	uc := usecase.NewReembedUseCase(a.store, a.embedder, a.cache, a.cfg.Embedding.BatchSize)

	if reembedCheck {
		check, err := uc.Check(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Store:  %s (%d dims, schema v%d)\n", orNone(check.Current.Model), check.Current.Dimension, check.Current.SchemaVersion)
		fmt.Printf("Config: %s (%d dims)\n", check.Wanted.Model, check.Wanted.Dimension)
		if check.NeedsReembed {
			fmt.Printf("Re-embedding required: %s\n", check.Reason)
		} else {
			fmt.Println("Store is up to date.")
		}
		return nil
	}

	result, err := uc.Reembed(ctx, reembedForce, progressWithETA("Embedding"))
	if err != nil {
		return fmt.Errorf("re-embedding failed: %w", err)
	}

	if result.UpToDate {
		fmt.Println("Store is up to date, nothing to re-embed.")
		return nil
	}
	fmt.Printf("\nRe-embedded %d conversations\n", result.Conversations)
	fmt.Printf("  From: %s (%d dims)\n", orNone(result.From.Model), result.From.Dimension)
	fmt.Printf("  To:   %s (%d dims)\n", result.To.Model, result.To.Dimension)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
