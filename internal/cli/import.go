package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dialogue/internal/adapter/fs"
	"dialogue/internal/usecase"
)

var importExcludes []string

var importCmd = &cobra.Command{
	Use:   "import <pattern>...",
	Short: "Bulk-load conversations from JSON files",
	Long: `Import exported conversations. Each file holds one save request or an array
of them. Patterns support ** and are relative to --dir. Conversations whose
conversation_id is already stored are skipped.

Examples:
  dialogue import "exports/**/*.json"
  dialogue import backup.json --exclude "**/draft-*"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringSliceVar(&importExcludes, "exclude", nil, "patterns to skip")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	saver, err := a.saver()
	if err != nil {
		return err
	}

	progress := progressWithETA("Importing")
	uc := usecase.NewImportUseCase(saver, fs.NewWalker(importExcludes))
	result, err := uc.Import(ctx, GetRootDir(), args, func(done, total int, _ string) {
		progress(done, total)
	})
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("\nImport complete:\n")
	fmt.Printf("  Files read:  %d\n", result.Files)
	fmt.Printf("  Saved:       %d\n", result.Saved)
	fmt.Printf("  Duplicates:  %d (skipped)\n", result.Duplicates)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}
