package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dialogue/internal/domain"
	"dialogue/internal/usecase"
)

var (
	fbAccuracyA  float64
	fbAccuracyB  float64
	fbCreativity float64
	fbNotes      string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <id>",
	Short: "Rate a stored conversation",
	Long: `Record human feedback. Only the flags given are changed; other ratings are kept.

Examples:
  dialogue feedback 12 --creativity 4
  dialogue feedback 12 --accuracy-a 5 --accuracy-b 3 --notes "Morty too calm"`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
	feedbackCmd.Flags().Float64Var(&fbAccuracyA, "accuracy-a", 0, "accuracy of the first character (0-5)")
	feedbackCmd.Flags().Float64Var(&fbAccuracyB, "accuracy-b", 0, "accuracy of the second character (0-5)")
	feedbackCmd.Flags().Float64Var(&fbCreativity, "creativity", 0, "creativity (0-5)")
	feedbackCmd.Flags().StringVar(&fbNotes, "notes", "", "free-text notes")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid conversation id: %s", args[0])
	}

	var update domain.FeedbackUpdate
	flags := cmd.Flags()
	if flags.Changed("accuracy-a") {
		update.AccuracyA = domain.Float64(fbAccuracyA)
	}
	if flags.Changed("accuracy-b") {
		update.AccuracyB = domain.Float64(fbAccuracyB)
	}
	if flags.Changed("creativity") {
		update.Creativity = domain.Float64(fbCreativity)
	}
	if flags.Changed("notes") {
		update.Notes = domain.String(fbNotes)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	conv, err := usecase.NewFeedbackUseCase(a.store, a.cache).Update(ctx, id, update)
	if err != nil {
		return err
	}

	fmt.Printf("Updated conversation %d: %s\n", conv.ID, formatFeedback(conv.Feedback))
	return nil
}
