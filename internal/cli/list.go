package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dialogue/internal/domain"
)

var (
	listLimit int
	listJSON  bool
	showJSON  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "number of conversations (default from config)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	limit := a.cfg.Search.ListLimit
	if listLimit > 0 {
		limit = listLimit
	}

	convs, err := a.store.ListRecent(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	if listJSON {
		output, _ := json.MarshalIndent(convs, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(convs) == 0 {
		fmt.Println("No conversations stored yet.")
		return nil
	}
	for _, c := range convs {
		fmt.Printf("[%d] %s  %s & %s  score %.3f  %s\n",
			c.ID, c.CreatedAt.Local().Format("2006-01-02 15:04"),
			displayName(c.CharacterAName, c.CharacterAID), displayName(c.CharacterBName, c.CharacterBID),
			c.AutomatedScore, formatFeedback(c.Feedback))
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid conversation id: %s", args[0])
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	conv, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if showJSON {
		output, _ := json.MarshalIndent(conv, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	printConversation(conv)
	return nil
}

func printConversation(c domain.Conversation) {
	fmt.Printf("Conversation %d (%s)\n", c.ID, c.UID)
	fmt.Printf("  Characters: %s & %s\n",
		displayName(c.CharacterAName, c.CharacterAID), displayName(c.CharacterBName, c.CharacterBID))
	if c.LocationID != "" {
		fmt.Printf("  Location:   %s\n", c.LocationID)
	}
	fmt.Printf("  Created:    %s\n", c.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Score:      %.3f\n", c.AutomatedScore)
	fmt.Printf("  Feedback:   %s\n", formatFeedback(c.Feedback))
	if c.Feedback.Notes != nil {
		fmt.Printf("  Notes:      %s\n", *c.Feedback.Notes)
	}
	fmt.Println()
	fmt.Println(c.Dialogue)
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	if id != "" {
		return "#" + id
	}
	return "?"
}

func formatFeedback(fb domain.Feedback) string {
	if !fb.Rated() {
		return "unrated"
	}
	rating := func(label string, v *float64) string {
		if v == nil {
			return label + " -"
		}
		return fmt.Sprintf("%s %.1f", label, *v)
	}
	return strings.Join([]string{
		rating("acc_a", fb.AccuracyA),
		rating("acc_b", fb.AccuracyB),
		rating("creativity", fb.Creativity),
	}, ", ")
}

// truncate cuts s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
