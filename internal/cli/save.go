package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"dialogue/internal/domain"
)

var (
	saveFile     string
	saveDialogue string
	saveCharA    string
	saveCharB    string
	saveLocation string
	saveJSON     bool
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Score, embed and store one conversation",
	Long: `Save a generated conversation. The request is read as JSON from --file
(or stdin with "-"), or assembled from flags.

Examples:
  dialogue save -f conversation.json
  cat conversation.json | dialogue save -f -
  dialogue save --a "Rick Sanchez" --b "Morty Smith" --dialogue "Rick: Morty!"`,
	Args: cobra.NoArgs,
	RunE: runSave,
}

func init() {
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().StringVarP(&saveFile, "file", "f", "", "JSON request file, - for stdin")
	saveCmd.Flags().StringVar(&saveDialogue, "dialogue", "", "dialogue text")
	saveCmd.Flags().StringVar(&saveCharA, "a", "", "first character name")
	saveCmd.Flags().StringVar(&saveCharB, "b", "", "second character name")
	saveCmd.Flags().StringVar(&saveLocation, "location", "", "location id")
	saveCmd.Flags().BoolVar(&saveJSON, "json", false, "output as JSON")
}

func readSaveRequest() (domain.SaveRequest, error) {
	var req domain.SaveRequest
	if saveFile == "" {
		req.LocationID = saveLocation
		req.CharacterA = domain.Character{Name: saveCharA}
		req.CharacterB = domain.Character{Name: saveCharB}
		req.Dialogue = saveDialogue
		return req, nil
	}

	var r io.Reader = os.Stdin
	if saveFile != "-" {
		f, err := os.Open(saveFile)
		if err != nil {
			return req, err
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request JSON: %w", err)
	}
	return req, nil
}

func runSave(cmd *cobra.Command, args []string) error {
	req, err := readSaveRequest()
	if err != nil {
		return err
	}

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

	conv, err := saver.Save(ctx, req)
	if err != nil {
		return fmt.Errorf("save failed: %w", err)
	}

	if saveJSON {
		output, _ := json.MarshalIndent(conv, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Saved conversation %d (%s)\n", conv.ID, conv.UID)
	fmt.Printf("  Automated score: %.3f\n", conv.AutomatedScore)
	return nil
}
