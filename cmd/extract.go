package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"idscan/internal/extract"
	"idscan/internal/logger"
)

var extractCmd = &cobra.Command{
	Use:   "extract [text-file|-]",
	Short: "Extract card fields from already recognized text",
	Long: `Run the field extraction engine on OCR text read from a file or stdin
and print the six fields as JSON. Fields that cannot be found are empty.

With --trace every candidate the patterns produced is printed as well,
together with whether it was accepted, rejected by validation or faulted.`,
	Example: `  # Extract from a saved OCR transcript
  idscan extract card.txt

  # Pipe tesseract output straight in
  tesseract card.png stdout --psm 6 | idscan extract -

  # Show why a field was not extracted
  idscan extract card.txt --trace`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

// candidateOutput is one entry of the --trace output.
type candidateOutput struct {
	Field   string `json:"field"`
	Pattern int    `json:"pattern"`
	Raw     string `json:"raw"`
	Value   string `json:"value,omitempty"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Bool("trace", false, "Include every candidate and its outcome")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")
	trace, _ := cmd.Flags().GetBool("trace")

	var (
		text []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		text, err = io.ReadAll(cmd.InOrStdin())
	} else {
		text, err = os.ReadFile(args[0])
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to read input text")
		return fmt.Errorf("failed to read input: %w", err)
	}

	engine := extract.NewEngine()
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if !trace {
		return enc.Encode(engine.Extract(string(text)))
	}

	result, candidates := engine.ExtractWithTrace(string(text))
	out := struct {
		Result     any               `json:"result"`
		Candidates []candidateOutput `json:"candidates"`
	}{Result: result}
	for _, c := range candidates {
		co := candidateOutput{
			Field:   c.Field,
			Pattern: c.Pattern,
			Raw:     c.Raw,
			Value:   c.Value,
			Outcome: c.Outcome.String(),
		}
		if c.Err != nil {
			co.Error = c.Err.Error()
		}
		out.Candidates = append(out.Candidates, co)
	}
	return enc.Encode(out)
}
