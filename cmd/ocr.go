package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"idscan/internal/logger"
	"idscan/internal/ocr"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [image-file]",
	Short: "Recognize the text on a card image",
	Long: `Preprocess an image (grayscale, Otsu threshold, dilation) and run the
configured OCR engine on it, printing the recognized text.

The engine is taken from OCR_ENGINE unless --engine is given:
  tesseract   local tesseract binary (TESSERACT_PATH, TESSERACT_LANG, TESSERACT_PSM)
  vision      Google Cloud Vision (GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS)
  documentai  Google Document AI (GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID)
  openai      vision-capable chat model (OPENAI_API_KEY, OPENAI_MODEL)`,
	Example: `  # Print recognized text
  idscan ocr card.jpg

  # Skip preprocessing and use Google Vision
  idscan ocr card.jpg --engine vision --raw

  # Include metadata and output as JSON
  idscan ocr card.jpg --json -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	Text               string    `json:"text"`
	Engine             string    `json:"engine"`
	Variant            string    `json:"variant,omitempty"`
	Confidence         float32   `json:"confidence,omitempty"`
	LanguageCodes      []string  `json:"language_codes,omitempty"`
	ProcessedAt        time.Time `json:"processed_at,omitempty"`
	ProcessingDuration string    `json:"processing_duration,omitempty"`
	FileName           string    `json:"file_name"`
	FileSize           int64     `json:"file_size"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().String("engine", "", "OCR engine (default: OCR_ENGINE)")
	ocrCmd.Flags().Bool("raw", false, "Skip image preprocessing")
	ocrCmd.Flags().Bool("json", false, "Output as JSON with metadata")
	ocrCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	engine, _ := cmd.Flags().GetString("engine")
	raw, _ := cmd.Flags().GetBool("raw")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	imagePath := args[0]

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	opts := cfg.OCROptions()
	if engine != "" {
		opts.Engine = strings.ToLower(engine)
	}

	log.Info().
		Str("file", imagePath).
		Str("engine", opts.Engine).
		Bool("preprocess", !raw).
		Int("timeout", timeoutSecs).
		Msg("Starting OCR processing")

	fileInfo, err := validateImageFile(imagePath, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	recognizer, err := createRecognizer(ctx, opts, log)
	if err != nil {
		return err
	}
	defer ocr.Close(recognizer)

	target := imagePath
	if !raw {
		target, err = ocr.NewPreprocessor().PreprocessFile(ctx, imagePath)
		if err != nil {
			return handleOCRError(err, log)
		}
		defer ocr.RemoveProcessed(imagePath)
	}

	result, err := recognizer.RecognizeText(ctx, target)
	if err != nil {
		return handleOCRError(err, log)
	}

	log.Info().
		Str("variant", result.Variant).
		Float32("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Int("text_length", len(result.Text)).
		Msg("OCR processing completed successfully")

	return outputResults(result, fileInfo, outputPath, jsonOutput, log)
}

// outputResults formats and outputs the OCR results
func outputResults(result *ocr.OCRResult, fileInfo os.FileInfo, outputPath string, jsonOutput bool, log zerolog.Logger) error {
	outputData := []byte(result.Text)

	if jsonOutput {
		ocrOutput := OCROutput{
			Text:               result.Text,
			Engine:             result.Engine,
			Variant:            result.Variant,
			FileName:           filepath.Base(fileInfo.Name()),
			FileSize:           fileInfo.Size(),
			Confidence:         result.Confidence,
			LanguageCodes:      result.LanguageCodes,
			ProcessedAt:        result.ProcessedAt,
			ProcessingDuration: result.ProcessingDuration.String(),
		}

		var err error
		outputData, err = json.MarshalIndent(ocrOutput, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("OCR results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(outputData); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Println()
	return nil
}
