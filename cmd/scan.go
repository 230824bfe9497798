package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"idscan/internal/logger"
	"idscan/internal/ocr"
	"idscan/internal/scan"
	"idscan/internal/store"
)

var scanCmd = &cobra.Command{
	Use:   "scan [image-file]",
	Short: "Run the full pipeline on a card image",
	Long: `Preprocess the image, recognize its text with the configured OCR engine,
extract the six card fields and print them as JSON.

With --user-id the result is also merged into the configured store
(STORE_DRIVER: none, memory, redis, postgres, sheets or firestore). A store failure is
logged but does not fail the command.`,
	Example: `  idscan scan card.jpg
  STORE_DRIVER=redis REDIS_URL=redis://localhost:6379/0 idscan scan card.jpg --user-id u123`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("user-id", "", "Persist the result under this user id")
	scanCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	userID, _ := cmd.Flags().GetString("user-id")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	imagePath := args[0]

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if _, err := validateImageFile(imagePath, log); err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	recognizer, err := createRecognizer(ctx, cfg.OCROptions(), log)
	if err != nil {
		return err
	}
	defer ocr.Close(recognizer)

	st, err := store.New(ctx, cfg.StoreOptions())
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to open store")
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	defer st.Close()

	svc := scan.NewService(recognizer, scan.WithStore(st))
	result, err := svc.Scan(ctx, imagePath, userID)
	if err != nil {
		return handleOCRError(err, log)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
