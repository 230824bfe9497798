package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"idscan/internal/logger"
	"idscan/internal/ocr"
	"idscan/internal/scan"
	"idscan/internal/server"
	"idscan/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP extraction API",
	Long: `Serve POST /process-aadhar and GET /healthz.

POST /process-aadhar takes a multipart form with the card image in "file"
and an optional "user_id". It answers with the six extracted fields as JSON
and, when user_id is set, merges them into the configured store.`,
	Example: `  idscan serve
  idscan serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	opts := cfg.ServerOptions()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		opts.Addr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	srv, err := server.New(scan.NewService(recognizer, scan.WithStore(st)), opts)
	if err != nil {
		return err
	}

	log.Info().
		Str("engine", cfg.OCREngine).
		Str("store", cfg.StoreDriver).
		Msg("Starting server")
	return srv.ListenAndServe(ctx)
}
