package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"idscan/internal/config"
	"idscan/internal/ocr"
)

func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// validateImageFile checks that path is a non-empty regular file within the
// recognizer size limit.
func validateImageFile(path string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("Image file not found")
			return nil, fmt.Errorf("image file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing image file")
			return nil, fmt.Errorf("permission denied accessing image file: %s", path)
		}
		return nil, fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}
	if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("image file is empty: %s", path)
	}
	if fileInfo.Size() > ocr.MaxImageSizeBytes {
		log.Error().
			Str("file", path).
			Int64("size", fileInfo.Size()).
			Int64("max_size", ocr.MaxImageSizeBytes).
			Msg("Image file exceeds maximum size limit")
		return nil, fmt.Errorf("image file too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), ocr.MaxImageSizeBytes)
	}

	return fileInfo, nil
}

// createRecognizer builds the configured recognizer with an actionable error.
func createRecognizer(ctx context.Context, opts ocr.Options, log zerolog.Logger) (ocr.Recognizer, error) {
	r, err := ocr.NewRecognizer(ctx, opts)
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Error().Err(err).Msg("Google Cloud credentials validation failed")
			return nil, fmt.Errorf("Google Cloud credentials not configured. Set GOOGLE_APPLICATION_CREDENTIALS "+
				"to a service account JSON file or GOOGLE_CREDENTIALS to inline JSON: %w", err)
		}
		log.Error().Err(err).Str("engine", opts.Engine).Msg("Failed to create recognizer")
		return nil, fmt.Errorf("failed to create %s recognizer: %w", opts.Engine, err)
	}

	log.Debug().Str("engine", opts.Engine).Msg("Recognizer created successfully")
	return r, nil
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large (maximum 20MB). Try a smaller scan")
	case errors.Is(err, ocr.ErrInvalidImage):
		return fmt.Errorf("invalid or corrupted image file. Supported formats are JPEG, PNG, GIF, BMP, TIFF and WebP")
	case errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("no readable text found in the image")
	case strings.Contains(errStr, "executable file not found"):
		return fmt.Errorf("tesseract binary not found. Install tesseract-ocr or set TESSERACT_PATH: %w", err)
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS: %w", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Ensure the service account may call the selected OCR API: %w", err)
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "quota"):
		return fmt.Errorf("OCR API quota exceeded. Check your project quotas")
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("OCR processing failed: %w", err)
	default:
		return fmt.Errorf("processing failed: %w", err)
	}
}
