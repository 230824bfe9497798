package ocr

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"idscan/internal/logger"
)

// TesseractConfig configures the local tesseract binary.
type TesseractConfig struct {
	Path        string // binary name or absolute path; default "tesseract"
	Lang        string // default "eng"
	PSMs        []int  // page segmentation modes to try, default 3, 4, 6
	TessdataDir string // optional --tessdata-dir
}

// DefaultTesseractConfig returns the modes that work best on Aadhaar cards:
// automatic layout, single column and uniform block.
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{
		Path: "tesseract",
		Lang: "eng",
		PSMs: []int{3, 4, 6},
	}
}

// TesseractRecognizer runs tesseract once per configured page segmentation
// mode and keeps the longest output.
type TesseractRecognizer struct {
	cfg    TesseractConfig
	runner Runner
	log    zerolog.Logger
}

// NewTesseractRecognizer fills in defaults for empty config fields.
// A nil runner executes the real binary.
func NewTesseractRecognizer(cfg TesseractConfig, runner Runner) *TesseractRecognizer {
	def := DefaultTesseractConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.Lang == "" {
		cfg.Lang = def.Lang
	}
	if len(cfg.PSMs) == 0 {
		cfg.PSMs = def.PSMs
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &TesseractRecognizer{
		cfg:    cfg,
		runner: runner,
		log:    logger.WithComponent("tesseract"),
	}
}

// RecognizeText implements Recognizer. A failing mode is logged and skipped;
// the call fails only when every mode fails.
func (t *TesseractRecognizer) RecognizeText(ctx context.Context, imagePath string) (*OCRResult, error) {
	const op = "RecognizeText"
	start := time.Now()

	var (
		best, variant string
		failures      []string
		lastErr       error
	)
	for _, psm := range t.cfg.PSMs {
		if err := ctx.Err(); err != nil {
			return nil, WrapOCRError(op, err, "canceled")
		}

		args := t.args(imagePath, psm)
		out, stderr, err := t.runner.Run(ctx, t.cfg.Path, args...)
		if err != nil {
			lastErr = err
			failures = append(failures, fmt.Sprintf("--psm %d: %v", psm, err))
			t.log.Warn().
				Err(err).
				Int("psm", psm).
				Str("stderr", truncate(string(stderr), 512)).
				Msg("OCR failed with config")
			continue
		}

		text := string(out)
		if len(strings.TrimSpace(text)) > len(strings.TrimSpace(best)) {
			best = text
			variant = "--psm " + strconv.Itoa(psm)
		}
	}

	if len(failures) == len(t.cfg.PSMs) {
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return nil, WrapOCRError(op, lastErr, strings.Join(failures, "; "))
		}
		return nil, NewOCRError(op, ErrOCRFailed, strings.Join(failures, "; "))
	}
	if strings.TrimSpace(best) == "" {
		return nil, NewOCRError(op, ErrEmptyDocument, imagePath)
	}

	t.log.Debug().
		Str("variant", variant).
		Int("text_length", len(best)).
		Msg("OCR completed successfully")

	now := time.Now()
	return &OCRResult{
		Text:               best,
		Engine:             EngineTesseract,
		Variant:            variant,
		LanguageCodes:      strings.Split(t.cfg.Lang, "+"),
		ProcessedAt:        now,
		ProcessingDuration: now.Sub(start),
	}, nil
}

// tesseract <image> stdout -l <lang> --psm <n> [--tessdata-dir <dir>]
func (t *TesseractRecognizer) args(imagePath string, psm int) []string {
	args := []string{imagePath, "stdout", "-l", t.cfg.Lang, "--psm", strconv.Itoa(psm)}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}
