// Package scan runs the card pipeline: preprocess the image, recognize its
// text, extract the fields and persist them for the user.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"idscan/internal/extract"
	"idscan/internal/logger"
	"idscan/internal/ocr"
	"idscan/internal/store"
	"idscan/pkg/models"
)

// ErrRecognition wraps every preprocessing and OCR failure.
var ErrRecognition = errors.New("failed to process image")

// Preprocessor writes an OCR-ready copy of an image and returns its path.
type Preprocessor interface {
	PreprocessFile(ctx context.Context, srcPath string) (string, error)
}

// Service is safe for concurrent use when its collaborators are.
type Service struct {
	preprocessor Preprocessor
	recognizer   ocr.Recognizer
	extractor    extract.Extractor
	store        store.Store
}

// Option configures a Service.
type Option func(*Service)

// WithPreprocessor replaces the default preprocessor. nil disables
// preprocessing and the recognizer reads the source image directly.
func WithPreprocessor(p Preprocessor) Option {
	return func(s *Service) { s.preprocessor = p }
}

// WithExtractor replaces the default extraction engine.
func WithExtractor(e extract.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithStore sets where results are persisted. The default discards them.
func WithStore(st store.Store) Option {
	return func(s *Service) { s.store = st }
}

// NewService builds a pipeline around recognizer.
func NewService(recognizer ocr.Recognizer, opts ...Option) *Service {
	s := &Service{
		preprocessor: ocr.NewPreprocessor(),
		recognizer:   recognizer,
		extractor:    extract.NewEngine(),
		store:        store.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = store.Nop{}
	}
	return s
}

// Scan processes the image at imagePath. The preprocessed copy is removed
// before returning; the source image is left to the caller.
//
// When userID is not empty the result is merged into the store under it.
// Store failures are logged and do not fail the scan.
func (s *Service) Scan(ctx context.Context, imagePath, userID string) (models.ExtractionResult, error) {
	log := logger.FromContext(ctx, "scan")
	start := time.Now()

	text, err := s.recognize(ctx, imagePath)
	if err != nil {
		log.Error().Err(err).Str("image", imagePath).Msg("Failed to process image")
		return models.ExtractionResult{}, fmt.Errorf("%w: %w", ErrRecognition, err)
	}

	result := s.extractor.Extract(text)

	if userID != "" {
		if err := s.store.Merge(ctx, userID, result.Map()); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to persist extraction result")
		} else {
			log.Debug().Str("user_id", userID).Msg("Extraction result persisted")
		}
	}

	log.Info().
		Int("fields_found", result.Found()).
		Dur("duration", time.Since(start)).
		Msg("Card scanned")

	return result, nil
}

// recognize returns the OCR text for imagePath. A card without readable
// text is not an error: it yields empty text and therefore an empty result.
func (s *Service) recognize(ctx context.Context, imagePath string) (string, error) {
	log := logger.FromContext(ctx, "scan")

	target := imagePath
	if s.preprocessor != nil {
		processed, err := s.preprocessor.PreprocessFile(ctx, imagePath)
		if err != nil {
			return "", err
		}
		defer func() {
			if err := os.Remove(processed); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("path", processed).Msg("Failed to remove processed image")
			}
		}()
		target = processed
	}

	res, err := s.recognizer.RecognizeText(ctx, target)
	if errors.Is(err, ocr.ErrEmptyDocument) {
		log.Warn().Str("image", imagePath).Msg("No text recognized")
		return "", nil
	}
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("engine", res.Engine).
		Str("variant", res.Variant).
		Int("text_length", len(res.Text)).
		Msg("Text recognized")
	return res.Text, nil
}
